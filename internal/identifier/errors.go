package identifier

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error produced by the engine wraps exactly one of these,
// so callers branch with errors.Is.
var (
	ErrFieldOutOfRange     = errors.New("field out of range")
	ErrInvalidLength       = errors.New("invalid length")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidBatchType    = errors.New("invalid batch type")
	ErrInvalidStrainFamily = errors.New("invalid strain family")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrSequenceExhausted   = errors.New("sequence exhausted")
	ErrDuplicateFull       = errors.New("duplicate full serial")
	ErrDuplicateShort      = errors.New("duplicate short serial")
	ErrDuplicateBatch      = errors.New("duplicate batch number")
	ErrNotFound            = errors.New("identifier not found")
)

// Error describes which field or value triggered an error kind.
type Error struct {
	Kind  error
	Field string
	Value string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %q", e.Kind, e.Value)
	}
	return fmt.Sprintf("%s: %s=%s", e.Kind, e.Field, e.Value)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, field string, value any) error {
	return &Error{Kind: kind, Field: field, Value: fmt.Sprint(value)}
}

// OutOfRange builds an ErrFieldOutOfRange error for field.
func OutOfRange(field string, value any) error {
	return newError(ErrFieldOutOfRange, field, value)
}

// NotFound builds an ErrNotFound error for the given identifier.
func NotFound(value string) error {
	return newError(ErrNotFound, "", value)
}

// Exhausted builds an ErrSequenceExhausted error for a counter scope.
func Exhausted(scope string) error {
	return newError(ErrSequenceExhausted, "scope", scope)
}

// IsDecodingError reports whether err means the input identifier is malformed
// or corrupted, the "please rescan" class of failures.
func IsDecodingError(err error) bool {
	return errors.Is(err, ErrInvalidLength) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidBatchType) ||
		errors.Is(err, ErrInvalidStrainFamily) ||
		errors.Is(err, ErrChecksumMismatch)
}

// IsInvariantViolation reports whether err can only happen when the allocator
// or the store misbehaves. These must alert an operator and never be retried.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrDuplicateFull) ||
		errors.Is(err, ErrDuplicateShort) ||
		errors.Is(err, ErrDuplicateBatch)
}
