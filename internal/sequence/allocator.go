package sequence

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/internal/identifier"
)

// ErrExhausted is returned by a CounterStore when the scope has already
// reached its maximum. The counter is left unchanged.
var ErrExhausted = errors.New("counter exhausted")

// CounterStore hands out monotonically increasing values per scope.
//
// Next atomically increments the counter for scope and returns the new value,
// creating the counter at 1 on first use. When the current value is already
// max it returns ErrExhausted without advancing. Values are never handed out
// twice, even across process restarts for durable implementations.
type CounterStore interface {
	Next(ctx context.Context, scope Scope, max int64) (int64, error)
}

// Allocator reserves sequence numbers for the identifier scopes.
type Allocator struct {
	store CounterStore
}

// NewAllocator creates an allocator backed by store.
func NewAllocator(store CounterStore) *Allocator {
	return &Allocator{store: store}
}

// AllocateBatchSequence reserves the next batch sequence for (site, type, date).
func (a *Allocator) AllocateBatchSequence(ctx context.Context, site identifier.SiteID, batchType identifier.BatchType, date time.Time) (int, error) {
	if !site.Valid() {
		return 0, identifier.OutOfRange("site_id", int(site))
	}
	if !batchType.Valid() {
		return 0, identifier.OutOfRange("batch_type", int(batchType))
	}
	if err := checkDate(date); err != nil {
		return 0, err
	}
	return a.next(ctx, BatchScope(site, batchType, date), identifier.MaxBatchSequence)
}

// AllocateUnitSequence reserves the next unit sequence inside a batch.
func (a *Allocator) AllocateUnitSequence(ctx context.Context, batch identifier.BatchNumber) (int, error) {
	number, err := identifier.EncodeBatch(batch)
	if err != nil {
		return 0, err
	}
	return a.next(ctx, UnitScope(number), identifier.MaxUnitSequence)
}

// AllocateShortSequence reserves the next short serial sequence for (site, date).
func (a *Allocator) AllocateShortSequence(ctx context.Context, site identifier.SiteID, date time.Time) (int, error) {
	if !site.Valid() {
		return 0, identifier.OutOfRange("site_id", int(site))
	}
	if err := checkDate(date); err != nil {
		return 0, err
	}
	return a.next(ctx, ShortScope(site, date), identifier.MaxShortSequence)
}

// checkDate rejects dates no identifier can carry, so no scope is keyed on them
func checkDate(date time.Time) error {
	if date.IsZero() {
		return identifier.OutOfRange("date", "zero date")
	}
	if y := date.Year(); y < 1 || y > 9999 {
		return identifier.OutOfRange("date", y)
	}
	return nil
}

func (a *Allocator) next(ctx context.Context, scope Scope, max int64) (int, error) {
	v, err := a.store.Next(ctx, scope, max)
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			log.Warn().Str("scope", scope.String()).Int64("max", max).Msg("sequence scope exhausted")
			return 0, identifier.Exhausted(scope.String())
		}
		return 0, errors.Wrapf(err, "failed to allocate sequence for %s", scope)
	}
	return int(v), nil
}
