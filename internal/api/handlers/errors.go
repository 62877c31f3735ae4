package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/internal/identifier"
	"example.com/backstage/services/identifier/internal/services"
)

// ErrorResponse defines the structure of an error response
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidIdentifier  = "INVALID_IDENTIFIER"
	CodeNotFound           = "NOT_FOUND"
	CodeSequenceExhausted  = "SEQUENCE_EXHAUSTED"
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeSearchUnavailable  = "SEARCH_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// statusFor maps an engine error to an HTTP status and error code
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, identifier.ErrFieldOutOfRange):
		return http.StatusBadRequest, CodeValidation
	case identifier.IsDecodingError(err):
		return http.StatusBadRequest, CodeInvalidIdentifier
	case errors.Is(err, identifier.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, identifier.ErrSequenceExhausted):
		return http.StatusConflict, CodeSequenceExhausted
	case identifier.IsInvariantViolation(err):
		return http.StatusInternalServerError, CodeInvariantViolation
	case errors.Is(err, services.ErrSearchUnavailable):
		return http.StatusServiceUnavailable, CodeSearchUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}

// writeError writes err as a JSON error response
func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	resp := ErrorResponse{Message: err.Error(), Code: code}

	var e *identifier.Error
	if errors.As(err, &e) {
		resp.Field = e.Field
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		if code == CodeInternal {
			resp.Message = "Internal server error"
		}
	}
	c.JSON(status, resp)
}

// writeBindError reports a request body that failed binding or validation
func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error(), Code: CodeValidation})
}
