// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers. Every failure leaves as an
// ErrorResponse with a stable code from errors.go; failService is the single
// place where service errors are mapped onto those codes.
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "donation not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-donation-tracker/internal/http/middleware"
	"github.com/tbourn/go-donation-tracker/internal/services"
)

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"donation not found"`
	// Per-field problems for validation_failed, keyed by JSON field name
	Fields map[string]string `json:"fields,omitempty" example:"amount:amount must be greater than zero"`
}

func requestID(c *gin.Context) string {
	return c.Writer.Header().Get("X-Request-ID")
}

// fail aborts with the envelope. Server errors are logged on the
// request-scoped logger and recorded on the gin context for the access log.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
		_ = c.Error(errors.New(code + ": " + msg))
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: requestID(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for callers outside the package (router fallbacks).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failValidation aborts with 400 validation_failed and the per-field problems.
func failValidation(c *gin.Context, msg string, fields map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		RequestID: requestID(c),
		Code:      ErrCodeValidationFailed,
		Message:   msg,
		Fields:    fields,
	})
}

// failService maps service errors onto the error taxonomy. Anything it does
// not recognise is an internal error.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotSignedIn):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sign in required")
	case errors.Is(err, services.ErrInvalidDonation):
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, services.ErrDonationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "donation not found")
	case errors.Is(err, services.ErrStore):
		fail(c, http.StatusInternalServerError, ErrCodeStoreFailed, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
