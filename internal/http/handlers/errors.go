// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and map one-to-one onto the failure classes
// clients must tell apart: invalid input, missing records, store failures,
// and the two export outcomes (busy vs. failed). Handlers pick the most
// specific code and pass it to fail() together with the HTTP status.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "export_in_progress",
//	  "message": "an export is already in progress"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "rate_limited" // written by middleware.RateLimiter
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidationFailed  = "validation_failed"
	ErrCodeStoreFailed       = "store_failed"
	ErrCodeExportInProgress  = "export_in_progress"
	ErrCodeExportFailed      = "export_failed"
	ErrCodeSubmitInProgress  = "submit_in_progress"
	ErrCodeNoActiveForm      = "no_active_form"
	ErrCodeUnsupportedLocale = "unsupported_locale"
)
