// Package handlers defines the HTTP-layer error codes used across the API.
//
// Codes are lowercase snake_case and stable: clients branch on them for
// programmatic error handling, supplementing the HTTP status. Handlers pick
// the most specific matching code and pass it to fail().
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeClearFailed      = "clear_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
