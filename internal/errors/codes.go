package errors

import "net/http"

// ErrorCode represents a machine-readable error identifier for API error handling.
type ErrorCode string

// Validation errors (request input validation)
const (
	ErrCodeMissingField  ErrorCode = "missing_field"
	ErrCodeInvalidField  ErrorCode = "invalid_field"
	ErrCodeInvalidStatus ErrorCode = "invalid_status"
	ErrCodeInvalidLimit  ErrorCode = "invalid_limit"
	ErrCodeInvalidURL    ErrorCode = "invalid_url"
)

// Resource/state errors
const (
	ErrCodeDeliveryNotFound ErrorCode = "delivery_not_found"
	ErrCodeEndpointNotFound ErrorCode = "endpoint_not_found"
	ErrCodeEventNotFound    ErrorCode = "event_not_found"
	ErrCodeDeliveryTerminal ErrorCode = "delivery_terminal"
)

// Delivery errors surfaced through the admin API
const (
	ErrCodeBlockedDestination ErrorCode = "blocked_destination"
	ErrCodeSecretUnavailable  ErrorCode = "secret_unavailable"
)

// Auth errors
const (
	ErrCodeUnauthorized ErrorCode = "unauthorized"
)

// System errors
const (
	ErrCodeDatabaseError ErrorCode = "database_error"
	ErrCodeInternalError ErrorCode = "internal_error"
)

// HTTPStatus maps an error code to the HTTP status the admin API responds with.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeMissingField, ErrCodeInvalidField, ErrCodeInvalidStatus, ErrCodeInvalidLimit, ErrCodeInvalidURL:
		return http.StatusBadRequest
	case ErrCodeDeliveryNotFound, ErrCodeEndpointNotFound, ErrCodeEventNotFound:
		return http.StatusNotFound
	case ErrCodeDeliveryTerminal, ErrCodeBlockedDestination:
		return http.StatusConflict
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeDatabaseError, ErrCodeInternalError, ErrCodeSecretUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether the client should retry the request.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case ErrCodeDatabaseError, ErrCodeInternalError:
		return true
	default:
		return false
	}
}
