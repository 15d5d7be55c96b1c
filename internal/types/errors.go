package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and repositories use these instead of
// hardcoded strings so the HTTP mapping stays in one place.
const (
	// Validation (400)
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidMonth   ErrorCode = "validation_invalid_month"
	ErrCodeValidationInvalidYear    ErrorCode = "validation_invalid_year"
	ErrCodeValidationInvalidKind    ErrorCode = "validation_invalid_message_kind"
	ErrCodeValidationInvalidValue   ErrorCode = "validation_invalid_value"
	ErrCodeValidationPlaceholder    ErrorCode = "validation_unknown_placeholder"
	ErrCodeValidationInvalidPeriod  ErrorCode = "validation_invalid_period"
	ErrCodeValidationInvalidPayload ErrorCode = "validation_invalid_payload"

	// Auth (401/403)
	ErrCodeAuthCronSecret ErrorCode = "auth_cron_secret_invalid"

	// Not Found (404)
	ErrCodeNotFoundLocation   ErrorCode = "not_found_location"
	ErrCodeNotFoundBuilding   ErrorCode = "not_found_building"
	ErrCodeNotFoundRecipient  ErrorCode = "not_found_recipient"
	ErrCodeNotFoundMessage    ErrorCode = "not_found_message"
	ErrCodeNotFoundUpload     ErrorCode = "not_found_upload"
	ErrCodeNotFoundTemplate   ErrorCode = "not_found_template"
	ErrCodeNotFoundAlertEvent ErrorCode = "not_found_alert_event"
	ErrCodeNotFoundComparison ErrorCode = "not_found_comparison"

	// Conflict (409)
	ErrCodeConflictUpload ErrorCode = "conflict_upload_exists"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB            ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
	ErrCodeInternalCorruptData   ErrorCode = "internal_corrupt_record"
	ErrCodeUpstreamWeather       ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamSMSProvider   ErrorCode = "upstream_sms_provider_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"

	ErrCodeRecipientBlocked ErrorCode = "recipient_blocked"
)

// HTTPStatus maps an ErrorCode to its HTTP status code.
// Unrecognized codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case s == string(ErrCodeAuthCronSecret):
		return http.StatusForbidden
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case s == string(ErrCodeRecipientBlocked):
		return http.StatusForbidden
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. Domain and handler
// errors are expressed as AppError so the API layer can format them
// consistently.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// IsCode reports whether err is, or wraps, an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
