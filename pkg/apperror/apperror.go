// Package apperror defines the application error contract shared by the orchestrator,
// the gateways and the HTTP layer: a stable code, an HTTP status and an optional cause.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Params carries dynamic values attached to an error code.
type Params map[string]interface{}

// AppError is an error with a stable machine-readable code.
type AppError struct {
	Code            string
	FallbackMessage string
	Params          Params
	Details         map[string]interface{}
	HTTPStatus      int
	Cause           error
	// Sentinel, when set, makes errors.Is(appErr, Sentinel) hold.
	Sentinel error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	label := e.Code
	if e.FallbackMessage != "" {
		label = e.FallbackMessage
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", label, e.Cause)
	}
	return label
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches the sentinel the error was created for.
func (e *AppError) Is(target error) bool {
	return e != nil && e.Sentinel != nil && e.Sentinel == target
}

// New creates an AppError with a stable code.
func New(code string, params Params, cause error) *AppError {
	return &AppError{
		Code:   code,
		Params: cloneParams(params),
		Cause:  cause,
	}
}

// WithMessage sets a human readable fallback message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	e.FallbackMessage = message
	return e
}

// WithHTTPStatus sets an explicit HTTP status for this error.
func (e *AppError) WithHTTPStatus(status int) *AppError {
	if e == nil {
		return nil
	}
	e.HTTPStatus = status
	return e
}

// WithDetails sets structured error details.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// WithSentinel ties the error to a sentinel value for errors.Is.
func (e *AppError) WithSentinel(sentinel error) *AppError {
	if e == nil {
		return nil
	}
	e.Sentinel = sentinel
	return e
}

// As extracts the first *AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Validation creates a 400 error.
func Validation(message string, details map[string]interface{}) *AppError {
	return New("validation.failed", nil, nil).
		WithMessage(message).
		WithHTTPStatus(http.StatusBadRequest).
		WithDetails(details)
}

// NotFound creates a 404 error.
func NotFound(message string) *AppError {
	return New("resource.not_found", nil, nil).
		WithMessage(message).
		WithHTTPStatus(http.StatusNotFound)
}

// Conflict creates a 409 error.
func Conflict(message string, details map[string]interface{}) *AppError {
	return New("resource.conflict", nil, nil).
		WithMessage(message).
		WithHTTPStatus(http.StatusConflict).
		WithDetails(details)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return New("auth.unauthorized", nil, nil).
		WithMessage(message).
		WithHTTPStatus(http.StatusUnauthorized)
}

// Internal creates a 500 error wrapping cause.
func Internal(message string, cause error) *AppError {
	return New("internal.error", nil, cause).
		WithMessage(message).
		WithHTTPStatus(http.StatusInternalServerError)
}

// CanonicalParams returns the param keys in a deterministic order.
func CanonicalParams(params Params) []string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cloneParams(params Params) Params {
	if len(params) == 0 {
		return nil
	}
	out := make(Params, len(params))
	for key, value := range params {
		out[key] = value
	}
	return out
}
