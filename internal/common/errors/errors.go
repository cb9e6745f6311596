package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents an application error code
type ErrorCode string

const (
	// General errors
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeForbidden  ErrorCode = "FORBIDDEN"
	ErrCodeConflict   ErrorCode = "CONFLICT"

	// Lifecycle errors
	ErrCodeEntityNotFound        ErrorCode = "ENTITY_NOT_FOUND"
	ErrCodeEntityExpired         ErrorCode = "ENTITY_EXPIRED"
	ErrCodeEntityEnded           ErrorCode = "ENTITY_ENDED"
	ErrCodeNotEnded              ErrorCode = "NOT_ENDED"
	ErrCodeDuplicateContribution ErrorCode = "DUPLICATE_CONTRIBUTION"
	ErrCodeNotOwner              ErrorCode = "NOT_OWNER"

	// Infrastructure errors
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeCacheError       ErrorCode = "CACHE_ERROR"
	ErrCodePublishFailure   ErrorCode = "PUBLISH_FAILURE"
	ErrCodeDiscordAPI       ErrorCode = "DISCORD_API_ERROR"
)

// AppError is the typed error returned across service boundaries. Validation
// errors are surfaced to the caller; infrastructure errors are logged and
// retried on the next natural cycle.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether the error is a "not found" error
func (e *AppError) IsNotFound() bool {
	return e.Code == ErrCodeNotFound || e.Code == ErrCodeEntityNotFound
}

// IsValidation reports whether the error should be surfaced to the caller
// as a rejection rather than treated as an internal failure.
func (e *AppError) IsValidation() bool {
	switch e.Code {
	case ErrCodeValidation, ErrCodeEntityExpired, ErrCodeEntityEnded,
		ErrCodeNotEnded, ErrCodeDuplicateContribution, ErrCodeNotOwner,
		ErrCodeForbidden:
		return true
	}
	return false
}

// IsInternal reports whether the error is an infrastructure failure
func (e *AppError) IsInternal() bool {
	switch e.Code {
	case ErrCodeInternal, ErrCodeStoreUnavailable, ErrCodeCacheError,
		ErrCodePublishFailure, ErrCodeDiscordAPI:
		return true
	}
	return false
}

// WithDetail attaches structured detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new application error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf wraps an existing error with formatting
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// Constructors for the common cases

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewEntityNotFoundError(kind, id string) *AppError {
	return New(ErrCodeEntityNotFound, fmt.Sprintf("%s not found: %s", kind, id)).
		WithDetail("kind", kind).
		WithDetail("id", id)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

func NewDuplicateContributionError(id, userID string) *AppError {
	return New(ErrCodeDuplicateContribution, fmt.Sprintf("User %s already contributed to %s", userID, id)).
		WithDetail("id", id).
		WithDetail("user_id", userID)
}

func NewNotEndedError(id string) *AppError {
	return New(ErrCodeNotEnded, fmt.Sprintf("Entity %s has not ended yet", id)).
		WithDetail("id", id)
}

func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeStoreUnavailable, fmt.Sprintf("Store operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func NewPublishError(channelID string, err error) *AppError {
	return Wrap(err, ErrCodePublishFailure, "Failed to publish announcement").
		WithDetail("channel_id", channelID)
}

// AsAppError extracts an AppError from anywhere in the error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
