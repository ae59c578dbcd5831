package errors

import (
	"errors"
	"fmt"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateEntry indicates a unique constraint violation
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrMailboxNotFound indicates the mailbox was not found
	ErrMailboxNotFound = errors.New("mailbox not found")

	// ErrMessageNotFound indicates the message was not found
	ErrMessageNotFound = errors.New("message not found")

	// ErrAttachmentNotFound indicates the attachment was not found
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrUserFolderNotFound indicates the user folder was not found
	ErrUserFolderNotFound = errors.New("user folder not found")

	// ErrTagNotFound indicates the tag was not found
	ErrTagNotFound = errors.New("tag not found")

	// ErrRuleNotFound indicates the filter rule was not found
	ErrRuleNotFound = errors.New("filter rule not found")

	// ErrIntegrity indicates stored aggregates disagree with the messages they summarize
	ErrIntegrity = errors.New("data integrity violation")

	// ErrTransient indicates a retryable infrastructure failure that exhausted its retries
	ErrTransient = errors.New("transient infrastructure failure")

	// ErrRuleTargetMissing indicates a filter action points at a deleted folder or tag
	ErrRuleTargetMissing = errors.New("filter rule target not found")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")
)

// Error codes for API responses
const (
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicateEntry    = "DUPLICATE_ENTRY"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeIntegrity         = "INTEGRITY_VIOLATION"
	CodeTransient         = "TEMPORARILY_UNAVAILABLE"
	CodeRuleTargetMissing = "RULE_TARGET_MISSING"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInternalError     = "INTERNAL_ERROR"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// InvalidInput returns an AppError wrapping ErrInvalidInput with a user facing message
func InvalidInput(format string, args ...interface{}) *AppError {
	return &AppError{
		Err:     ErrInvalidInput,
		Message: fmt.Sprintf(format, args...),
		Code:    CodeInvalidInput,
	}
}

// Integrity returns an error wrapping ErrIntegrity
func Integrity(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrIntegrity)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMailboxNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrAttachmentNotFound) ||
		errors.Is(err, ErrUserFolderNotFound) ||
		errors.Is(err, ErrTagNotFound) ||
		errors.Is(err, ErrRuleNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsIntegrity checks if the error is a data integrity violation
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsTransient checks if the error is an exhausted transient failure
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsRuleTargetMissing checks if a filter action target is gone
func IsRuleTargetMissing(err error) bool {
	return errors.Is(err, ErrRuleTargetMissing)
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsDuplicateEntry(err):
		return CodeDuplicateEntry
	case IsInvalidInput(err):
		return CodeInvalidInput
	case IsRuleTargetMissing(err):
		return CodeRuleTargetMissing
	case IsIntegrity(err):
		return CodeIntegrity
	case IsTransient(err):
		return CodeTransient
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternalError
	}
}
