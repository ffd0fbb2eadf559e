package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Tether error code.
type ErrorCode string

const (
	ErrValidation   ErrorCode = "VALIDATION"          // 400
	ErrNotFound     ErrorCode = "NOT_FOUND"           // 404
	ErrPrecondition ErrorCode = "PRECONDITION_FAILED" // 400
	ErrEnrichment   ErrorCode = "ENRICHMENT_FAILED"   // 500, retriable
	ErrStorage      ErrorCode = "STORAGE"             // 500
	ErrInternal     ErrorCode = "INTERNAL"            // 500
)

// TetherError represents a structured error with code, status, and details.
type TetherError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *TetherError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *TetherError) Unwrap() error {
	return e.cause
}

// NewValidation creates a 400 error for malformed or missing input.
func NewValidation(msg string) *TetherError {
	return &TetherError{
		Code:    ErrValidation,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown connection id.
func NewNotFound(id string) *TetherError {
	return &TetherError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("connection not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewPrecondition creates a 400 error for a stage whose prerequisite data is absent.
// The caller must run an earlier stage first; retrying as-is will fail again.
func NewPrecondition(stage, msg string) *TetherError {
	return &TetherError{
		Code:    ErrPrecondition,
		Status:  400,
		Message: msg,
		Details: map[string]any{"stage": stage},
	}
}

// NewEnrichment creates a 500 error for a failed or unusable generation call.
// step names the sub-step inside the stage (e.g. "transcribe").
func NewEnrichment(stage, step string, cause error) *TetherError {
	msg := fmt.Sprintf("%s failed at %s", stage, step)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &TetherError{
		Code:    ErrEnrichment,
		Status:  500,
		Message: msg,
		Details: map[string]any{"stage": stage, "step": step, "retriable": true},
		cause:   cause,
	}
}

// NewStorage creates a 500 error for a rejected or failed durable write.
func NewStorage(cause error) *TetherError {
	msg := "storage error"
	if cause != nil {
		msg = cause.Error()
	}
	return &TetherError{
		Code:    ErrStorage,
		Status:  500,
		Message: msg,
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *TetherError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &TetherError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is a TetherError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TetherError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}

// As extracts a TetherError from err, wrapping anything else as INTERNAL.
func As(err error) *TetherError {
	var tErr *TetherError
	if stderrors.As(err, &tErr) {
		return tErr
	}
	return NewInternal(err)
}
