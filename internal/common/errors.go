package common

import (
	"errors"
	"net/http"
)

// Error codes used across the engine, mirroring the failure taxonomy:
// validation failures are checked before any write, persistence failures
// are surfaced per step, lookup failures degrade to warnings.
const (
	CodeValidation  = "VALIDATION"
	CodePersistence = "PERSISTENCE"
	CodeLookup      = "LOOKUP"
	CodeNotFound    = "NOT_FOUND"
	CodeInternal    = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ValidationError marks a precondition failure. Nothing has been written.
func ValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// PersistenceError marks a failed store operation at a named step. Earlier
// steps of the same sequence may already have been applied.
func PersistenceError(step string, err error) *AppError {
	return &AppError{
		Code:       CodePersistence,
		Message:    "persistence failed at step " + step,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
		Details:    map[string]string{"step": step},
	}
}

// NotFoundError marks a missing entity.
func NotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
