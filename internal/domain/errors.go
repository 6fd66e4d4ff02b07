package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the store layer
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Store specific errors
	ErrMalformedRecord  ErrorCode = "MALFORMED_RECORD"
	ErrParseError       ErrorCode = "PARSE_ERROR"
	ErrInvalidFormat    ErrorCode = "INVALID_FORMAT"
	ErrWriteFailed      ErrorCode = "WRITE_FAILED"
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
)

// StoreError represents a store-specific error
type StoreError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a StoreError with the same code,
// so callers can match with errors.Is against sentinel instances.
func (e *StoreError) Is(target error) bool {
	var se *StoreError
	if !errors.As(target, &se) {
		return false
	}
	return e.Code == se.Code
}

// MarshalJSON implements the json.Marshaler interface
func (e *StoreError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new StoreError
func NewError(code ErrorCode, message string, err error) *StoreError {
	return &StoreError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions for common errors
func NewNotFoundError(message string) *StoreError {
	return NewError(ErrNotFound, message, nil)
}

func NewQuestionNotFoundError(uid string) *StoreError {
	return NewError(ErrNotFound, fmt.Sprintf("Question not found with UID: %s", uid), nil)
}

func NewMalformedRecordError(message string, err error) *StoreError {
	return NewError(ErrMalformedRecord, message, err)
}

func NewParseError(path string, err error) *StoreError {
	return NewError(ErrParseError, fmt.Sprintf("File is not valid JSON: %s", path), err)
}

func NewInvalidFormatError(path string) *StoreError {
	return NewError(ErrInvalidFormat, fmt.Sprintf("Top-level JSON value is not an array: %s", path), nil)
}

func NewWriteFailedError(path string, err error) *StoreError {
	return NewError(ErrWriteFailed, fmt.Sprintf("Failed to write store file: %s", path), err)
}

func NewValidationFailedError(message string) *StoreError {
	return NewError(ErrValidationFailed, message, nil)
}

func NewInternalError(message string, err error) *StoreError {
	return NewError(ErrInternal, message, err)
}

// IsCode reports whether err carries the given store error code.
func IsCode(err error, code ErrorCode) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
