package registry

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrorType is the closed set of error kinds surfaced by the registry.
// Mapping a kind to a transport status belongs to the boundary layer.
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeInternal     ErrorType = "internal"
)

// Error is a structured registry error. Message is safe to show to end users
// for every type except ErrorTypeInternal.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string) *Error {
	return &Error{Type: ErrorTypeValidation, Code: code, Message: message}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Code: code, Message: message}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string) *Error {
	return &Error{Type: ErrorTypeConflict, Code: code, Message: message}
}

// NewUnauthorizedError creates a new authentication error
func NewUnauthorizedError(code, message string) *Error {
	return &Error{Type: ErrorTypeUnauthorized, Code: code, Message: message}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *Error {
	return &Error{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// NewDatabaseError creates an internal error raised by a store
func NewDatabaseError(code, message string, cause error) *Error {
	return NewInternalError(code, message, cause)
}

// TypeOf returns the kind of err, ErrorTypeInternal for foreign errors
func TypeOf(err error) ErrorType {
	var regErr *Error
	if errors.As(err, &regErr) {
		return regErr.Type
	}
	return ErrorTypeInternal
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeValidation
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeNotFound
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeConflict
}

// IsUnauthorizedError checks if the error is an authentication error
func IsUnauthorizedError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeUnauthorized
}

// IsInternalError checks if the error is an internal error
func IsInternalError(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeInternal
}

// JoinIDs renders ids as a sorted, comma separated list for user messages
func JoinIDs(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
