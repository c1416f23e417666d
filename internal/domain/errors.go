// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package domain

import "errors"

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation       ErrorType = iota // Input validation errors
	ErrorTypeNotFound                          // Referenced entity not in the session's known set
	ErrorTypeMalformedField                    // A record field cannot be parsed to its expected type
	ErrorTypeDataIntegrity                     // Wire data violates a structural invariant
	ErrorTypePermissionDenied                  // Operation requires rights the session does not hold
	ErrorTypeInternal                          // Internal errors
	ErrorTypeUnavailable                       // Root server unreachable or returned garbage
)

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal // default fallback
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewMalformedFieldError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeMalformedField, Message: message, Err: errors.Join(err...)}
}

func NewDataIntegrityError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeDataIntegrity, Message: message, Err: errors.Join(err...)}
}

func NewPermissionDeniedError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypePermissionDenied, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}
