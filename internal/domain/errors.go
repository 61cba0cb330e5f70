package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeIO                ErrorType = "io"
	ErrorTypePackaging         ErrorType = "packaging"
	ErrorTypeConversion        ErrorType = "conversion"
	ErrorTypeMissingDependency ErrorType = "missing_dependency"
	ErrorTypeFetch             ErrorType = "fetch"
	ErrorTypeConfig            ErrorType = "config"
)

// DomainError represents a domain-specific error with context.
// File names the input that caused the failure, when there is one.
type DomainError struct {
	Type    ErrorType
	Message string
	File    string
	Err     error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if e.File != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.File)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithFile returns a copy of the error bound to the given input file name
func (e *DomainError) WithFile(name string) *DomainError {
	cp := *e
	cp.File = name
	return &cp
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// AsDomainError extracts a *DomainError from err's chain
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsType reports whether err carries a DomainError of the given type
func IsType(err error, errType ErrorType) bool {
	de, ok := AsDomainError(err)
	return ok && de.Type == errType
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func UnsupportedFormatError(message string, err error) *DomainError {
	return NewError(ErrorTypeUnsupportedFormat, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func PackagingError(message string, err error) *DomainError {
	return NewError(ErrorTypePackaging, message, err)
}

func ConversionError(message string, err error) *DomainError {
	return NewError(ErrorTypeConversion, message, err)
}

// MissingDependencyError reports that a component required by a routine is
// not available; message names the component.
func MissingDependencyError(message string, err error) *DomainError {
	return NewError(ErrorTypeMissingDependency, message, err)
}

func FetchError(message string, err error) *DomainError {
	return NewError(ErrorTypeFetch, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}
