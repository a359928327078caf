package server

import (
	"fmt"
	"time"
)

// ErrorType classifies structured server errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeNotFound   ErrorType = "not_found"
)

// ServerError is a structured error with a stable JSON shape for API
// consumers.
type ServerError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewError creates a new ServerError.
func NewError(errType ErrorType, message, details string) *ServerError {
	return &ServerError{
		Type:      errType,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Unix(),
	}
}

// Wrap wraps a standard error as a ServerError.
func Wrap(err error, errType ErrorType, message string) *ServerError {
	if err == nil {
		return nil
	}
	return NewError(errType, message, err.Error())
}

// IsType checks if the error is a ServerError of the given type.
func IsType(err error, errType ErrorType) bool {
	if serverErr, ok := err.(*ServerError); ok {
		return serverErr.Type == errType
	}
	return false
}
