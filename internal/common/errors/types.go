// Package errors defines the structured error taxonomy shared across the
// cache subsystem. Read-path code logs these and degrades; write-path code
// on durable backends returns them to the caller.
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeProviderUnavailable represents a backend that failed to construct
	ErrTypeProviderUnavailable ErrorType = "provider_unavailable"
	// ErrTypeBackingStore represents a network or storage failure mid-operation
	ErrTypeBackingStore ErrorType = "backing_store"
	// ErrTypeSerialization represents a value that cannot be serialized
	ErrTypeSerialization ErrorType = "serialization"
	// ErrTypeInvalidInvalidation represents an unsupported invalidation request
	ErrTypeInvalidInvalidation ErrorType = "invalid_invalidation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
)

// CacheError represents a structured cache subsystem error
type CacheError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *CacheError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *CacheError) WithContext(key string, value interface{}) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ProviderUnavailableError creates an error for a backend that could not be built
func ProviderUnavailableError(provider string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeProviderUnavailable,
		Message: fmt.Sprintf("cache provider %s is unavailable", provider),
		Cause:   cause,
	}
}

// BackingStoreError creates an error for a failed backing-store operation
func BackingStoreError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeBackingStore,
		Message: msg,
		Cause:   cause,
	}
}

// SerializationError creates an error for a value that cannot be serialized
func SerializationError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeSerialization,
		Message: msg,
		Cause:   cause,
	}
}

// InvalidInvalidationError creates an error for an unsupported invalidation request
func InvalidInvalidationError(msg string) *CacheError {
	return &CacheError{
		Type:    ErrTypeInvalidInvalidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *CacheError {
	return &CacheError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	cacheErr, ok := err.(*CacheError)
	if !ok {
		return false
	}

	return cacheErr.Type == errType
}

// GetType returns the error type if it's a CacheError, otherwise ErrTypeBackingStore
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	cacheErr, ok := err.(*CacheError)
	if !ok {
		return ErrTypeBackingStore
	}

	return cacheErr.Type
}
