package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrInvalidOptions indicates the manifest options failed validation
	ErrInvalidOptions = errors.New("invalid manifest options")

	// ErrCacheMiss indicates a cache miss
	ErrCacheMiss = errors.New("cache miss")

	// ErrWriteFailed indicates writing output failed
	ErrWriteFailed = errors.New("write failed")

	// ErrSnapshotNotFound indicates the build snapshot file does not exist
	ErrSnapshotNotFound = errors.New("build snapshot not found")

	// ErrInvalidSnapshot indicates the build snapshot is not valid YAML or JSON
	ErrInvalidSnapshot = errors.New("build snapshot must be valid YAML or JSON")

	// ErrUnsupportedExt indicates an unsupported snapshot file extension
	ErrUnsupportedExt = errors.New("unsupported file extension (use .yaml, .yml, or .json)")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidOptions
func (e *ValidationError) Unwrap() error {
	return ErrInvalidOptions
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WriteError represents a failure to persist a file
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrWriteFailed, e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailed, e.Err}
}

// NewWriteError creates a new WriteError
func NewWriteError(path string, err error) *WriteError {
	return &WriteError{
		Path: path,
		Err:  err,
	}
}
