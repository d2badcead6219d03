// Package apperrors provides sentinel and custom error types for the application.
package apperrors

// ErrStorage represents a storage/transport failure.
// Use when a query or connection against the vector store fails.
var ErrStorage = &StorageError{}

// StorageError is a sentinel error for vector store connectivity or query failures.
// It is never retried by the retrieval core; retries belong to the transport layer.
type StorageError struct {
	Op      string
	Message string
	Err     error
}

// NewStorageError creates a StorageError for the given operation wrapping err.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Op != "" && e.Err != nil {
		return e.Op + ": " + e.Err.Error()
	}

	if e.Message != "" {
		return e.Message
	}

	return "storage error"
}

// Unwrap returns the underlying transport error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *StorageError) Is(target error) bool {
	_, ok := target.(*StorageError)

	return ok
}

// ErrValidation represents a validation error.
// Use when input fails validation (e.g. embedding dimension mismatch).
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrEmptyInput is the sentinel for empty-input errors.
// Raised only by operations that require at least one element (e.g. averaging vectors).
var ErrEmptyInput = &EmptyInputError{}

// EmptyInputError is a sentinel error for operations given zero inputs.
type EmptyInputError struct {
	Message string
}

// NewEmptyInputError creates an EmptyInputError with a custom message.
func NewEmptyInputError(message string) *EmptyInputError {
	return &EmptyInputError{Message: message}
}

// Error implements the error interface.
func (e *EmptyInputError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "empty input"
}

// Is implements the error interface for error comparison.
func (e *EmptyInputError) Is(target error) bool {
	_, ok := target.(*EmptyInputError)

	return ok
}

// ErrNotFound represents a "not found" error.
// Use when a requested footprint record doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for records that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}
