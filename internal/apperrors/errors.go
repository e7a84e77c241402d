// Package apperrors provides sentinel and custom error types for the application.
package apperrors

// ErrValidation represents a validation error.
// Use when client input fails validation.
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

// ErrEmptyResult is the sentinel for a remote procedure that returned no data where data is expected.
var ErrEmptyResult = &EmptyResultError{}

// EmptyResultError is returned when a remote procedure answers with null or an empty payload.
type EmptyResultError struct {
	Procedure string
}

// NewEmptyResultError creates an EmptyResultError for the named procedure.
func NewEmptyResultError(procedure string) *EmptyResultError {
	return &EmptyResultError{Procedure: procedure}
}

// Error implements the error interface.
func (e *EmptyResultError) Error() string {
	if e.Procedure != "" {
		return e.Procedure + ": empty result"
	}

	return "empty result"
}

// Is implements the error interface for error comparison.
func (e *EmptyResultError) Is(target error) bool {
	_, ok := target.(*EmptyResultError)

	return ok
}
