package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while generating or evaluating
// benchmark data.
var (
	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidSchema indicates that an attribute schema violates the
	// depth-1 dependency rule or references unknown attributes.
	ErrInvalidSchema = errors.New("invalid attribute schema")

	// ErrUnresolvedAttribute indicates that a dependent attribute's resolver
	// has no mapping for the value it was given.
	ErrUnresolvedAttribute = errors.New("unresolved dependent attribute")

	// ErrPoolExhausted indicates that the generator needed more attribute
	// combinations than the pool holds.
	ErrPoolExhausted = errors.New("combination pool exhausted")

	// ErrLengthMismatch indicates that two inputs that must line up do not.
	ErrLengthMismatch = errors.New("length mismatch")

	// ErrUnsupportedJudgment indicates that a task defines no template for
	// the requested judgment protocol.
	ErrUnsupportedJudgment = errors.New("judgment protocol not supported by task")

	// ErrUnknownTask indicates that no task is registered under the given name.
	ErrUnknownTask = errors.New("unknown task")

	// ErrEmptyValue indicates that a required value is empty or nil.
	ErrEmptyValue = errors.New("empty value")
)

// PreconditionError reports which precondition of an operation failed.
// It wraps ErrLengthMismatch unless a different cause is supplied.
type PreconditionError struct {
	// Op names the operation whose precondition failed.
	Op string

	// Condition describes the violated relation, e.g. "len(candidates) == len(sources)*n".
	Condition string

	// Want and Got are the expected and observed quantities.
	Want, Got int

	// Err is the underlying sentinel.
	Err error
}

// Error implements the error interface for PreconditionError.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition %s failed: want %d, got %d: %v",
		e.Op, e.Condition, e.Want, e.Got, e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *PreconditionError) Unwrap() error { return e.Err }

// NewLengthMismatch creates a PreconditionError wrapping ErrLengthMismatch.
func NewLengthMismatch(op, condition string, want, got int) *PreconditionError {
	return &PreconditionError{
		Op:        op,
		Condition: condition,
		Want:      want,
		Got:       got,
		Err:       ErrLengthMismatch,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match any ValidationError against ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// IsFatalConfiguration reports whether err belongs to the configuration or
// precondition class that must abort a run without retrying.
func IsFatalConfiguration(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrInvalidSchema) ||
		errors.Is(err, ErrUnresolvedAttribute) ||
		errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrPoolExhausted) ||
		errors.Is(err, ErrUnknownTask) ||
		errors.Is(err, ErrUnsupportedJudgment)
}
