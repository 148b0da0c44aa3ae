package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during backend interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")
)

// GenerationError represents a failed request inside a batch.
type GenerationError struct {
	// Model is the identifier of the model that failed.
	Model string

	// Index is the position of the failed prompt in the batch.
	Index int

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for GenerationError.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error: model=%s, index=%d, err=%v", e.Model, e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *GenerationError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary.
func (e *GenerationError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewGenerationError creates a new GenerationError with the given details.
func NewGenerationError(model string, index int, err error) *GenerationError {
	return &GenerationError{
		Model: model,
		Index: index,
		Err:   err,
	}
}
