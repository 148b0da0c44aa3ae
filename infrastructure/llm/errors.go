package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors of the client and providers.
var (
	ErrEmptyAPIKey      = errors.New("API key cannot be empty")
	ErrEmptyResponse    = errors.New("empty response from API")
	ErrNoResponseChoice = errors.New("no response choices returned")
	ErrEmptyModel       = errors.New("model cannot be empty")
	// ErrUnknownProvider indicates a provider name with no registered factory.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrInvalidImage indicates an image option that is not a base64 data URL.
	ErrInvalidImage = errors.New("invalid image data URL")
)

// ErrorType is the provider-independent category of a failed request.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	// ErrorTypeContentPolicy marks prompts the provider refused to serve.
	// Generated benchmark prompts can trip safety filters, so this is kept
	// apart from ErrorTypeBadRequest.
	ErrorTypeContentPolicy
	ErrorTypeNetwork
	ErrorTypeTimeout
)

var errorTypeNames = [...]string{
	ErrorTypeUnknown:        "",
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

// String returns the snake_case name of t, or "" for unknown types.
func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return ""
	}
	return errorTypeNames[t]
}

// Retryable reports whether requests failing with t may succeed when sent
// again unchanged.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	}
	return false
}

// ProviderError is a provider failure normalized for the retry layer.
type ProviderError struct {
	Type     ErrorType
	Provider string
	// StatusCode is zero when the failure happened before a response.
	StatusCode   int
	Message      string
	WrappedError error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" error")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if name := e.Type.String(); name != "" {
		fmt.Fprintf(&b, " [%s]", name)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.WrappedError != nil {
		fmt.Fprintf(&b, ": %v", e.WrappedError)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.WrappedError }

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool { return e.Type.Retryable() }

// NewProviderError builds a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// ErrorClassifier maps SDK failures of one provider onto ProviderError.
type ErrorClassifier struct {
	Provider string
}

// statusType classifies an HTTP status. Unlisted 4xx codes count as bad
// requests and unlisted 5xx codes as server errors.
func statusType(status int) ErrorType {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeAuthentication
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status >= 500:
		return ErrorTypeServerError
	case status >= 400:
		return ErrorTypeBadRequest
	}
	return ErrorTypeUnknown
}

// ClassifyHTTPError classifies a failure that carried an HTTP status.
// Authentication and rate-limit failures get a provider-level message in
// place of the SDK's.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	t := statusType(statusCode)
	switch t {
	case ErrorTypeAuthentication:
		message = ec.Provider + " authentication failed"
	case ErrorTypeRateLimit:
		message = ec.Provider + " rate limit exceeded"
	}
	return NewProviderError(ec.Provider, t, statusCode, message, err)
}

// ClassifyContextError classifies a failure caused by the request context.
// Only deadlines are retryable; a canceled run must stop.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "request canceled", err)
	}
	return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
}
