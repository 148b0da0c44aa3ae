package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// RetryPolicy configures random exponential backoff. The wait before retry
// k (0-based) is drawn uniformly from [MinWait, clamp(Multiplier*2^k, MinWait, MaxWait)].
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	Multiplier  time.Duration
	MinWait     time.Duration
	MaxWait     time.Duration
}

// DefaultRetryPolicy waits between 4 and 10 seconds and makes up to 10 calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		Multiplier:  time.Second,
		MinWait:     4 * time.Second,
		MaxWait:     10 * time.Second,
	}
}

// backoff returns the wait before the retry following the given failed attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	attempt = min(max(attempt, 0), 30)
	high := p.Multiplier * time.Duration(1<<attempt)
	if high > p.MaxWait || high <= 0 {
		high = p.MaxWait
	}
	if high <= p.MinWait {
		return p.MinWait
	}
	// #nosec G404 - jitter does not need a cryptographic source
	return p.MinWait + time.Duration(rand.Int64N(int64(high-p.MinWait)+1))
}

// retryLLM retries transient failures of the wrapped CoreLLM.
type retryLLM struct {
	next   CoreLLM
	policy RetryPolicy
}

// RetryMiddleware retries failed requests using policy. Errors classified as
// permanent (authentication, bad request, content policy) and an open
// circuit are returned immediately.
func RetryMiddleware(policy RetryPolicy) Middleware {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{next: next, policy: policy}
	}
}

// DoRequest executes the request until it succeeds, fails permanently, or
// exhausts the attempt budget.
func (r *retryLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		attempts++
		response, tokensIn, tokensOut, err := r.next.DoRequest(ctx, prompt, opts)
		if err == nil {
			return response, tokensIn, tokensOut, nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) || attempt == r.policy.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(r.policy.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", 0, 0, ctx.Err()
		case <-timer.C:
		}
	}

	return "", 0, 0, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// isRetryable treats classified provider errors by their type and retries
// anything unclassified.
func isRetryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsRetryable()
	}
	return true
}

// GetModel returns the model name from the wrapped implementation.
func (r *retryLLM) GetModel() string { return r.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
