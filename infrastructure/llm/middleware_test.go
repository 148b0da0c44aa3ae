package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Multiplier:  time.Millisecond,
		MinWait:     time.Millisecond,
		MaxWait:     5 * time.Millisecond,
	}
}

func TestRetryPolicy_BackoffBounds(t *testing.T) {
	policy := DefaultRetryPolicy()

	for attempt := range 8 {
		for range 50 {
			wait := policy.backoff(attempt)
			assert.GreaterOrEqual(t, wait, 4*time.Second, "attempt %d", attempt)
			assert.LessOrEqual(t, wait, 10*time.Second, "attempt %d", attempt)
		}
	}

	// The upper bound grows with the attempt number until it hits MaxWait.
	assert.Equal(t, 4*time.Second, policy.backoff(0))
	assert.Equal(t, 4*time.Second, policy.backoff(2))
}

func TestRetryMiddleware_RetriesTransientErrors(t *testing.T) {
	// Given a backend that fails twice then succeeds
	fake := newFakeCoreLLM()
	fake.failFirst = 2
	wrapped := RetryMiddleware(fastPolicy(5))(fake)

	// When making a request
	out, in, outTokens, err := wrapped.DoRequest(context.Background(), "p", nil)

	// Then it succeeds on the third call
	require.NoError(t, err)
	assert.Equal(t, "test response", out)
	assert.Equal(t, 10, in)
	assert.Equal(t, 20, outTokens)
	assert.Equal(t, 3, fake.callCount())
}

func TestRetryMiddleware_StopsAtMaxAttempts(t *testing.T) {
	fake := newFakeCoreLLM()
	fake.err = errors.New("persistent error")
	wrapped := RetryMiddleware(fastPolicy(3))(fake)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed after 3 attempts")
	assert.Contains(t, err.Error(), "persistent error")
	assert.Equal(t, 3, fake.callCount())
}

func TestRetryMiddleware_DoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"authentication", NewProviderError("openai", ErrorTypeAuthentication, 401, "bad key", nil)},
		{"bad request", NewProviderError("openai", ErrorTypeBadRequest, 400, "bad", nil)},
		{"circuit open", ErrCircuitOpen},
		{"canceled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeCoreLLM()
			fake.err = tt.err
			wrapped := RetryMiddleware(fastPolicy(5))(fake)

			_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, fake.callCount())
			assert.Contains(t, err.Error(), "request failed after 1 attempts")
		})
	}
}

func TestRetryMiddleware_RetriesClassifiedTransientErrors(t *testing.T) {
	fake := newFakeCoreLLM()
	fake.err = NewProviderError("anthropic", ErrorTypeRateLimit, 429, "slow down", nil)
	fake.failFirst = 1
	wrapped := RetryMiddleware(fastPolicy(3))(fake)

	out, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

	require.NoError(t, err)
	assert.Equal(t, "test response", out)
	assert.Equal(t, 2, fake.callCount())
}

func TestRetryMiddleware_ContextCancelledDuringBackoff(t *testing.T) {
	fake := newFakeCoreLLM()
	fake.err = errTransient
	policy := RetryPolicy{MaxAttempts: 5, Multiplier: time.Second, MinWait: time.Second, MaxWait: time.Second}
	wrapped := RetryMiddleware(policy)(fake)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, _, err := wrapped.DoRequest(ctx, "p", nil)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, fake.callCount())
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	// Given a breaker with a controllable clock
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }
	fail := func() error { return errTransient }
	ok := func() error { return nil }

	// When two consecutive calls fail
	assert.ErrorIs(t, cb.Call(fail), errTransient)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Call(fail), errTransient)

	// Then the circuit opens and rejects calls without running them
	assert.Equal(t, StateOpen, cb.GetState())
	ran := false
	err := cb.Call(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)

	// When the cooldown passes and the probe succeeds
	now = now.Add(time.Minute)
	require.NoError(t, cb.Call(ok))

	// Then the circuit closes again
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errTransient })
	require.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Minute)
	_ = cb.Call(func() error { return errTransient })

	assert.Equal(t, StateOpen, cb.GetState())
	assert.Equal(t, "open", cb.GetState().String())
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)

	_ = cb.Call(func() error { return context.Canceled })

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerMiddleware_DoesNotSerialize(t *testing.T) {
	// Given a slow backend behind the breaker
	fake := newFakeCoreLLM()
	fake.delay = 50 * time.Millisecond
	wrapped := CircuitBreakerMiddleware(3, time.Minute)(fake)

	// When four requests run at once
	start := time.Now()
	done := make(chan error, 4)
	for range 4 {
		go func() {
			_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
			done <- err
		}()
	}
	for range 4 {
		require.NoError(t, <-done)
	}

	// Then they overlap rather than queue behind the breaker
	assert.Less(t, time.Since(start), 180*time.Millisecond)
}

func TestTimeoutMiddleware(t *testing.T) {
	fake := newFakeCoreLLM()
	fake.delay = 200 * time.Millisecond

	_, _, _, err := TimeoutMiddleware(10*time.Millisecond)(fake).DoRequest(context.Background(), "p", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// A zero timeout leaves the backend unwrapped.
	assert.Same(t, CoreLLM(fake), TimeoutMiddleware(0)(fake))
}

func TestRateLimitMiddleware(t *testing.T) {
	fake := newFakeCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(20), 1)(fake)

	start := time.Now()
	for range 3 {
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)
	}

	// Two waits of 50ms each after the initial burst token.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, fake.callCount())
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	fake := newFakeCoreLLM()
	wrapped := RateLimitMiddleware(0, 0)(fake)

	start := time.Now()
	for range 50 {
		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestMetricsMiddleware(t *testing.T) {
	// Given a collector and a backend that succeeds then fails
	collector := newRecordingCollector()
	fake := newFakeCoreLLM()
	wrapped := MetricsMiddleware("vllm", collector)(fake)

	// When one request succeeds
	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	// And one fails
	fake.err = errTransient
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	require.Error(t, err)

	// Then latency and counts are recorded per outcome, tokens only on success
	assert.Equal(t, 2, collector.latencies[MetricLLMLatency])
	assert.Equal(t, 1.0, collector.counters[MetricLLMRequests+":success"])
	assert.Equal(t, 1.0, collector.counters[MetricLLMRequests+":error"])
	assert.Equal(t, 10.0, collector.counters[MetricLLMTokens+":input"])
	assert.Equal(t, 20.0, collector.counters[MetricLLMTokens+":output"])
	assert.Equal(t, "vllm", collector.labels[0]["provider"])
	assert.Equal(t, "test-model", collector.labels[0]["model"])
}

func TestTracingMiddleware_PassesThrough(t *testing.T) {
	fake := newFakeCoreLLM()
	wrapped := TracingMiddleware("vllm")(fake)

	out, _, _, err := wrapped.DoRequest(context.Background(), "p", map[string]any{"image_url": "data:x"})
	require.NoError(t, err)
	assert.Equal(t, "test response", out)

	wrapped.SetModel("other")
	assert.Equal(t, "other", wrapped.GetModel())

	fake.err = errTransient
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	assert.ErrorIs(t, err, errTransient)
}
