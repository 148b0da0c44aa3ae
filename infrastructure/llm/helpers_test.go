package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-zsb/internal/ports"
)

// fakeCoreLLM is a configurable CoreLLM for middleware tests. The lock is
// released during the simulated delay so concurrent callers overlap.
type fakeCoreLLM struct {
	mu sync.Mutex

	response  string
	tokensIn  int
	tokensOut int
	err       error
	model     string
	delay     time.Duration
	// failFirst makes the first N calls return err (or errTransient).
	failFirst int

	calls    int
	lastOpts map[string]any
	prompts  []string
}

var errTransient = errors.New("simulated failure")

func newFakeCoreLLM() *fakeCoreLLM {
	return &fakeCoreLLM{
		response:  "test response",
		tokensIn:  10,
		tokensOut: 20,
		model:     "test-model",
	}
}

func (f *fakeCoreLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.lastOpts = opts
	f.prompts = append(f.prompts, prompt)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if call <= f.failFirst {
		if f.err != nil {
			return "", 0, 0, f.err
		}
		return "", 0, 0, errTransient
	}
	if f.failFirst == 0 && f.err != nil {
		return "", 0, 0, f.err
	}
	return f.response, f.tokensIn, f.tokensOut, nil
}

func (f *fakeCoreLLM) GetModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *fakeCoreLLM) SetModel(model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.model = model
}

func (f *fakeCoreLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingCollector captures metrics by name.
type recordingCollector struct {
	mu        sync.Mutex
	counters  map[string]float64
	latencies map[string]int
	labels    []map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters:  make(map[string]float64),
		latencies: make(map[string]int),
	}
}

func (r *recordingCollector) RecordLatency(operation string, _ time.Duration, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies[operation]++
	r.labels = append(r.labels, labels)
}

func (r *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[metric+":"+labels["token_type"]+labels["status"]] += value
}

func (r *recordingCollector) RecordGauge(string, float64, map[string]string) {}

func (r *recordingCollector) RecordHistogram(string, float64, map[string]string) {}

var _ ports.MetricsCollector = (*recordingCollector)(nil)

// registerFakeProvider installs f under a unique provider name for the
// duration of a test.
func registerFakeProvider(name string, f *fakeCoreLLM) {
	RegisterProviderFactory(name, func(cfg ClientConfig) (CoreLLM, error) {
		if cfg.Model != "" {
			f.SetModel(cfg.Model)
		}
		return f, nil
	})
}

// fakeLLMClient is a ports.LLMClient driven by a responder function.
type fakeLLMClient struct {
	model   string
	respond func(ctx context.Context, prompt string, opts map[string]any) (string, error)
}

func (c *fakeLLMClient) Complete(ctx context.Context, prompt string, opts map[string]any) (string, error) {
	return c.respond(ctx, prompt, opts)
}

func (c *fakeLLMClient) EstimateTokens(text string) (int, error) { return len(text) / 4, nil }

func (c *fakeLLMClient) GetModel() string { return c.model }
