// Package testutils provides deterministic test doubles for the generation
// pipeline.
package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/ahrav/go-zsb/internal/ports"
)

var _ ports.Generator = (*MockGenerator)(nil)

// MockResponse maps a prompt pattern to a canned output.
type MockResponse struct {
	// Pattern is matched as a substring of the prompt text. The empty
	// pattern matches everything.
	Pattern string
	// Response is returned for matching prompts.
	Response string
}

// MockGenerator is a scripted ports.Generator. Queued outputs are served
// first in FIFO order; after that the first matching pattern wins.
type MockGenerator struct {
	model   string
	batched bool

	mu         sync.Mutex
	queue      []string
	responses  []MockResponse
	err        error
	prompts    []ports.Prompt
	batchCalls int
}

// NewMockGenerator creates an unbatched generator that answers every
// prompt with an empty string until scripted.
func NewMockGenerator(model string) *MockGenerator {
	return &MockGenerator{model: model}
}

// SetBatched controls what Batched reports.
func (m *MockGenerator) SetBatched(b bool) *MockGenerator {
	m.batched = b
	return m
}

// Enqueue appends outputs that are returned verbatim, one per prompt.
func (m *MockGenerator) Enqueue(outputs ...string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, outputs...)
	return m
}

// AddResponse registers a pattern response. Patterns are tried in the
// order they were added.
func (m *MockGenerator) AddResponse(r MockResponse) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, r)
	return m
}

// FailWith makes every subsequent call return err.
func (m *MockGenerator) FailWith(err error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Generate implements ports.Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next(prompt)
}

// BatchGenerate implements ports.Generator. The whole batch is answered
// under one lock so queued outputs line up with input order.
func (m *MockGenerator) BatchGenerate(ctx context.Context, prompts []ports.Prompt) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++

	out := make([]string, len(prompts))
	for i, p := range prompts {
		text, err := m.next(p)
		if err != nil {
			return nil, err
		}
		out[i] = text
	}
	return out, nil
}

func (m *MockGenerator) next(prompt ports.Prompt) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.queue) > 0 {
		out := m.queue[0]
		m.queue = m.queue[1:]
		return out, nil
	}
	for _, r := range m.responses {
		if strings.Contains(prompt.Text, r.Pattern) {
			return r.Response, nil
		}
	}
	return "", nil
}

func (m *MockGenerator) Batched() bool { return m.batched }

func (m *MockGenerator) Model() string { return m.model }

// Prompts returns a copy of every prompt seen so far.
func (m *MockGenerator) Prompts() []ports.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.Prompt(nil), m.prompts...)
}

// BatchCalls reports how many times BatchGenerate was invoked.
func (m *MockGenerator) BatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}
