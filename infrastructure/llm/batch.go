package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-zsb/internal/ports"
)

// DefaultConcurrency bounds the in-flight requests of a batched backend.
const DefaultConcurrency = 64

var _ ports.Generator = (*BatchGenerator)(nil)

// BatchGenerator adapts a ports.LLMClient to ports.Generator.
//
// BatchGenerate fans out over at most concurrency goroutines and writes
// each output to the index of its prompt, so results are always in input
// order. The first failure cancels the remaining requests.
type BatchGenerator struct {
	client      ports.LLMClient
	options     map[string]any
	system      string
	concurrency int
	batched     bool
}

// BatchOption configures a BatchGenerator.
type BatchOption func(*BatchGenerator)

// WithConcurrency sets the fan-out limit. Values below one mean sequential.
func WithConcurrency(n int) BatchOption {
	return func(g *BatchGenerator) { g.concurrency = max(n, 1) }
}

// WithSystemPrompt sets the system prompt used when a Prompt carries none.
func WithSystemPrompt(system string) BatchOption {
	return func(g *BatchGenerator) { g.system = system }
}

// WithRequestOptions sets the sampling options sent with every request.
func WithRequestOptions(opts map[string]any) BatchOption {
	return func(g *BatchGenerator) {
		for k, v := range opts {
			g.options[k] = v
		}
	}
}

// WithBatched marks the generator as efficient for large batches.
func WithBatched(batched bool) BatchOption {
	return func(g *BatchGenerator) { g.batched = batched }
}

// NewBatchGenerator wraps client. By default it is sequential and unbatched.
func NewBatchGenerator(client ports.LLMClient, opts ...BatchOption) *BatchGenerator {
	g := &BatchGenerator{
		client:      client,
		options:     make(map[string]any),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate completes a single prompt.
func (g *BatchGenerator) Generate(ctx context.Context, prompt ports.Prompt) (string, error) {
	return g.client.Complete(ctx, prompt.Text, g.requestOptions(prompt))
}

// BatchGenerate completes every prompt and returns the outputs in input order.
func (g *BatchGenerator) BatchGenerate(ctx context.Context, prompts []ports.Prompt) ([]string, error) {
	outputs := make([]string, len(prompts))
	if len(prompts) == 0 {
		return outputs, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, prompt := range prompts {
		eg.Go(func() error {
			out, err := g.Generate(egCtx, prompt)
			if err != nil {
				return ports.NewGenerationError(g.Model(), i, err)
			}
			outputs[i] = out
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("batch of %d prompts failed: %w", len(prompts), err)
	}
	return outputs, nil
}

// Batched reports whether the prompt generator should drive this backend
// in whole rounds.
func (g *BatchGenerator) Batched() bool { return g.batched }

// Model returns the backing model name.
func (g *BatchGenerator) Model() string { return g.client.GetModel() }

func (g *BatchGenerator) requestOptions(prompt ports.Prompt) map[string]any {
	opts := make(map[string]any, len(g.options)+2)
	for k, v := range g.options {
		opts[k] = v
	}

	system := prompt.System
	if system == "" {
		system = g.system
	}
	if system != "" {
		opts["system"] = system
	}
	if prompt.Image != "" {
		opts["image_url"] = prompt.Image
	}
	return opts
}
