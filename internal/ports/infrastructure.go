package ports

//go:generate mockgen -destination=mocks/mock_ports.go -package=mocks github.com/ahrav/go-zsb/internal/ports Generator,UtilityScorer

import (
	"context"
	"time"

	"github.com/ahrav/go-zsb/internal/domain"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	//
	// Common options include:
	//   - "temperature": float64
	//   - "max_tokens": int
	//   - "system": string (system prompt)
	//   - "image_url": string (data URL for multimodal requests)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// Prompt is one generation request.
type Prompt struct {
	// System is an optional system prompt.
	System string
	// Text is the instruction.
	Text string
	// Image is an optional data URL for vision-language models.
	Image string
}

// Generator is the generation backend consumed by the pipeline.
//
// BatchGenerate must return exactly one output per input in input order.
// Implementations may parallelize internally but the call is synchronous.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
	BatchGenerate(ctx context.Context, prompts []Prompt) ([]string, error)

	// Batched reports whether BatchGenerate is efficient enough to drive
	// the prompt generator in batched mode.
	Batched() bool

	// Model identifies the backing model for logs and metrics.
	Model() string
}

// UtilityScorer scores MBR pairs. Scores are returned in pair order.
// Unparseable judge outputs are replaced with a fallback and counted in
// the second return value.
type UtilityScorer interface {
	Name() string
	Score(ctx context.Context, pairs []domain.UtilityPair) (scores []int, fallbacks int, err error)
}

// MetricsCollector defines the interface for collecting operational metrics.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// NopMetrics discards every metric.
type NopMetrics struct{}

func (NopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (NopMetrics) RecordCounter(string, float64, map[string]string) {}
func (NopMetrics) RecordGauge(string, float64, map[string]string) {}
func (NopMetrics) RecordHistogram(string, float64, map[string]string) {}
