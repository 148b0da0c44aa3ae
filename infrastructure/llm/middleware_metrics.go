package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-zsb/internal/ports"
)

// Metric names recorded by MetricsMiddleware.
const (
	MetricLLMLatency  = "llm_latency_seconds"
	MetricLLMRequests = "llm_requests_total"
	MetricLLMTokens   = "llm_tokens_total"
)

type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware records latency, request counts and token usage for
// every request, labelled by provider, model and outcome.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	if collector == nil {
		collector = ports.NopMetrics{}
	}
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, provider: provider, collector: collector}
	}
}

// DoRequest forwards the request and records its outcome.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   requestStatus(ctx, err),
	}

	m.collector.RecordLatency(MetricLLMLatency, time.Since(start), labels)
	m.collector.RecordCounter(MetricLLMRequests, 1, labels)

	if err == nil {
		m.collector.RecordCounter(MetricLLMTokens, float64(tokensIn), map[string]string{
			"provider": m.provider, "model": labels["model"], "token_type": "input",
		})
		m.collector.RecordCounter(MetricLLMTokens, float64(tokensOut), map[string]string{
			"provider": m.provider, "model": labels["model"], "token_type": "output",
		})
	}

	return response, tokensIn, tokensOut, err
}

func requestStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
