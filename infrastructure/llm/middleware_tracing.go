package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the LLM request spans.
const TracerName = "github.com/ahrav/go-zsb/infrastructure/llm"

type tracedLLM struct {
	next     CoreLLM
	provider string
	tracer   trace.Tracer
}

// TracingMiddleware wraps every request in an "llm.request" span. With no
// tracer provider installed the global no-op provider makes this free.
func TracingMiddleware(provider string) Middleware {
	tracer := otel.Tracer(TracerName)
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{next: next, provider: provider, tracer: tracer}
	}
}

// DoRequest executes the request within a span.
func (t *tracedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", t.provider),
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(prompt)),
			attribute.Bool("llm.prompt.image", opts["image_url"] != nil),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, tokensIn, tokensOut, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", tokensIn),
		attribute.Int("llm.tokens.output", tokensOut),
	)
	return response, tokensIn, tokensOut, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
