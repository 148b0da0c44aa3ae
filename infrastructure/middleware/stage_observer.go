package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-zsb/internal/ports"
)

// StageObserver traces one pipeline stage and records its wall time. It
// is created per stage run and is not safe for concurrent use.
type StageObserver struct {
	metrics ports.MetricsCollector
	stage   string
	span    trace.Span
	start   time.Time
}

// StartStage opens a span for stage. The returned context carries the
// span so backend calls made during the stage nest under it.
func StartStage(
	ctx context.Context,
	metrics ports.MetricsCollector,
	stage string,
	attrs ...attribute.KeyValue,
) (context.Context, *StageObserver) {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	tracer := otel.Tracer("zsb-pipeline")
	ctx, span := tracer.Start(ctx, "stage."+stage)
	span.SetAttributes(attribute.String("stage", stage))
	span.SetAttributes(attrs...)
	return ctx, &StageObserver{metrics: metrics, stage: stage, span: span, start: time.Now()}
}

// Progress records a progress event on the stage span.
func (o *StageObserver) Progress(done, target int) {
	o.span.AddEvent("stage.progress", trace.WithAttributes(
		attribute.Int("done", done),
		attribute.Int("target", target),
	))
}

// Fallbacks records how many values were replaced by a fallback. Zero is
// not recorded.
func (o *StageObserver) Fallbacks(field string, n int) {
	if n == 0 {
		return
	}
	o.span.AddEvent("stage.fallbacks", trace.WithAttributes(
		attribute.String("field", field),
		attribute.Int("count", n),
	))
}

// End closes the span with the stage outcome and records its latency.
func (o *StageObserver) End(err error) {
	defer o.span.End()

	elapsed := time.Since(o.start)
	o.metrics.RecordLatency(ports.MetricStageLatency, elapsed, map[string]string{"stage": o.stage})

	if err != nil {
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
		return
	}
	o.span.SetStatus(codes.Ok, "stage completed")
}
