// Package middleware provides cross-cutting concerns for the pipeline:
// Prometheus metrics and pairwise placement.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-zsb/infrastructure/llm"
	"github.com/ahrav/go-zsb/internal/ports"
)

const unknownLabel = "unknown"

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// It covers backend traffic (latency, requests, tokens) and the pipeline
// stages (generation progress, parse failures, judgment and utility
// fallbacks, MBR workload).
type PrometheusMetrics struct {
	llmLatency  *prometheus.HistogramVec
	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec

	generationRounds   *prometheus.CounterVec
	generationProgress *prometheus.GaugeVec
	parseFailures      *prometheus.CounterVec
	judgmentFallbacks  *prometheus.CounterVec
	mbrPairs           *prometheus.CounterVec
	utilityFallbacks   *prometheus.CounterVec
	stageLatency       *prometheus.HistogramVec

	// Anything not listed above lands in these, labelled by metric name.
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	values           *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collector and registers every metric
// with reg. Passing prometheus.DefaultRegisterer exposes them on the
// default /metrics handler.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		llmLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    llm.MetricLLMLatency,
				Help:    "Latency of generation backend requests.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: llm.MetricLLMRequests,
				Help: "Generation backend requests by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: llm.MetricLLMTokens,
				Help: "Tokens exchanged with generation backends.",
			},
			[]string{"provider", "model", "token_type"},
		),

		generationRounds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricGenerationRounds,
				Help: "Backend rounds issued by the prompt generator.",
			},
			[]string{"mode"},
		),
		generationProgress: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: ports.MetricGenerationProgress,
				Help: "Records accepted so far by the prompt generator.",
			},
			[]string{"task"},
		),
		parseFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricParseFailures,
				Help: "Backend outputs that could not be parsed.",
			},
			[]string{"stage"},
		),
		judgmentFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricJudgmentFallbacks,
				Help: "Judgment fields replaced by their fallback value.",
			},
			[]string{"protocol", "field"},
		),
		mbrPairs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricMBRPairs,
				Help: "Utility pairs scored during MBR selection.",
			},
			[]string{"scorer"},
		),
		utilityFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricUtilityFallbacks,
				Help: "Utility scores drawn at random after an unparseable judge output.",
			},
			[]string{"scorer"},
		),
		stageLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricStageLatency,
				Help:    "Wall time of pipeline stages.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"stage"},
		),

		operationCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zsb_operations_total",
				Help: "Counters without a dedicated metric, by name.",
			},
			[]string{"metric"},
		),
		systemGauges: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zsb_state",
				Help: "Gauges without a dedicated metric, by name.",
			},
			[]string{"metric"},
		),
		values: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zsb_values",
				Help:    "Histogram observations without a dedicated metric, by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface by recording
// execution latency in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordLatency(
	operation string,
	duration time.Duration,
	labels map[string]string,
) {
	switch operation {
	case llm.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "status"),
		).Observe(duration.Seconds())
	case ports.MetricStageLatency:
		pm.stageLatency.WithLabelValues(label(labels, "stage")).Observe(duration.Seconds())
	default:
		pm.values.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// RecordCounter implements the MetricsCollector interface by incrementing
// Prometheus counters.
func (pm *PrometheusMetrics) RecordCounter(
	metric string, value float64, labels map[string]string,
) {
	switch metric {
	case llm.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "status"),
		).Add(value)
	case llm.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(
			label(labels, "provider"), label(labels, "model"), label(labels, "token_type"),
		).Add(value)
	case ports.MetricGenerationRounds:
		pm.generationRounds.WithLabelValues(label(labels, "mode")).Add(value)
	case ports.MetricParseFailures:
		pm.parseFailures.WithLabelValues(label(labels, "stage")).Add(value)
	case ports.MetricJudgmentFallbacks:
		pm.judgmentFallbacks.WithLabelValues(label(labels, "protocol"), label(labels, "field")).Add(value)
	case ports.MetricMBRPairs:
		pm.mbrPairs.WithLabelValues(label(labels, "scorer")).Add(value)
	case ports.MetricUtilityFallbacks:
		pm.utilityFallbacks.WithLabelValues(label(labels, "scorer")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface by setting
// Prometheus gauge values.
func (pm *PrometheusMetrics) RecordGauge(
	metric string, value float64, labels map[string]string,
) {
	if metric == ports.MetricGenerationProgress {
		pm.generationProgress.WithLabelValues(label(labels, "task")).Set(value)
		return
	}
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements the MetricsCollector interface by recording
// values in a Prometheus histogram.
func (pm *PrometheusMetrics) RecordHistogram(
	metric string, value float64, labels map[string]string,
) {
	pm.values.WithLabelValues(metric).Observe(value)
}

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return unknownLabel
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
