package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ahrav/go-zsb/infrastructure/middleware"
	"github.com/ahrav/go-zsb/infrastructure/tasks"
	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/log"
	"github.com/ahrav/go-zsb/internal/ports"
)

// TokenEstimator approximates the token count of a text.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

type charEstimator struct{}

func (charEstimator) EstimateTokens(text string) int { return (len(text) + 3) / 4 }

// MBREngine selects, per source item, the candidate with the best
// expected utility against its siblings.
type MBREngine struct {
	scorer         ports.UtilityScorer
	biggerIsBetter bool
	logger         log.Logger
	metrics        ports.MetricsCollector
	estimator      TokenEstimator
}

// MBROption configures an MBREngine.
type MBROption func(*MBREngine)

// WithMBRLogger sets the engine's logger.
func WithMBRLogger(l log.Logger) MBROption {
	return func(e *MBREngine) { e.logger = l }
}

// WithMBRMetrics sets the metrics collector.
func WithMBRMetrics(m ports.MetricsCollector) MBROption {
	return func(e *MBREngine) { e.metrics = m }
}

// WithTokenEstimator replaces the character-based workload estimate.
func WithTokenEstimator(te TokenEstimator) MBROption {
	return func(e *MBREngine) { e.estimator = te }
}

// NewMBREngine creates an engine scoring pairs with scorer.
func NewMBREngine(scorer ports.UtilityScorer, biggerIsBetter bool, opts ...MBROption) (*MBREngine, error) {
	if scorer == nil {
		return nil, fmt.Errorf("mbr engine requires a utility scorer: %w", domain.ErrInvalidConfiguration)
	}
	e := &MBREngine{
		scorer:         scorer,
		biggerIsBetter: biggerIsBetter,
		logger:         log.Named("mbr"),
		metrics:        ports.NopMetrics{},
		estimator:      charEstimator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run scores the full n x n matrix of every item and selects one candidate
// per item. candidates holds n samples per source, flat and item-major.
// Count preconditions are checked before any scoring call.
func (e *MBREngine) Run(ctx context.Context, sources, candidates []string, n int) (res *domain.MBRResult, err error) {
	pairs, err := domain.ExpandPairs(sources, candidates, n)
	if err != nil {
		return nil, err
	}

	ctx, obs := middleware.StartStage(ctx, e.metrics, ports.StageMBR,
		attribute.String("scorer", e.scorer.Name()),
		attribute.Int("items", len(sources)),
		attribute.Int("n", n),
	)
	defer func() { obs.End(err) }()

	e.logWorkload(pairs)

	scores, fallbacks, err := e.scorer.Score(ctx, pairs)
	if err != nil {
		return nil, fmt.Errorf("scoring %d pairs: %w", len(pairs), err)
	}
	if len(scores) != len(pairs) {
		return nil, domain.NewLengthMismatch("mbr", "len(scores) == len(pairs)", len(pairs), len(scores))
	}
	labels := map[string]string{"scorer": e.scorer.Name()}
	e.metrics.RecordCounter(ports.MetricMBRPairs, float64(len(pairs)), labels)
	if fallbacks > 0 {
		e.metrics.RecordCounter(ports.MetricUtilityFallbacks, float64(fallbacks), labels)
		obs.Fallbacks("utility", fallbacks)
		e.logger.Warnf("%d of %d utility scores were unparseable and drawn at random", fallbacks, len(pairs))
	}

	expected, err := domain.ExpectedUtilities(scores, n)
	if err != nil {
		return nil, err
	}
	selections, err := domain.SelectBest(candidates, expected, n, e.biggerIsBetter)
	if err != nil {
		return nil, err
	}
	return &domain.MBRResult{
		Selections:        selections,
		ExpectedUtilities: expected,
		Scores:            scores,
		Fallbacks:         fallbacks,
	}, nil
}

func (e *MBREngine) logWorkload(pairs []domain.UtilityPair) {
	tokens := 0
	for _, p := range pairs {
		tokens += e.estimator.EstimateTokens(p.Source) +
			e.estimator.EstimateTokens(p.HypothesisText) +
			e.estimator.EstimateTokens(p.ReferenceText)
	}
	e.logger.Infow("scoring utility matrix",
		"scorer", e.scorer.Name(), "pairs", len(pairs), "estimated_input_tokens", tokens)
}

// GenerateCandidates samples n candidates per source in one batch call.
// The result is item-major: source i owns indices [i*n, (i+1)*n).
func GenerateCandidates(ctx context.Context, gen ports.Generator, sources []string, n int, metrics ports.MetricsCollector) (out []string, err error) {
	if n < 1 {
		return nil, &domain.PreconditionError{
			Op: "generate candidates", Condition: "n >= 1", Want: 1, Got: n, Err: domain.ErrInvalidConfiguration,
		}
	}
	ctx, obs := middleware.StartStage(ctx, metrics, ports.StageCandidates, attribute.Int("n", n))
	defer func() { obs.End(err) }()

	prompts := make([]ports.Prompt, 0, len(sources)*n)
	for _, src := range sources {
		for range n {
			prompts = append(prompts, ports.Prompt{Text: src})
		}
	}
	out, err = gen.BatchGenerate(ctx, prompts)
	if err != nil {
		return nil, fmt.Errorf("generating %d candidates: %w", len(prompts), err)
	}
	if len(out) != len(prompts) {
		return nil, domain.NewLengthMismatch("generate candidates", "len(outputs) == len(prompts)", len(prompts), len(out))
	}
	return out, nil
}

// JudgeBestCandidates grades each selected candidate against its prompt
// with the task's reference-free direct-assessment template. Records carry
// only the judgment and feedback.
func JudgeBestCandidates(
	ctx context.Context,
	judge *Judge,
	task *tasks.Task,
	prompts, best []string,
) ([]domain.Record, error) {
	if len(prompts) != len(best) {
		return nil, domain.NewLengthMismatch("judge best candidates", "len(best) == len(prompts)", len(prompts), len(best))
	}
	records := make([]domain.Record, len(prompts))
	for i := range prompts {
		records[i] = domain.Record{domain.FieldPrompt: prompts[i], domain.FieldAnswer: best[i]}
	}

	judged, err := judge.DirectAssessment(ctx, task, records, false)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, len(judged))
	for i, rec := range judged {
		out[i] = domain.Record{
			domain.FieldJudgement: rec[domain.FieldJudgement],
			domain.FieldFeedback:  rec[domain.FieldFeedback],
		}
	}
	return out, nil
}
