// Package utility provides the pairwise utility scorers used by MBR
// selection.
package utility

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/log"
	"github.com/ahrav/go-zsb/internal/ports"
)

var _ ports.UtilityScorer = (*PrometheusScorer)(nil)

//go:embed templates/prometheus.tmpl
var templateFS embed.FS

// resultMarker precedes the integer score in a rubric judge's output.
const resultMarker = "[RESULT]"

// Fallback scores are drawn uniformly from [MinScore, MaxScore].
const (
	MinScore = 1
	MaxScore = 5
)

// PrometheusScorer asks a rubric-following judge model to grade each
// hypothesis against a reference on a 1-5 scale. The whole workload goes
// to the backend as one batch.
type PrometheusScorer struct {
	gen    ports.Generator
	tmpl   *template.Template
	logger log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a scorer.
type Option func(*options)

type options struct {
	logger log.Logger
	rng    *rand.Rand
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRand sets the source of fallback scores. Tests use it for
// reproducible runs.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

func buildOptions(opts []Option) options {
	o := options{logger: log.Named("utility")}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

// NewPrometheusScorer creates a scorer backed by gen.
func NewPrometheusScorer(gen ports.Generator, opts ...Option) (*PrometheusScorer, error) {
	if gen == nil {
		return nil, fmt.Errorf("prometheus scorer requires a generation backend: %w", domain.ErrInvalidConfiguration)
	}
	tmpl, err := template.New("prometheus.tmpl").Option("missingkey=error").ParseFS(templateFS, "templates/prometheus.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prometheus template: %w", err)
	}
	o := buildOptions(opts)
	return &PrometheusScorer{gen: gen, tmpl: tmpl, logger: o.logger, rng: o.rng}, nil
}

func (s *PrometheusScorer) Name() string { return NamePrometheus }

// Instruction renders the judge instruction for one pair.
func (s *PrometheusScorer) Instruction(p domain.UtilityPair) (string, error) {
	var buf bytes.Buffer
	err := s.tmpl.Execute(&buf, struct {
		Source, Hypothesis, Reference string
	}{p.Source, p.HypothesisText, p.ReferenceText})
	if err != nil {
		return "", fmt.Errorf("failed to render instruction for item %d (%d, %d): %w",
			p.Item, p.Hypothesis, p.Reference, err)
	}
	return buf.String(), nil
}

// Score grades every pair in order. Outputs without a parseable score get a
// uniform random score in [MinScore, MaxScore] and count as fallbacks.
func (s *PrometheusScorer) Score(ctx context.Context, pairs []domain.UtilityPair) ([]int, int, error) {
	prompts := make([]ports.Prompt, len(pairs))
	for i, p := range pairs {
		text, err := s.Instruction(p)
		if err != nil {
			return nil, 0, err
		}
		prompts[i] = ports.Prompt{Text: text}
	}

	outputs, err := s.gen.BatchGenerate(ctx, prompts)
	if err != nil {
		return nil, 0, fmt.Errorf("utility scoring with %s: %w", s.gen.Model(), err)
	}
	if len(outputs) != len(pairs) {
		return nil, 0, domain.NewLengthMismatch("prometheus scoring", "len(outputs) == len(pairs)", len(pairs), len(outputs))
	}

	scores := make([]int, len(outputs))
	fallbacks := 0
	for i, out := range outputs {
		score, ok := ParseResult(out)
		if !ok {
			score = s.randomScore()
			fallbacks++
			s.logger.Warnw("unparseable utility score, using random fallback",
				"item", pairs[i].Item, "hypothesis", pairs[i].Hypothesis,
				"reference", pairs[i].Reference, "fallback", score)
		}
		scores[i] = score
	}
	return scores, fallbacks, nil
}

func (s *PrometheusScorer) randomScore() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MinScore + s.rng.IntN(MaxScore-MinScore+1)
}

// ParseResult reads the integer after the last result marker. Without a
// marker the whole output is parsed. The text is NFKC-normalized first so
// full-width digits are accepted.
func ParseResult(raw string) (int, bool) {
	tail := raw
	if i := strings.LastIndex(raw, resultMarker); i >= 0 {
		tail = raw[i+len(resultMarker):]
	}
	n, err := strconv.Atoi(strings.TrimSpace(norm.NFKC.String(tail)))
	if err != nil {
		return 0, false
	}
	return n, true
}
