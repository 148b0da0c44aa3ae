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

// Judgment protocols as they appear in metric labels.
const (
	ProtocolDirectAssessment = "direct_assessment"
	ProtocolPairwise         = "pairwise"
	ProtocolSafety           = "safety"
)

// Judge runs the answer and judgment flows over JSONL records. Every flow
// issues a single batch call and returns one output record per input
// record, in order.
type Judge struct {
	gen     ports.Generator
	logger  log.Logger
	metrics ports.MetricsCollector
	// images maps metadata image references to data URLs. When set, records
	// generated from an image carry it to the backend.
	images map[string]string
}

// JudgeOption configures a Judge.
type JudgeOption func(*Judge)

// WithJudgeLogger sets the logger.
func WithJudgeLogger(l log.Logger) JudgeOption {
	return func(j *Judge) { j.logger = l }
}

// WithJudgeMetrics sets the metrics collector.
func WithJudgeMetrics(m ports.MetricsCollector) JudgeOption {
	return func(j *Judge) { j.metrics = m }
}

// WithImages attaches images to records whose metadata references them.
func WithImages(index map[string]string) JudgeOption {
	return func(j *Judge) { j.images = index }
}

// NewJudge creates a Judge backed by gen.
func NewJudge(gen ports.Generator, opts ...JudgeOption) (*Judge, error) {
	if gen == nil {
		return nil, fmt.Errorf("judge requires a backend: %w", domain.ErrInvalidConfiguration)
	}
	j := &Judge{gen: gen, logger: log.Named("judge"), metrics: ports.NopMetrics{}}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Answers generates an answer for the instruction in promptField of every
// record. The output records keep every input column and add "answer".
func (j *Judge) Answers(ctx context.Context, records []domain.Record, promptField string) (out []domain.Record, err error) {
	ctx, obs := middleware.StartStage(ctx, j.metrics, ports.StageAnswers, attribute.Int("records", len(records)))
	defer func() { obs.End(err) }()

	texts, err := domain.Strings(records, promptField)
	if err != nil {
		return nil, err
	}
	prompts := make([]ports.Prompt, len(records))
	for i, rec := range records {
		prompts[i] = ports.Prompt{Text: texts[i], Image: j.imageFor(rec)}
	}

	answers, err := j.batch(ctx, "answers", prompts)
	if err != nil {
		return nil, err
	}
	out = make([]domain.Record, len(records))
	for i, rec := range records {
		r := rec.Clone()
		r[domain.FieldAnswer] = answers[i]
		out[i] = r
	}
	return out, nil
}

// DirectAssessment grades the answer of every record on the task's rubric.
// With useRef the reference-based template is used and every record must
// carry a reference. Unparseable scores fall back to domain.FallbackScore.
func (j *Judge) DirectAssessment(ctx context.Context, task *tasks.Task, records []domain.Record, useRef bool) (out []domain.Record, err error) {
	if !task.SupportsDirectAssessment(useRef) {
		// Render reports the protocol and task by name.
		_, err := task.RenderDirectAssessment("", "", "", useRef)
		return nil, err
	}

	ctx, obs := middleware.StartStage(ctx, j.metrics, ports.StageDirectAssessment,
		attribute.String("task", task.Name()),
		attribute.Bool("use_ref", useRef),
	)
	defer func() { obs.End(err) }()

	prompts := make([]ports.Prompt, len(records))
	for i, rec := range records {
		prompt, answer, err := promptAndAnswer(rec, i)
		if err != nil {
			return nil, err
		}
		var reference string
		if useRef {
			if reference, err = rec.String(domain.FieldReference); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
		}
		text, err := task.RenderDirectAssessment(prompt, answer, reference, useRef)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		prompts[i] = ports.Prompt{Text: text, Image: j.imageFor(rec)}
	}

	outputs, err := j.batch(ctx, ProtocolDirectAssessment, prompts)
	if err != nil {
		return nil, err
	}
	return j.scoreRecords(records, outputs, task.Parser(), ProtocolDirectAssessment, obs), nil
}

// Pairwise compares the answers of two aligned record sets. Record i of
// recordsA and recordsB answer the same prompt. The display order of each
// pair comes from swap; the winner is reported in original terms.
//
// Output records are recordsA with "answer" replaced by "answer_A" and
// "answer_B", plus "real_a_place", "judgement" and "feedback".
func (j *Judge) Pairwise(
	ctx context.Context,
	task *tasks.Task,
	recordsA, recordsB []domain.Record,
	swap *middleware.PositionSwap,
) (out []domain.Record, err error) {
	if !task.SupportsRelative() {
		_, err := task.RenderRelative("", "", "")
		return nil, err
	}
	if len(recordsA) != len(recordsB) {
		return nil, domain.NewLengthMismatch("pairwise", "len(answers_B) == len(answers_A)", len(recordsA), len(recordsB))
	}

	ctx, obs := middleware.StartStage(ctx, j.metrics, ports.StagePairwise, attribute.String("task", task.Name()))
	defer func() { obs.End(err) }()

	placements := swap.Placements(ctx, len(recordsA))
	answersA := make([]string, len(recordsA))
	answersB := make([]string, len(recordsB))
	prompts := make([]ports.Prompt, len(recordsA))
	for i, rec := range recordsA {
		prompt, a, err := promptAndAnswer(rec, i)
		if err != nil {
			return nil, err
		}
		b, err := recordsB[i].String(domain.FieldAnswer)
		if err != nil {
			return nil, fmt.Errorf("record %d of answers B: %w", i, err)
		}
		answersA[i], answersB[i] = a, b

		shownA, shownB := placements[i].Display(a, b)
		text, err := task.RenderRelative(prompt, shownA, shownB)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		prompts[i] = ports.Prompt{Text: text, Image: j.imageFor(rec)}
	}

	outputs, err := j.batch(ctx, ProtocolPairwise, prompts)
	if err != nil {
		return nil, err
	}

	parser := task.Parser()
	winnerFallbacks, feedbackFallbacks := 0, 0
	out = make([]domain.Record, len(recordsA))
	for i, raw := range outputs {
		parsed := parser.ParseRelativeOutput(raw)
		winner, ok := swap.Resolve(placements[i], parsed)
		if !ok {
			winnerFallbacks++
		}
		if parsed.Feedback == nil {
			feedbackFallbacks++
		}

		r := recordsA[i].Clone()
		delete(r, domain.FieldAnswer)
		r[domain.FieldAnswerA] = answersA[i]
		r[domain.FieldAnswerB] = answersB[i]
		r[domain.FieldRealAPlace] = placements[i].APlace
		r[domain.FieldJudgement] = winner
		r[domain.FieldFeedback] = feedbackValue(parsed.Feedback)
		out[i] = r
	}
	j.reportFallbacks(ProtocolPairwise, "winner", winnerFallbacks, len(outputs), obs)
	j.reportFallbacks(ProtocolPairwise, domain.FieldFeedback, feedbackFallbacks, len(outputs), obs)
	return out, nil
}

// Safety rates the prompt of every record. The multimodal rubric also
// considers the record's image, which must be resolvable through the
// index given with WithImages.
func (j *Judge) Safety(ctx context.Context, records []domain.Record, multimodal bool) (out []domain.Record, err error) {
	ctx, obs := middleware.StartStage(ctx, j.metrics, ports.StageSafety, attribute.Bool("multimodal", multimodal))
	defer func() { obs.End(err) }()

	prompts := make([]ports.Prompt, len(records))
	for i, rec := range records {
		prompt, err := rec.String(domain.FieldPrompt)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		text, err := tasks.RenderSafety(prompt, multimodal)
		if err != nil {
			return nil, err
		}
		p := ports.Prompt{Text: text}
		if multimodal {
			if p.Image = j.imageFor(rec); p.Image == "" {
				return nil, fmt.Errorf("record %d has no resolvable image: %w", i, domain.ErrInvalidConfiguration)
			}
		}
		prompts[i] = p
	}

	outputs, err := j.batch(ctx, ProtocolSafety, prompts)
	if err != nil {
		return nil, err
	}
	return j.scoreRecords(records, outputs, tasks.SafetyParser(), ProtocolSafety, obs), nil
}

// scoreRecords parses scalar judgments and appends them to copies of the
// input records.
func (j *Judge) scoreRecords(
	records []domain.Record,
	outputs []string,
	parser ports.OutputParser,
	protocol string,
	obs *middleware.StageObserver,
) []domain.Record {
	scoreFallbacks, feedbackFallbacks := 0, 0
	out := make([]domain.Record, len(records))
	for i, raw := range outputs {
		parsed := parser.ParseDirectAssessmentOutput(raw)
		if !parsed.ScoreOK {
			scoreFallbacks++
		}
		if parsed.Feedback == nil {
			feedbackFallbacks++
		}
		r := records[i].Clone()
		r[domain.FieldJudgement] = parsed.Score
		r[domain.FieldFeedback] = feedbackValue(parsed.Feedback)
		out[i] = r
	}
	j.reportFallbacks(protocol, "score", scoreFallbacks, len(outputs), obs)
	j.reportFallbacks(protocol, domain.FieldFeedback, feedbackFallbacks, len(outputs), obs)
	return out
}

func (j *Judge) reportFallbacks(protocol, field string, n, total int, obs *middleware.StageObserver) {
	if n == 0 {
		return
	}
	j.metrics.RecordCounter(ports.MetricJudgmentFallbacks, float64(n),
		map[string]string{"protocol": protocol, "field": field})
	obs.Fallbacks(field, n)
	j.logger.Warnw("judge outputs could not be parsed, fallback values used",
		"protocol", protocol, "field", field, "fallbacks", n, "total", total)
}

func (j *Judge) batch(ctx context.Context, what string, prompts []ports.Prompt) ([]string, error) {
	outputs, err := j.gen.BatchGenerate(ctx, prompts)
	if err != nil {
		return nil, fmt.Errorf("%s: generating %d outputs: %w", what, len(prompts), err)
	}
	if len(outputs) != len(prompts) {
		return nil, domain.NewLengthMismatch(what, "len(outputs) == len(prompts)", len(prompts), len(outputs))
	}
	return outputs, nil
}

// imageFor resolves the record's metadata image reference. It returns the
// empty string when there is no index or no reference.
func (j *Judge) imageFor(rec domain.Record) string {
	if len(j.images) == 0 {
		return ""
	}
	var ref string
	switch md := rec[domain.FieldMetadata].(type) {
	case map[string]any:
		ref, _ = md[domain.MetadataImage].(string)
	case map[string]string:
		ref = md[domain.MetadataImage]
	}
	return j.images[ref]
}

func promptAndAnswer(rec domain.Record, i int) (string, string, error) {
	prompt, err := rec.String(domain.FieldPrompt)
	if err != nil {
		return "", "", fmt.Errorf("record %d: %w", i, err)
	}
	answer, err := rec.String(domain.FieldAnswer)
	if err != nil {
		return "", "", fmt.Errorf("record %d: %w", i, err)
	}
	return prompt, answer, nil
}

// feedbackValue keeps absent feedback as JSON null.
func feedbackValue(fb *string) any {
	if fb == nil {
		return nil
	}
	return *fb
}
