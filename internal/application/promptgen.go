package application

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/ahrav/go-zsb/infrastructure/middleware"
	"github.com/ahrav/go-zsb/infrastructure/storage"
	"github.com/ahrav/go-zsb/infrastructure/tasks"
	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/log"
	"github.com/ahrav/go-zsb/internal/ports"
)

// BuildFunc turns one pool entry into a backend request.
type BuildFunc func(entry domain.PoolEntry) (ports.Prompt, error)

// ParseFunc extracts the record fields from a raw output. It reports false
// when the output is unusable.
type ParseFunc func(raw string) (map[string]string, bool)

// PromptGenerator produces an exact number of parsed records from an
// unreliable backend. Every attempt consumes a fresh pool entry, so a
// combination is never issued twice in one run.
type PromptGenerator struct {
	gen     ports.Generator
	build   BuildFunc
	parse   ParseFunc
	logger  log.Logger
	metrics ports.MetricsCollector
	label   string
}

// GeneratorOption configures a PromptGenerator.
type GeneratorOption func(*PromptGenerator)

// WithGeneratorLogger sets the progress logger.
func WithGeneratorLogger(l log.Logger) GeneratorOption {
	return func(g *PromptGenerator) { g.logger = l }
}

// WithGeneratorMetrics sets the metrics collector.
func WithGeneratorMetrics(m ports.MetricsCollector) GeneratorOption {
	return func(g *PromptGenerator) { g.metrics = m }
}

// WithTaskLabel names the task in progress metrics.
func WithTaskLabel(name string) GeneratorOption {
	return func(g *PromptGenerator) { g.label = name }
}

// NewPromptGenerator creates a generator. The backend's Batched flag picks
// the operating mode.
func NewPromptGenerator(gen ports.Generator, build BuildFunc, parse ParseFunc, opts ...GeneratorOption) (*PromptGenerator, error) {
	if gen == nil || build == nil || parse == nil {
		return nil, fmt.Errorf("prompt generator requires a backend, a build and a parse function: %w",
			domain.ErrInvalidConfiguration)
	}
	g := &PromptGenerator{
		gen:     gen,
		build:   build,
		parse:   parse,
		logger:  log.Named("promptgen"),
		metrics: ports.NopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// generationState is owned by the control loop of a single run.
type generationState struct {
	// cursor is the first pool index not yet attempted.
	cursor   int
	failures int
	records  []domain.Record
}

// Generate returns exactly target records, in the order they were
// accepted. It fails with domain.ErrPoolExhausted when the pool runs out
// first; records accepted before that point are discarded with the error.
func (g *PromptGenerator) Generate(ctx context.Context, pool []domain.PoolEntry, target int) ([]domain.Record, error) {
	if target <= 0 {
		return nil, &domain.PreconditionError{
			Op: "generate prompts", Condition: "target >= 1", Want: 1, Got: target,
			Err: domain.ErrInvalidConfiguration,
		}
	}
	if target > len(pool) {
		return nil, &domain.PreconditionError{
			Op: "generate prompts", Condition: "target <= len(pool)", Want: target, Got: len(pool),
			Err: domain.ErrPoolExhausted,
		}
	}

	ctx, obs := middleware.StartStage(ctx, g.metrics, ports.StageMetaPrompt)
	st := &generationState{records: make([]domain.Record, 0, target)}

	var err error
	if g.gen.Batched() {
		err = g.runBatched(ctx, pool, target, st, obs)
	} else {
		err = g.runUnbatched(ctx, pool, target, st, obs)
	}
	obs.End(err)
	if err != nil {
		return nil, err
	}

	g.logger.Infof("generated %d records, %d outputs failed to parse", len(st.records), st.failures)
	return st.records, nil
}

// runBatched requests, per round, as many fresh entries as records are
// still missing. The cursor skips every entry attempted so far.
func (g *PromptGenerator) runBatched(
	ctx context.Context,
	pool []domain.PoolEntry,
	target int,
	st *generationState,
	obs *middleware.StageObserver,
) error {
	for len(st.records) < target {
		start := st.failures + len(st.records)
		if start >= len(pool) {
			return g.exhausted(pool, target, st)
		}
		end := min(start+target-len(st.records), len(pool))
		batch := pool[start:end]

		prompts := make([]ports.Prompt, len(batch))
		for i, entry := range batch {
			p, err := g.build(entry)
			if err != nil {
				return fmt.Errorf("building prompt for pool entry %d: %w", start+i, err)
			}
			prompts[i] = p
		}

		outputs, err := g.gen.BatchGenerate(ctx, prompts)
		if err != nil {
			return fmt.Errorf("generation round at pool entry %d: %w", start, err)
		}
		if len(outputs) != len(prompts) {
			return domain.NewLengthMismatch("generate prompts", "len(outputs) == len(prompts)", len(prompts), len(outputs))
		}
		st.cursor = end
		g.metrics.RecordCounter(ports.MetricGenerationRounds, 1, map[string]string{"mode": "batched"})

		failed := 0
		for i, out := range outputs {
			if !g.accept(out, batch[i], st) {
				failed++
			}
		}
		g.reportProgress(st, target)
		obs.Progress(len(st.records), target)
		if len(st.records) < target {
			g.logger.Infof("%d outputs failed to parse this round, retrying %d with fresh combinations",
				failed, target-len(st.records))
		}
	}
	return nil
}

// runUnbatched issues one request per attempt. The cursor moves past every
// attempted entry whether or not its output parsed.
func (g *PromptGenerator) runUnbatched(
	ctx context.Context,
	pool []domain.PoolEntry,
	target int,
	st *generationState,
	obs *middleware.StageObserver,
) error {
	for len(st.records) < target {
		if st.cursor >= len(pool) {
			return g.exhausted(pool, target, st)
		}
		entry := pool[st.cursor]
		prompt, err := g.build(entry)
		if err != nil {
			return fmt.Errorf("building prompt for pool entry %d: %w", st.cursor, err)
		}

		out, err := g.gen.Generate(ctx, prompt)
		if err != nil {
			return fmt.Errorf("generation at pool entry %d: %w", st.cursor, err)
		}
		st.cursor++
		g.metrics.RecordCounter(ports.MetricGenerationRounds, 1, map[string]string{"mode": "unbatched"})

		if g.accept(out, entry, st) {
			g.reportProgress(st, target)
			obs.Progress(len(st.records), target)
		} else {
			g.logger.Debugf("output for pool entry %d failed to parse, moving to the next combination", st.cursor-1)
		}
	}
	return nil
}

// accept parses out and, on success, appends a record carrying the entry's
// provenance.
func (g *PromptGenerator) accept(out string, entry domain.PoolEntry, st *generationState) bool {
	fields, ok := g.parse(out)
	if !ok {
		st.failures++
		g.metrics.RecordCounter(ports.MetricParseFailures, 1, map[string]string{"stage": ports.StageMetaPrompt})
		return false
	}
	rec := make(domain.Record, len(fields)+1)
	for k, v := range fields {
		rec[k] = v
	}
	rec[domain.FieldMetadata] = entry.Metadata()
	st.records = append(st.records, rec)
	return true
}

func (g *PromptGenerator) reportProgress(st *generationState, target int) {
	g.metrics.RecordGauge(ports.MetricGenerationProgress, float64(len(st.records)),
		map[string]string{"task": g.label})
	g.logger.Infow("generation progress",
		"task", g.label, "done", len(st.records), "target", target,
		"failures", st.failures, "cursor", st.cursor)
}

func (g *PromptGenerator) exhausted(pool []domain.PoolEntry, target int, st *generationState) error {
	return fmt.Errorf("%d of %d records after %d failures: %w", len(st.records), target, st.failures,
		&domain.PreconditionError{
			Op:        "generate prompts",
			Condition: "cursor < len(pool)",
			Want:      len(pool),
			Got:       st.cursor,
			Err:       domain.ErrPoolExhausted,
		})
}

// MetaPromptBuilder renders a task's meta prompt for each entry and
// attaches the entry's image.
func MetaPromptBuilder(task *tasks.Task) BuildFunc {
	return func(entry domain.PoolEntry) (ports.Prompt, error) {
		text, err := task.RenderMetaPrompt(entry.Combination)
		if err != nil {
			return ports.Prompt{}, err
		}
		return ports.Prompt{Text: text, Image: entry.Image}, nil
	}
}

// BuildPool expands the task's combinations into a pool. Text tasks get
// one entry per combination, shuffled with seed. Multimodal tasks pair
// every image with every combination, image-major, in directory order.
func BuildPool(task *tasks.Task, images []storage.Image, seed int) ([]domain.PoolEntry, error) {
	combos, err := task.Combinations()
	if err != nil {
		return nil, err
	}

	if task.Multimodal() {
		if len(images) == 0 {
			return nil, fmt.Errorf("task %s needs an image directory: %w", task.Name(), domain.ErrInvalidConfiguration)
		}
		pool := make([]domain.PoolEntry, 0, len(images)*len(combos))
		for _, img := range images {
			for _, c := range combos {
				pool = append(pool, domain.PoolEntry{Combination: c, ImageRef: img.Name, Image: img.DataURL})
			}
		}
		return pool, nil
	}

	pool := make([]domain.PoolEntry, len(combos))
	for i, c := range combos {
		pool[i] = domain.PoolEntry{Combination: c}
	}
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool, nil
}
