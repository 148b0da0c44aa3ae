package application

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ahrav/go-zsb/infrastructure/storage"
	"github.com/ahrav/go-zsb/infrastructure/tasks"
	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/log"
	"github.com/ahrav/go-zsb/internal/ports"
	"github.com/ahrav/go-zsb/internal/testutils"
)

// testPool returns n entries whose combination carries its own index.
func testPool(n int) []domain.PoolEntry {
	pool := make([]domain.PoolEntry, n)
	for i := range pool {
		pool[i] = domain.PoolEntry{Combination: domain.Combination{"id": fmt.Sprintf("e%d", i)}}
	}
	return pool
}

func buildByID(entry domain.PoolEntry) (ports.Prompt, error) {
	return ports.Prompt{Text: entry.Combination["id"], Image: entry.Image}, nil
}

// parseUnlessBad accepts any output that does not start with "bad".
func parseUnlessBad(raw string) (map[string]string, bool) {
	if strings.HasPrefix(raw, "bad") {
		return nil, false
	}
	return map[string]string{domain.FieldPrompt: raw}, true
}

func newTestGenerator(t *testing.T, gen ports.Generator) *PromptGenerator {
	t.Helper()
	g, err := NewPromptGenerator(gen, buildByID, parseUnlessBad, WithGeneratorLogger(log.NewNop()))
	require.NoError(t, err)
	return g
}

func promptTexts(prompts []ports.Prompt) []string {
	out := make([]string, len(prompts))
	for i, p := range prompts {
		out[i] = p.Text
	}
	return out
}

func TestPromptGenerator_BatchedShrinksRoundsAndSkipsAttempted(t *testing.T) {
	// Given a batched backend that fails to produce parseable output for
	// the second and fourth attempts
	gen := testutils.NewMockGenerator("judge").SetBatched(true).
		Enqueue("p0", "bad", "p2", "bad", "p4")
	g := newTestGenerator(t, gen)

	// When three records are requested from a pool of six
	records, err := g.Generate(context.Background(), testPool(6), 3)

	// Then rounds of 3, 1 and 1 fresh entries are issued in pool order
	require.NoError(t, err)
	assert.Equal(t, 3, gen.BatchCalls())
	assert.Equal(t, []string{"e0", "e1", "e2", "e3", "e4"}, promptTexts(gen.Prompts()))

	// And the accepted records keep acceptance order and provenance
	require.Len(t, records, 3)
	got := make([]string, len(records))
	for i, rec := range records {
		got[i] = rec[domain.FieldPrompt].(string)
	}
	assert.Equal(t, []string{"p0", "p2", "p4"}, got)
	assert.Equal(t, map[string]string{"id": "e4"}, records[2][domain.FieldMetadata])
}

// recordSpans routes the global tracer into an in-memory recorder for the
// duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

// progressEvents returns the "done" attribute of every progress event of
// the ended meta-prompt stage span.
func progressEvents(t *testing.T, rec *tracetest.SpanRecorder) []int64 {
	t.Helper()
	var done []int64
	for _, span := range rec.Ended() {
		if span.Name() != "stage."+ports.StageMetaPrompt {
			continue
		}
		for _, ev := range span.Events() {
			if ev.Name != "stage.progress" {
				continue
			}
			for _, kv := range ev.Attributes {
				if kv.Key == "done" {
					done = append(done, kv.Value.AsInt64())
				}
			}
		}
	}
	return done
}

func TestPromptGenerator_ReportsProgressEvents(t *testing.T) {
	tests := []struct {
		name    string
		batched bool
		want    []int64
	}{
		// Rounds of 3, 1 and 1 entries end with 2, 2 and 3 records.
		{name: "batched reports once per round", batched: true, want: []int64{2, 2, 3}},
		{name: "unbatched reports once per accepted record", batched: false, want: []int64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given a recorder on the global tracer
			rec := recordSpans(t)
			gen := testutils.NewMockGenerator("judge").SetBatched(tt.batched).
				Enqueue("p0", "bad", "p2", "bad", "p4")
			g := newTestGenerator(t, gen)

			// When three records are generated
			_, err := g.Generate(context.Background(), testPool(6), 3)

			// Then the stage span carries the progress of every step
			require.NoError(t, err)
			assert.Equal(t, tt.want, progressEvents(t, rec))
		})
	}
}

func TestPromptGenerator_BatchedPoolExhausted(t *testing.T) {
	// Given a pool of three where only the third output parses
	gen := testutils.NewMockGenerator("judge").SetBatched(true).Enqueue("bad", "bad", "p2")
	g := newTestGenerator(t, gen)

	// When two records are requested
	records, err := g.Generate(context.Background(), testPool(3), 2)

	// Then the run fails once every entry has been attempted
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
	assert.True(t, domain.IsFatalConfiguration(err))
	assert.Nil(t, records)
	assert.Equal(t, 2, gen.BatchCalls())
	assert.Len(t, gen.Prompts(), 3)
}

func TestPromptGenerator_UnbatchedAdvancesOnEveryAttempt(t *testing.T) {
	// Given a sequential backend alternating bad and good outputs
	gen := testutils.NewMockGenerator("judge").Enqueue("bad", "p1", "bad", "p3")
	g := newTestGenerator(t, gen)

	// When two records are requested
	records, err := g.Generate(context.Background(), testPool(5), 2)

	// Then no combination is issued twice
	require.NoError(t, err)
	assert.Equal(t, []string{"e0", "e1", "e2", "e3"}, promptTexts(gen.Prompts()))
	assert.Zero(t, gen.BatchCalls())
	require.Len(t, records, 2)
	assert.Equal(t, "p1", records[0][domain.FieldPrompt])
	assert.Equal(t, "p3", records[1][domain.FieldPrompt])
}

func TestPromptGenerator_UnbatchedPoolExhausted(t *testing.T) {
	gen := testutils.NewMockGenerator("judge").Enqueue("bad", "bad")
	g := newTestGenerator(t, gen)

	_, err := g.Generate(context.Background(), testPool(2), 1)

	assert.ErrorIs(t, err, domain.ErrPoolExhausted)
	assert.Len(t, gen.Prompts(), 2)
}

func TestPromptGenerator_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		pool    int
		target  int
		wantErr error
	}{
		{name: "target larger than pool", pool: 3, target: 5, wantErr: domain.ErrPoolExhausted},
		{name: "zero target", pool: 3, target: 0, wantErr: domain.ErrInvalidConfiguration},
		{name: "negative target", pool: 3, target: -1, wantErr: domain.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := testutils.NewMockGenerator("judge").SetBatched(true)
			g := newTestGenerator(t, gen)

			_, err := g.Generate(context.Background(), testPool(tt.pool), tt.target)

			var perr *domain.PreconditionError
			require.ErrorAs(t, err, &perr)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, gen.Prompts(), "no backend call before the precondition check")
		})
	}
}

func TestPromptGenerator_BackendErrorAborts(t *testing.T) {
	gen := testutils.NewMockGenerator("judge").SetBatched(true).FailWith(ports.ErrServiceUnavailable)
	g := newTestGenerator(t, gen)

	_, err := g.Generate(context.Background(), testPool(3), 2)

	assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
	assert.False(t, domain.IsFatalConfiguration(err))
}

func TestPromptGenerator_ImageProvenance(t *testing.T) {
	// Given a multimodal entry
	pool := []domain.PoolEntry{{
		Combination: domain.Combination{"id": "e0"},
		ImageRef:    "cat.png",
		Image:       "data:image/png;base64,AAAA",
	}}
	gen := testutils.NewMockGenerator("vlm").Enqueue("describe the cat")
	g := newTestGenerator(t, gen)

	// When it is generated
	records, err := g.Generate(context.Background(), pool, 1)

	// Then the backend sees the data URL and the record names the file
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAAA", gen.Prompts()[0].Image)
	assert.Equal(t, map[string]string{"id": "e0", domain.MetadataImage: "cat.png"}, records[0][domain.FieldMetadata])
}

func TestNewPromptGenerator_RequiresDependencies(t *testing.T) {
	_, err := NewPromptGenerator(nil, buildByID, parseUnlessBad)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = NewPromptGenerator(testutils.NewMockGenerator("m"), nil, parseUnlessBad)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestBuildPool_TextTaskIsSeededPermutation(t *testing.T) {
	task, err := tasks.Lookup("general_translation_en_de")
	require.NoError(t, err)
	combos, err := task.Combinations()
	require.NoError(t, err)

	first, err := BuildPool(task, nil, DefaultPoolSeed)
	require.NoError(t, err)
	again, err := BuildPool(task, nil, DefaultPoolSeed)
	require.NoError(t, err)
	other, err := BuildPool(task, nil, DefaultPoolSeed+1)
	require.NoError(t, err)

	assert.Equal(t, first, again, "same seed gives the same order")
	assert.NotEqual(t, first, other, "a different seed reorders the pool")

	require.Len(t, first, len(combos))
	shuffled := make([]domain.Combination, len(first))
	for i, e := range first {
		shuffled[i] = e.Combination
		assert.Empty(t, e.Image)
	}
	assert.ElementsMatch(t, combos, shuffled)
}

func TestBuildPool_MultimodalIsImageMajor(t *testing.T) {
	task, err := tasks.Lookup("m_vlm_general_purpose_chat_portuguese")
	require.NoError(t, err)
	images := []storage.Image{
		{Name: "a.png", DataURL: "data:image/png;base64,QQ=="},
		{Name: "b.png", DataURL: "data:image/png;base64,Qg=="},
	}

	pool, err := BuildPool(task, images, DefaultPoolSeed)

	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "a.png", pool[0].ImageRef)
	assert.Equal(t, "data:image/png;base64,Qg==", pool[1].Image)
	assert.Equal(t, "Portuguese (Portugal)", pool[0].Combination["language"])

	_, err = BuildPool(task, nil, DefaultPoolSeed)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestMetaPromptBuilder(t *testing.T) {
	task, err := tasks.Lookup("m_vlm_general_purpose_chat_chinese_s")
	require.NoError(t, err)
	build := MetaPromptBuilder(task)

	p, err := build(domain.PoolEntry{
		Combination: domain.Combination{"language": "Chinese (Simplified)"},
		Image:       "data:image/png;base64,QQ==",
	})

	require.NoError(t, err)
	assert.Contains(t, p.Text, "Chinese (Simplified)")
	assert.Equal(t, "data:image/png;base64,QQ==", p.Image)
}
