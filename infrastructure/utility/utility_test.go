package utility

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/log"
	"github.com/ahrav/go-zsb/internal/testutils"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int
		wantOK bool
	}{
		{"marker", "Feedback: well done [RESULT] 4", 4, true},
		{"last marker wins", "[RESULT] 2 on reflection [RESULT] 5", 5, true},
		{"no marker", " 3\n", 3, true},
		{"full-width digit", "Good. [RESULT] ５", 5, true},
		{"trailing prose", "[RESULT] 4 out of 5", 0, false},
		{"empty after marker", "Feedback [RESULT]", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseResult(tt.raw)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrometheusScorer_Score(t *testing.T) {
	// Given a judge that answers two of three pairs cleanly
	gen := testutils.NewMockGenerator("judge").Enqueue(
		"Feedback: accurate. [RESULT] 5",
		"I cannot grade this.",
		"Feedback: weak. [RESULT] 2",
	)
	scorer, err := NewPrometheusScorer(gen,
		WithLogger(log.NewNop()),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	)
	require.NoError(t, err)

	pairs, err := domain.ExpandPairs([]string{"Translate: hello"}, []string{"olá", "oi"}, 2)
	require.NoError(t, err)

	// When scoring the first three pairs
	scores, fallbacks, err := scorer.Score(context.Background(), pairs[:3])

	// Then the unparseable output falls back to a score in range
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, 5, scores[0])
	assert.GreaterOrEqual(t, scores[1], MinScore)
	assert.LessOrEqual(t, scores[1], MaxScore)
	assert.Equal(t, 2, scores[2])
	assert.Equal(t, 1, fallbacks)

	// And the whole workload went to the backend as one batch
	assert.Equal(t, 1, gen.BatchCalls())
	prompts := gen.Prompts()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[1].Text, "###The instruction to evaluate:\nTranslate: hello\n")
	assert.Contains(t, prompts[1].Text, "###Response to evaluate:\nolá\n")
	assert.Contains(t, prompts[1].Text, "###Reference Answer (Score 5):\noi\n")
}

func TestPrometheusScorer_BackendError(t *testing.T) {
	boom := errors.New("backend down")
	gen := testutils.NewMockGenerator("judge").FailWith(boom)
	scorer, err := NewPrometheusScorer(gen, WithLogger(log.NewNop()))
	require.NoError(t, err)

	_, _, err = scorer.Score(context.Background(), []domain.UtilityPair{{Source: "s"}})

	assert.ErrorIs(t, err, boom)
}

func TestPrometheusScorer_RequiresBackend(t *testing.T) {
	_, err := NewPrometheusScorer(nil)

	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestLevenshteinScorer_Score(t *testing.T) {
	scorer := NewLevenshteinScorer()
	pairs := []domain.UtilityPair{
		{HypothesisText: "kitten", ReferenceText: "sitting"},
		{HypothesisText: "Hello", ReferenceText: "hELLO"},
		{HypothesisText: "", ReferenceText: ""},
		{HypothesisText: "abc", ReferenceText: ""},
		{HypothesisText: "olá", ReferenceText: "ola"},
	}

	scores, fallbacks, err := scorer.Score(context.Background(), pairs)

	require.NoError(t, err)
	assert.Zero(t, fallbacks)
	// kitten/sitting: distance 3 over 7 runes.
	assert.Equal(t, []int{57, 100, 100, 0, 67}, scores)
}

func TestLevenshteinScorer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewLevenshteinScorer().Score(ctx, []domain.UtilityPair{{}})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	gen := testutils.NewMockGenerator("judge")

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			scorer, err := New(name, gen)
			require.NoError(t, err)
			assert.Equal(t, name, scorer.Name())
		})
	}

	assert.True(t, RequiresBackend(NamePrometheus))
	assert.False(t, RequiresBackend(NameLevenshtein))

	_, err := New("bleu", gen)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = New(NameLevenshtein, nil)
	assert.NoError(t, err)
}
