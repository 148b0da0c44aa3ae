package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPairs(t *testing.T) {
	sources := []string{"s0", "s1"}
	candidates := []string{"a", "b", "c", "d"}

	pairs, err := ExpandPairs(sources, candidates, 2)
	require.NoError(t, err)
	require.Len(t, pairs, 2*2*2, "Workload should be M·n²")

	got := make([][3]string, len(pairs))
	for i, p := range pairs {
		got[i] = [3]string{p.Source, p.HypothesisText, p.ReferenceText}
	}
	assert.Equal(t, [][3]string{
		{"s0", "a", "a"}, {"s0", "a", "b"}, {"s0", "b", "a"}, {"s0", "b", "b"},
		{"s1", "c", "c"}, {"s1", "c", "d"}, {"s1", "d", "c"}, {"s1", "d", "d"},
	}, got, "Pairs should be hypothesis-major with self-pairs")
	assert.Equal(t, 1, pairs[6].Item)
	assert.Equal(t, 1, pairs[6].Hypothesis)
	assert.Equal(t, 0, pairs[6].Reference)
}

func TestExpandPairs_Preconditions(t *testing.T) {
	tests := []struct {
		name       string
		sources    []string
		candidates []string
		n          int
		wantErr    error
	}{
		{"not a multiple", []string{"s"}, []string{"a", "b", "c"}, 2, ErrLengthMismatch},
		{"too few sources", []string{"s"}, []string{"a", "b", "c", "d"}, 2, ErrLengthMismatch},
		{"zero n", []string{"s"}, []string{"a"}, 0, ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpandPairs(tt.sources, tt.candidates, tt.n)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExpectedUtilities(t *testing.T) {
	got, err := ExpectedUtilities([]int{5, 5, 1, 1, 2, 4, 3, 3}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1, 3, 3}, got)

	_, err = ExpectedUtilities([]int{1, 2, 3}, 2)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestArgBest(t *testing.T) {
	tests := []struct {
		name           string
		values         []float64
		biggerIsBetter bool
		want           int
	}{
		{"max", []float64{1, 3, 2}, true, 1},
		{"min", []float64{1, 3, 0.5}, false, 2},
		{"max tie keeps first", []float64{2, 4, 4}, true, 1},
		{"min tie keeps first", []float64{3, 1, 1}, false, 1},
		{"single", []float64{7}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ArgBest(tt.values, tt.biggerIsBetter))
		})
	}
}

func TestSelectBest(t *testing.T) {
	candidates := []string{"A", "B", "C", "D"}
	expected := []float64{5, 1, 2, 2}

	selections, err := SelectBest(candidates, expected, 2, true)
	require.NoError(t, err)
	require.Len(t, selections, 2)

	assert.Equal(t, "A", selections[0].Candidate)
	assert.Equal(t, 5.0, selections[0].Utility)
	assert.Equal(t, []float64{5, 1}, selections[0].ExpectedUtilities)
	assert.Equal(t, "C", selections[1].Candidate, "Tie should resolve to the first candidate")

	result := &MBRResult{Selections: selections}
	assert.Equal(t, []string{"A", "C"}, result.BestCandidates())
	assert.Equal(t, []float64{5, 2}, result.BestUtilities())
}
