package utility

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-zsb/internal/domain"
	"github.com/ahrav/go-zsb/internal/ports"
)

var _ ports.UtilityScorer = (*LevenshteinScorer)(nil)

// LevenshteinScorer is a local lexical utility: the normalized edit
// similarity between hypothesis and reference, scaled to [0, 100]. It needs
// no backend and never falls back.
type LevenshteinScorer struct{}

// NewLevenshteinScorer creates a case-insensitive lexical scorer.
func NewLevenshteinScorer() *LevenshteinScorer {
	return &LevenshteinScorer{}
}

func (s *LevenshteinScorer) Name() string { return NameLevenshtein }

// Score returns round(100 * (1 - distance/maxLen)) per pair, computed on
// case-folded runes. Two empty strings score 100.
func (s *LevenshteinScorer) Score(ctx context.Context, pairs []domain.UtilityPair) ([]int, int, error) {
	scores := make([]int, len(pairs))
	for i, p := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		scores[i] = s.similarity(p.HypothesisText, p.ReferenceText)
	}
	return scores, 0, nil
}

// similarity folds both strings with a fresh Caser; a Caser carries state
// and must not be shared across goroutines.
func (s *LevenshteinScorer) similarity(a, b string) int {
	folder := cases.Fold()
	a, b = folder.String(a), folder.String(b)
	if a == b {
		return 100
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(maxLen))))
}
