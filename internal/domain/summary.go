package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ScoreSummary aggregates the scalar judgments of one run.
type ScoreSummary struct {
	Count  int
	Mean   float64
	Median float64
	// Distribution counts records per score.
	Distribution map[int]int
}

// SummarizeScores aggregates the judgement column of direct-assessment or
// safety records. Fallback scores are included; they are real outputs of
// the run.
func SummarizeScores(records []Record) (ScoreSummary, error) {
	if len(records) == 0 {
		return ScoreSummary{}, fmt.Errorf("summarizing scores: %w", ErrEmptyValue)
	}

	scores := make([]int, len(records))
	dist := make(map[int]int)
	sum := 0
	for i, rec := range records {
		s, ok := intValue(rec[FieldJudgement])
		if !ok {
			return ScoreSummary{}, fmt.Errorf("record %d judgement %v is not an integer: %w",
				i, rec[FieldJudgement], ErrInvalidConfiguration)
		}
		scores[i] = s
		dist[s]++
		sum += s
	}

	slices.Sort(scores)
	mid := len(scores) / 2
	median := float64(scores[mid])
	if len(scores)%2 == 0 {
		median = float64(scores[mid-1]+scores[mid]) / 2
	}
	return ScoreSummary{
		Count:        len(scores),
		Mean:         float64(sum) / float64(len(scores)),
		Median:       median,
		Distribution: dist,
	}, nil
}

// PairwiseSummary counts pairwise verdicts in original-answer terms.
type PairwiseSummary struct {
	WinsA int
	WinsB int
}

// WinRateA is the share of comparisons won by answer A, or zero when there
// were none.
func (s PairwiseSummary) WinRateA() float64 {
	total := s.WinsA + s.WinsB
	if total == 0 {
		return 0
	}
	return float64(s.WinsA) / float64(total)
}

// SummarizePairwise tallies the judgement column of pairwise records.
func SummarizePairwise(records []Record) (PairwiseSummary, error) {
	var s PairwiseSummary
	for i, rec := range records {
		switch rec[FieldJudgement] {
		case LabelA:
			s.WinsA++
		case LabelB:
			s.WinsB++
		default:
			return PairwiseSummary{}, fmt.Errorf("record %d judgement %v is not %q or %q: %w",
				i, rec[FieldJudgement], LabelA, LabelB, ErrInvalidConfiguration)
		}
	}
	return s, nil
}

// intValue accepts the integer shapes a judgement takes in memory and after
// a JSONL round trip.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
