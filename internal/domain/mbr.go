package domain

import "fmt"

// UtilityPair is one entry of the utility workload: a hypothesis candidate
// scored against a reference candidate for the same source item.
type UtilityPair struct {
	// Item is the source index.
	Item int
	// Hypothesis and Reference are sample indices in [0, n).
	Hypothesis int
	Reference  int

	Source         string
	HypothesisText string
	ReferenceText  string
}

// Selection is the candidate chosen for one source item.
type Selection struct {
	Item int
	// Index is the sample index of the chosen candidate.
	Index     int
	Candidate string
	Utility   float64
	// ExpectedUtilities is the full per-candidate vector for this item.
	ExpectedUtilities []float64
}

// MBRResult is the outcome of one MBR run.
type MBRResult struct {
	Selections []Selection
	// ExpectedUtilities is flat, indexed by item*n + sample.
	ExpectedUtilities []float64
	// Scores holds the raw pair utilities in workload order.
	Scores []int
	// Fallbacks counts utility scores that could not be parsed.
	Fallbacks int
}

// BestCandidates returns the selected candidate of every item in order.
func (r *MBRResult) BestCandidates() []string {
	out := make([]string, len(r.Selections))
	for i, s := range r.Selections {
		out[i] = s.Candidate
	}
	return out
}

// BestUtilities returns the expected utility of every selection in order.
func (r *MBRResult) BestUtilities() []float64 {
	out := make([]float64, len(r.Selections))
	for i, s := range r.Selections {
		out[i] = s.Utility
	}
	return out
}

// CheckCandidateCount verifies that candidates hold exactly n samples per
// source.
func CheckCandidateCount(sources, candidates []string, n int) error {
	if n < 1 {
		return &PreconditionError{
			Op: "mbr", Condition: "n >= 1", Want: 1, Got: n, Err: ErrInvalidConfiguration,
		}
	}
	if len(candidates) != len(sources)*n {
		return NewLengthMismatch("mbr", "len(candidates) == len(sources)*n", len(sources)*n, len(candidates))
	}
	return nil
}

// ExpandPairs builds the M·n² workload: for every item, every candidate
// as hypothesis against every candidate as reference, self-pairs included.
// Pairs are ordered item-major, then hypothesis, then reference.
func ExpandPairs(sources, candidates []string, n int) ([]UtilityPair, error) {
	if err := CheckCandidateCount(sources, candidates, n); err != nil {
		return nil, err
	}

	pairs := make([]UtilityPair, 0, len(sources)*n*n)
	for item, src := range sources {
		group := candidates[item*n : (item+1)*n]
		for h, hyp := range group {
			for r, ref := range group {
				pairs = append(pairs, UtilityPair{
					Item:           item,
					Hypothesis:     h,
					Reference:      r,
					Source:         src,
					HypothesisText: hyp,
					ReferenceText:  ref,
				})
			}
		}
	}
	return pairs, nil
}

// ExpectedUtilities averages every run of n consecutive scores. Applied to
// a hypothesis-major workload it yields one value per (item, hypothesis).
func ExpectedUtilities(scores []int, n int) ([]float64, error) {
	if n < 1 || len(scores)%n != 0 {
		return nil, fmt.Errorf("expected utilities over %d scores with n=%d: %w", len(scores), n, ErrLengthMismatch)
	}
	out := make([]float64, 0, len(scores)/n)
	for i := 0; i < len(scores); i += n {
		sum := 0
		for _, s := range scores[i : i+n] {
			sum += s
		}
		out = append(out, float64(sum)/float64(n))
	}
	return out, nil
}

// ArgBest returns the index of the best value. Ties resolve to the first
// occurrence. It panics on an empty slice.
func ArgBest(values []float64, biggerIsBetter bool) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if (biggerIsBetter && values[i] > values[best]) || (!biggerIsBetter && values[i] < values[best]) {
			best = i
		}
	}
	return best
}

// SelectBest picks one candidate per item from flat expected utilities.
func SelectBest(candidates []string, expected []float64, n int, biggerIsBetter bool) ([]Selection, error) {
	if n < 1 || len(expected) != len(candidates) || len(expected)%n != 0 {
		return nil, NewLengthMismatch("select", "len(expected) == len(candidates), multiple of n", len(candidates), len(expected))
	}

	selections := make([]Selection, 0, len(expected)/n)
	for start := 0; start < len(expected); start += n {
		vec := expected[start : start+n]
		idx := ArgBest(vec, biggerIsBetter)
		selections = append(selections, Selection{
			Item:              start / n,
			Index:             idx,
			Candidate:         candidates[start+idx],
			Utility:           vec[idx],
			ExpectedUtilities: append([]float64(nil), vec...),
		})
	}
	return selections, nil
}
