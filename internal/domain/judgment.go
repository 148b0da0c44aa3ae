package domain

// FallbackScore is the score assigned when a direct-assessment or safety
// judgment cannot be parsed. It is the worst score of every rubric.
const FallbackScore = 1

// Display labels of the pairwise protocol.
const (
	LabelA = "A"
	LabelB = "B"
)

// ScoreJudgment is a parsed direct-assessment or safety judgment.
type ScoreJudgment struct {
	Score int
	// Feedback is nil when the judge output carried no feedback.
	Feedback *string
	// ScoreOK is false when Score holds FallbackScore because the output
	// could not be parsed.
	ScoreOK bool
}

// RelativeJudgment is a parsed pairwise judgment in display-position terms.
type RelativeJudgment struct {
	// Winner is LabelA, LabelB, or empty when WinnerOK is false.
	Winner   string
	Feedback *string
	WinnerOK bool
}

// Placement records which original answer was shown in display position A.
// APlace is 0 when answer A was shown as A and 1 when it was shown as B.
type Placement struct {
	APlace int
}

// Display returns the answers in display order.
func (p Placement) Display(answerA, answerB string) (shownA, shownB string) {
	if p.APlace == 1 {
		return answerB, answerA
	}
	return answerA, answerB
}

// Remap converts a display-position label back to the original identity.
func (p Placement) Remap(label string) string {
	if p.APlace == 0 {
		return label
	}
	if label == LabelA {
		return LabelB
	}
	return LabelA
}
