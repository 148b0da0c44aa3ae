package ports

import "github.com/ahrav/go-zsb/internal/domain"

// OutputParser turns raw model outputs of a task into structured values.
// Implementations are pure and hold no state.
type OutputParser interface {
	// ParseMetaPromptOutput extracts the fields of a generated prompt. The
	// boolean is false when any required section is missing; callers retry
	// with a fresh combination.
	ParseMetaPromptOutput(raw string) (map[string]string, bool)

	// ParseDirectAssessmentOutput parses a scalar judgment. On failure the
	// score is domain.FallbackScore and ScoreOK is false.
	ParseDirectAssessmentOutput(raw string) domain.ScoreJudgment

	// ParseRelativeOutput parses a pairwise judgment in display-position
	// terms. Re-mapping to original identity is the caller's job.
	ParseRelativeOutput(raw string) domain.RelativeJudgment
}
