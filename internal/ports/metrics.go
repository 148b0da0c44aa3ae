package ports

// Pipeline metric names understood by every MetricsCollector. Backend
// request metrics are defined next to the middleware that records them.
const (
	// MetricGenerationRounds counts backend rounds of the prompt generator,
	// labelled by mode ("batched" or "unbatched").
	MetricGenerationRounds = "zsb_generation_rounds_total"

	// MetricGenerationProgress is the number of accepted records so far,
	// labelled by task.
	MetricGenerationProgress = "zsb_generation_progress"

	// MetricParseFailures counts outputs that could not be parsed, labelled
	// by stage.
	MetricParseFailures = "zsb_parse_failures_total"

	// MetricJudgmentFallbacks counts judgment fields replaced by a fallback,
	// labelled by protocol and field.
	MetricJudgmentFallbacks = "zsb_judgment_fallbacks_total"

	// MetricMBRPairs counts scored utility pairs, labelled by scorer.
	MetricMBRPairs = "zsb_mbr_pairs_total"

	// MetricUtilityFallbacks counts utility scores drawn at random because
	// the judge output was unparseable, labelled by scorer.
	MetricUtilityFallbacks = "zsb_utility_fallbacks_total"

	// MetricStageLatency is the wall time of a pipeline stage, labelled by
	// stage.
	MetricStageLatency = "zsb_stage_duration_seconds"
)

// Stage and protocol label values.
const (
	StageMetaPrompt       = "meta_prompt"
	StageAnswers          = "answers"
	StageCandidates       = "candidates"
	StageMBR              = "mbr"
	StageDirectAssessment = "direct_assessment"
	StagePairwise         = "pairwise"
	StageSafety           = "safety"
)
