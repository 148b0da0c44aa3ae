package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-zsb/infrastructure/middleware"
	"github.com/ahrav/go-zsb/infrastructure/storage"
	"github.com/ahrav/go-zsb/infrastructure/tasks"
	"github.com/ahrav/go-zsb/internal/application"
	"github.com/ahrav/go-zsb/internal/domain"
)

func newJudgeDACommand(a *app) *cobra.Command {
	var cfg application.JudgeConfig
	var input, output, imageDir string
	cmd := &cobra.Command{
		Use:   "judge-da",
		Short: "Grade answers on a task's direct-assessment rubric",
		Long: `Grade each record's answer on the task's 1-5 rubric.

With --use-ref the reference-based rubric is used and every record must carry
a "reference" field. Unparseable judgments score 1 with null feedback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.ApplyDefaults()
			if err := a.validator.Validate(&cfg); err != nil {
				return err
			}
			task, err := tasks.Lookup(cfg.Task)
			if err != nil {
				return err
			}
			records, err := storage.ReadJSONL(input)
			if err != nil {
				return err
			}
			judge, err := a.judge(imageDir)
			if err != nil {
				return err
			}
			judged, err := judge.DirectAssessment(cmd.Context(), task, records, cfg.UseRef)
			if err != nil {
				return err
			}
			if err := a.writeRecords(output, judged); err != nil {
				return err
			}
			return a.printScores(judged)
		},
	}

	cmd.Flags().StringVar(&cfg.Task, "task", "", "Task name")
	cmd.Flags().BoolVar(&cfg.UseRef, "use-ref", false, "Grade against each record's reference")
	cmd.Flags().StringVarP(&input, "input", "i", "", "Answers JSONL")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output JSONL path")
	cmd.Flags().StringVar(&imageDir, "images", "", "Image directory referenced by record metadata")
	for _, name := range []string{"task", "input", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newJudgePairwiseCommand(a *app) *cobra.Command {
	var cfg application.JudgeConfig
	var answersA, answersB, output, imageDir string
	cmd := &cobra.Command{
		Use:   "judge-pairwise",
		Short: "Compare two answer sets prompt by prompt",
		Long: `Compare two aligned answer sets prompt by prompt.

The display order of each pair is drawn from a per-item seeded shuffle so
position bias cancels out; the verdict is reported for the original answers
and "real_a_place" records where answer A was shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.ApplyDefaults()
			if err := a.validator.Validate(&cfg); err != nil {
				return err
			}
			task, err := tasks.Lookup(cfg.Task)
			if err != nil {
				return err
			}
			recordsA, err := storage.ReadJSONL(answersA)
			if err != nil {
				return err
			}
			recordsB, err := storage.ReadJSONL(answersB)
			if err != nil {
				return err
			}
			judge, err := a.judge(imageDir)
			if err != nil {
				return err
			}
			swap := middleware.NewPositionSwap(task.Name(), cfg.Seed, nil)
			judged, err := judge.Pairwise(cmd.Context(), task, recordsA, recordsB, swap)
			if err != nil {
				return err
			}
			if err := a.writeRecords(output, judged); err != nil {
				return err
			}
			return a.printPairwise(judged)
		},
	}

	cmd.Flags().StringVar(&cfg.Task, "task", "", "Task name")
	cmd.Flags().IntVar(&cfg.Seed, "seed", application.DefaultPlacementSeed, "Base seed of the placement shuffle")
	cmd.Flags().StringVar(&answersA, "answers-a", "", "Answers JSONL of system A")
	cmd.Flags().StringVar(&answersB, "answers-b", "", "Answers JSONL of system B")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output JSONL path")
	cmd.Flags().StringVar(&imageDir, "images", "", "Image directory referenced by record metadata")
	for _, name := range []string{"task", "answers-a", "answers-b", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newJudgeSafetyCommand(a *app) *cobra.Command {
	var input, output, imageDir string
	cmd := &cobra.Command{
		Use:   "judge-safety",
		Short: "Rate the safety of generated prompts",
		Long: `Rate the safety of each record's prompt on a 1-6 scale.

With --images the multimodal rubric is used and each record's metadata image
is attached to the request.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := storage.ReadJSONL(input)
			if err != nil {
				return err
			}
			judge, err := a.judge(imageDir)
			if err != nil {
				return err
			}
			judged, err := judge.Safety(cmd.Context(), records, imageDir != "")
			if err != nil {
				return err
			}
			if err := a.writeRecords(output, judged); err != nil {
				return err
			}
			return a.printScores(judged)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Prompts JSONL")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output JSONL path")
	cmd.Flags().StringVar(&imageDir, "images", "", "Image directory; selects the multimodal rubric")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// printScores reports the score distribution of a graded run. Empty runs
// print nothing.
func (a *app) printScores(records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	s, err := domain.SummarizeScores(records)
	if err != nil {
		return err
	}
	keys := make([]int, 0, len(s.Distribution))
	for k := range s.Distribution {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%d:%d", k, s.Distribution[k])
	}
	fmt.Fprintf(a.out, "mean %.2f median %.1f over %d records (%s)\n",
		s.Mean, s.Median, s.Count, strings.Join(parts, " "))
	return nil
}

func (a *app) printPairwise(records []domain.Record) error {
	s, err := domain.SummarizePairwise(records)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "A wins %d, B wins %d (A win rate %.1f%%)\n", s.WinsA, s.WinsB, 100*s.WinRateA())
	return nil
}
