package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-zsb/infrastructure/storage"
	"github.com/ahrav/go-zsb/infrastructure/tasks"
	"github.com/ahrav/go-zsb/infrastructure/utility"
	"github.com/ahrav/go-zsb/internal/application"
	"github.com/ahrav/go-zsb/internal/ports"
)

type mbrOutputs struct {
	best      string
	utilities string
	expected  string
	scores    string
}

func newMBRCommand(a *app) *cobra.Command {
	var (
		cfg                 application.MBRConfig
		dataset, candidates string
		promptField         string
		out                 mbrOutputs
	)
	cmd := &cobra.Command{
		Use:   "mbr",
		Short: "Select one candidate per prompt by minimum Bayes risk",
		Long: `Select one candidate per prompt by minimum Bayes risk.

Every candidate is scored against every sibling of the same prompt, self
included, with the chosen utility. The candidate with the best mean utility
wins; ties go to the earliest candidate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.ApplyDefaults()
			if err := a.validator.Validate(&cfg); err != nil {
				return err
			}
			sources, err := readField(dataset, promptField)
			if err != nil {
				return err
			}
			cands, err := storage.ReadLines(candidates, true)
			if err != nil {
				return err
			}

			var gen ports.Generator
			if utility.RequiresBackend(cfg.Scorer) {
				if gen, err = a.generator(); err != nil {
					return err
				}
			}
			scorer, err := utility.New(cfg.Scorer, gen)
			if err != nil {
				return err
			}
			engine, err := application.NewMBREngine(scorer, cfg.BiggerIsBetter(), application.WithMBRMetrics(a.metrics))
			if err != nil {
				return err
			}
			res, err := engine.Run(cmd.Context(), sources, cands, cfg.N)
			if err != nil {
				return err
			}
			return a.writeMBR(res.BestCandidates(), res.BestUtilities(), res.ExpectedUtilities, res.Scores, out)
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset JSONL the candidates were sampled for")
	cmd.Flags().StringVar(&promptField, "prompt-field", application.DefaultPromptField, "Record field holding the prompt")
	cmd.Flags().StringVar(&candidates, "candidates", "", "Escaped candidate lines, n per prompt")
	cmd.Flags().IntVar(&cfg.N, "n", 0, "Candidates per prompt")
	cmd.Flags().StringVar(&cfg.Scorer, "scorer", application.DefaultScorer, "Utility scorer: levenshtein or prometheus")
	cmd.Flags().StringVar(&cfg.Policy, "policy", application.PolicyMax, "Selection policy: max or min")
	cmd.Flags().StringVar(&out.best, "best-output", "", "Output path for the selected candidates")
	cmd.Flags().StringVar(&out.utilities, "utilities-output", "", "Output path for the selected candidates' utilities")
	cmd.Flags().StringVar(&out.expected, "expected-output", "", "Output path for every candidate's expected utility")
	cmd.Flags().StringVar(&out.scores, "scores-output", "", "Optional output path for the raw pair utilities")
	for _, name := range []string{"dataset", "candidates", "n", "best-output", "utilities-output", "expected-output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) writeMBR(best []string, utilities, expected []float64, scores []int, out mbrOutputs) error {
	if err := storage.WriteLines(out.best, best, true); err != nil {
		return err
	}
	if err := storage.WriteFloats(out.utilities, utilities); err != nil {
		return err
	}
	if err := storage.WriteFloats(out.expected, expected); err != nil {
		return err
	}
	if out.scores != "" {
		if err := storage.WriteInts(out.scores, scores); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "selected %d candidates, wrote %s\n", len(best), out.best)
	return nil
}

func newJudgeBestCommand(a *app) *cobra.Command {
	var task, dataset, promptField, best, output string
	cmd := &cobra.Command{
		Use:   "judge-best",
		Short: "Grade MBR-selected candidates with a task's direct-assessment rubric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := tasks.Lookup(task)
			if err != nil {
				return err
			}
			prompts, err := readField(dataset, promptField)
			if err != nil {
				return err
			}
			answers, err := storage.ReadLines(best, true)
			if err != nil {
				return err
			}
			judge, err := a.judge("")
			if err != nil {
				return err
			}
			records, err := application.JudgeBestCandidates(cmd.Context(), judge, t, prompts, answers)
			if err != nil {
				return err
			}
			if err := a.writeRecords(output, records); err != nil {
				return err
			}
			return a.printScores(records)
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "Task whose direct-assessment rubric grades the answers")
	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset JSONL the candidates answer")
	cmd.Flags().StringVar(&promptField, "prompt-field", application.DefaultPromptField, "Record field holding the prompt")
	cmd.Flags().StringVar(&best, "best", "", "Escaped best-candidate lines written by 'zsb mbr'")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output JSONL path")
	for _, name := range []string{"task", "dataset", "best", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
