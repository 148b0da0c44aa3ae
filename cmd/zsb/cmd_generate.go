package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-zsb/infrastructure/storage"
	"github.com/ahrav/go-zsb/infrastructure/tasks"
	"github.com/ahrav/go-zsb/internal/application"
	"github.com/ahrav/go-zsb/internal/domain"
)

func newPromptsCommand(a *app) *cobra.Command {
	var cfg application.GenerationConfig
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Generate synthetic benchmark prompts for a task",
		Long: `Generate synthetic prompts for a task from its attribute combinations.

Each combination is rendered into the task's meta prompt and sent to the
backend. Outputs that miss a required section are replaced by fresh
combinations until --num records exist or the pool runs out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPrompts(cmd.Context(), &cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Task, "task", "", "Task name (see 'zsb tasks')")
	cmd.Flags().IntVarP(&cfg.Target, "num", "n", 0, "Number of prompts to generate")
	cmd.Flags().IntVar(&cfg.Seed, "seed", application.DefaultPoolSeed, "Seed for shuffling the combination pool")
	cmd.Flags().StringVar(&cfg.ImageDir, "images", "", "Image directory for multimodal tasks")
	cmd.Flags().StringVarP(&cfg.Output, "output", "o", "", "Output JSONL path")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("num")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (a *app) runPrompts(ctx context.Context, cfg *application.GenerationConfig) error {
	cfg.ApplyDefaults()
	if err := a.validator.Validate(cfg); err != nil {
		return err
	}
	task, err := tasks.Lookup(cfg.Task)
	if err != nil {
		return err
	}

	var images []storage.Image
	if task.Multimodal() {
		if cfg.ImageDir == "" {
			return fmt.Errorf("task %s is multimodal and needs --images: %w", task.Name(), errUsage)
		}
		if images, err = storage.LoadImages(cfg.ImageDir); err != nil {
			return err
		}
	}
	pool, err := application.BuildPool(task, images, cfg.Seed)
	if err != nil {
		return err
	}

	gen, err := a.generator()
	if err != nil {
		return err
	}
	pg, err := application.NewPromptGenerator(gen,
		application.MetaPromptBuilder(task),
		task.Parser().ParseMetaPromptOutput,
		application.WithGeneratorMetrics(a.metrics),
		application.WithTaskLabel(task.Name()),
	)
	if err != nil {
		return err
	}
	records, err := pg.Generate(ctx, pool, cfg.Target)
	if err != nil {
		return err
	}
	return a.writeRecords(cfg.Output, records)
}

func newAnswersCommand(a *app) *cobra.Command {
	var input, output, promptField, imageDir string
	cmd := &cobra.Command{
		Use:   "answers",
		Short: "Answer every prompt of a JSONL dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := storage.ReadJSONL(input)
			if err != nil {
				return err
			}
			judge, err := a.judge(imageDir)
			if err != nil {
				return err
			}
			answered, err := judge.Answers(cmd.Context(), records, promptField)
			if err != nil {
				return err
			}
			return a.writeRecords(output, answered)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input JSONL with one prompt per record")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output JSONL path")
	cmd.Flags().StringVar(&promptField, "prompt-field", application.DefaultPromptField, "Record field holding the prompt")
	cmd.Flags().StringVar(&imageDir, "images", "", "Image directory referenced by record metadata")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newCandidatesCommand(a *app) *cobra.Command {
	var dataset, output, promptField string
	var n int
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Sample n MBR candidates per dataset prompt",
		Long: `Sample n candidates per dataset prompt in a single batch.

Candidates are written one per line, item-major, with line breaks escaped so
multi-line answers survive the round trip.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompts, err := readField(dataset, promptField)
			if err != nil {
				return err
			}
			gen, err := a.generator()
			if err != nil {
				return err
			}
			candidates, err := application.GenerateCandidates(cmd.Context(), gen, prompts, n, a.metrics)
			if err != nil {
				return err
			}
			if err := storage.WriteLines(output, candidates, true); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "wrote %d candidates for %d prompts to %s\n", len(candidates), len(prompts), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset JSONL")
	cmd.Flags().StringVar(&promptField, "prompt-field", application.DefaultPromptField, "Record field holding the prompt")
	cmd.Flags().IntVar(&n, "n", 0, "Candidates per prompt")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path for escaped candidate lines")
	_ = cmd.MarkFlagRequired("dataset")
	_ = cmd.MarkFlagRequired("n")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// readField reads one string column of a JSONL dataset.
func readField(path, field string) ([]string, error) {
	records, err := storage.ReadJSONL(path)
	if err != nil {
		return nil, err
	}
	values, err := domain.Strings(records, field)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

// judge builds a Judge on the configured backend, attaching images from
// imageDir when given.
func (a *app) judge(imageDir string) (*application.Judge, error) {
	images, err := imageIndex(imageDir)
	if err != nil {
		return nil, err
	}
	gen, err := a.generator()
	if err != nil {
		return nil, err
	}
	return application.NewJudge(gen, application.WithJudgeMetrics(a.metrics), application.WithImages(images))
}
