package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-zsb/infrastructure/tasks"
)

func newTasksCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List the registered tasks and the judgments they support",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODALITY\tJUDGMENTS\tDESCRIPTION")
			for _, name := range tasks.Names() {
				task, err := tasks.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, modality(task), protocols(task), task.Description())
			}
			return w.Flush()
		},
	}
}

func modality(t *tasks.Task) string {
	if t.Multimodal() {
		return "image+text"
	}
	return "text"
}

func protocols(t *tasks.Task) string {
	var out []string
	if t.SupportsDirectAssessment(false) {
		out = append(out, "da")
	}
	if t.SupportsDirectAssessment(true) {
		out = append(out, "da-ref")
	}
	if t.SupportsRelative() {
		out = append(out, "pairwise")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}
