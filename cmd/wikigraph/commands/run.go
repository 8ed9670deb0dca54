package commands

import (
	"github.com/spf13/cobra"

	"github.com/Tangerg/wikigraph/internal/listprocessor"
)

// runCmd chains harvest -> merge -> maintain in one process, the sequential
// pipeline spec.md §2's data-flow line describes, sharing a single pipeline
// wiring instead of rebuilding the wiki client and LLM service three times.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full harvest, merge, and maintain pipeline in sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		proc := listprocessor.New(newLogger(), p.wiki, p.llm, p.cfg.ListProcessorComponentConfig(), nil)
		if err := proc.Run(ctx, p.list.Categories()); err != nil {
			return err
		}

		if err := p.newMerger().Run(ctx); err != nil {
			return err
		}

		return p.newMaintainer().Run(ctx)
	},
}
