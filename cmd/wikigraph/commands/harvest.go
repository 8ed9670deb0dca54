package commands

import (
	"github.com/spf13/cobra"

	"github.com/Tangerg/wikigraph/internal/listprocessor"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Sample the watch list and extract new fragments via the LLM parser",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		proc := listprocessor.New(newLogger(), p.wiki, p.llm, p.cfg.ListProcessorComponentConfig(), nil)
		return proc.Run(cmd.Context(), p.list.Categories())
	},
}
