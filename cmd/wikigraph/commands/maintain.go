package commands

import (
	"github.com/spf13/cobra"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run the eight-step deep-maintenance pass over the master graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		return p.newMaintainer().Run(cmd.Context())
	},
}
