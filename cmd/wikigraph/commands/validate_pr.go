package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var validatePRFileName string

// validatePRCmd feeds a unified diff read from stdin to the PR-validation
// prompt and prints the model's verdict, giving CI a way to call
// ServiceAPI.ValidatePRDiff without standing up the rest of the pipeline.
var validatePRCmd = &cobra.Command{
	Use:   "validate-pr",
	Short: "Ask the LLM to review a unified diff against the graph's conventions",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}

		diffBytes, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("commands: read diff: %w", err)
		}

		verdict := p.llm.ValidatePRDiff(cmd.Context(), string(diffBytes), validatePRFileName)
		fmt.Fprintln(cmd.OutOrStdout(), verdict)
		return nil
	},
}

func init() {
	validatePRCmd.Flags().StringVar(&validatePRFileName, "file", "", "name of the file the diff touches")
	validatePRCmd.SetIn(os.Stdin)
}
