// Package commands is the wikigraph cobra command tree: harvest, merge,
// maintain, run, and list add, one subcommand per pipeline stage (spec §2.5),
// grounded on teranos-QNTX's cmd/qntx command-tree convention.
package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wikigraph",
	Short: "Wikipedia-sourced knowledge-graph construction pipeline",
	Long: `wikigraph harvests Wikipedia articles, extracts typed entities and
relationships via an LLM, merges them into a master knowledge graph keyed by
Wikidata Q-codes, and runs a periodic deep-maintenance pass over the result.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to wikigraph.yaml (defaults are used if omitted)")
	rootCmd.AddCommand(harvestCmd, mergeCmd, maintainCmd, runCmd, listCmd, validatePRCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
