package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tangerg/wikigraph/internal/chinese"
	"github.com/Tangerg/wikigraph/internal/config"
	"github.com/Tangerg/wikigraph/internal/liststore"
)

// listCmd is the thin CLI surface over ListStore spec.md §1 calls out as
// out of scope beyond a one-line entrypoint: it opens the list directly,
// without building the wiki client or LLM service the other subcommands need.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Manage the watch list directly",
}

var listAddLang string

var listAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a title to the watch list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		conv, err := chinese.New()
		if err != nil {
			return fmt.Errorf("commands: chinese converter: %w", err)
		}
		list, err := liststore.Open(conv, cfg.Data.ListPath)
		if err != nil {
			return fmt.Errorf("commands: open list: %w", err)
		}
		if listAddLang == "" || listAddLang == "zh" {
			return list.AddTitle(args[0])
		}
		return list.AddTitleWithLang(args[0], listAddLang)
	},
}

func init() {
	listAddCmd.Flags().StringVar(&listAddLang, "lang", "", "wiki language code for the title (default zh)")
	listCmd.AddCommand(listAddCmd)
}
