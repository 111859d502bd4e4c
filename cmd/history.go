package cmd

import (
	"fmt"
	"io"

	"github.com/TFMV/fsjson/internal/emit"
	"github.com/TFMV/fsjson/internal/stream"
	"github.com/TFMV/fsjson/internal/watch"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// History command options
	historyJournal string
	historyLimit   int
	historyType    string
	historyNoColor bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show events recorded in a journal",
	Long: `Show the most recent events stored by fsjson --journal, oldest first.

Examples:
  fsjson history --journal=events.db
  fsjson history --journal=events.db --limit=10 --type=moved`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyJournal, "journal", "", "SQLite journal written by fsjson --journal")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Number of events to show (0 for all)")
	historyCmd.Flags().StringVar(&historyType, "type", "", "Only show events of this type (created, modified, deleted, moved)")
	historyCmd.Flags().BoolVar(&historyNoColor, "no-color", false, "Disable colored output")
	historyCmd.MarkFlagRequired("journal")
}

func runHistory(cmd *cobra.Command, out io.Writer) error {
	var eventType watch.EventType
	if historyType != "" {
		var err error
		eventType, err = watch.ParseEventType(historyType)
		if err != nil {
			return err
		}
	}

	journal, err := emit.OpenJournal(cmd.Context(), historyJournal)
	if err != nil {
		return err
	}
	defer journal.Close()

	entries, err := journal.Recent(cmd.Context(), historyLimit, eventType)
	if err != nil {
		return err
	}

	formatter := stream.NewFormatter(out, !historyNoColor && !color.NoColor)
	for _, e := range entries {
		if err := formatter.PrintAt(e.ObservedAt, e.Record); err != nil {
			return fmt.Errorf("error writing history: %w", err)
		}
	}
	return nil
}
