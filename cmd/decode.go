package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/TFMV/fsjson/internal/emit"
	"github.com/TFMV/fsjson/internal/stream"
	"github.com/TFMV/fsjson/internal/watch"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Decode command options
	decodeJSON    bool
	decodeNoColor bool
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Print a record stream in readable form",
	Long: `Read records written by fsjson, back to back or one per line, and print
one readable line per record. Reads standard input when no file is given.

Examples:
  fsjson /path/to/watch | fsjson decode
  fsjson decode captured.json
  fsjson /path/to/watch | fsjson decode --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) > 0 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("error opening %s: %w", args[0], err)
			}
			defer f.Close()
			in = f
		}
		return runDecode(in, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Print one JSON record per line instead of text")
	decodeCmd.Flags().BoolVar(&decodeNoColor, "no-color", false, "Disable colored output")
}

func runDecode(in io.Reader, out io.Writer) error {
	dec := stream.NewDecoder(in)

	if decodeJSON {
		sink := emit.NewStreamSink(out, true)
		return dec.Each(func(rec watch.Record) error {
			return sink.Write(context.Background(), rec)
		})
	}

	formatter := stream.NewFormatter(out, !decodeNoColor && !color.NoColor)
	return dec.Each(formatter.Print)
}
