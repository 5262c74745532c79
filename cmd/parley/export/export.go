package exportcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
	"github.com/papercomputeco/parley/pkg/transcript"
)

const exportLongDesc string = `Export the current conversation.

Writes the conversation restored from the database as JSON, markdown,
HTML or plain text. Without --output the transcript is written to a file
named after the format and the current time; "-" writes to stdout.

Examples:
  parley export
  parley export --format markdown --output chat.md
  parley export -f text -o -`

const exportShortDesc string = "Export the conversation"

type exportCommander struct {
	format string
	output string
	dbPath string
}

func NewExportCmd() *cobra.Command {
	cmder := &exportCommander{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: exportShortDesc,
		Long:  exportLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.format, "format", "f", "json", "Format: json, markdown, html or text")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Output file, \"-\" for stdout")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to SQLite database")

	return cmd
}

func (c *exportCommander) run(ctx context.Context, cmd *cobra.Command) error {
	format, err := transcript.ParseFormat(c.format)
	if err != nil {
		return err
	}

	opts := bootstrap.OptionsFromFlags(cmd)
	opts.DBPath = c.dbPath
	opts.LogOutput = io.Discard

	rt, err := bootstrap.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	data, err := rt.Gateway.Export(format)
	if err != nil {
		return fmt.Errorf("could not export conversation: %w", err)
	}

	if c.output == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	path := c.output
	if path == "" {
		path = transcript.FileName(format, time.Now())
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(rt.Gateway.Messages()), path)
	return nil
}
