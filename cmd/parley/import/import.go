package importcmder

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
)

const importLongDesc string = `Import a JSON transcript as the current conversation.

The transcript replaces the conversation and is stored as a new branch
of the conversation DAG, so earlier conversations stay reachable.
"-" reads the transcript from stdin.

Examples:
  parley import parley-chat-2025-01-02.json
  cat chat.json | parley import -`

const importShortDesc string = "Import a JSON transcript"

type importCommander struct {
	dbPath string
}

func NewImportCmd() *cobra.Command {
	cmder := &importCommander{}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: importShortDesc,
		Long:  importLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to SQLite database")

	return cmd
}

func (c *importCommander) run(ctx context.Context, cmd *cobra.Command, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("could not read transcript: %w", err)
	}

	opts := bootstrap.OptionsFromFlags(cmd)
	opts.DBPath = c.dbPath
	opts.LogOutput = io.Discard

	rt, err := bootstrap.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	n, err := rt.Gateway.Import(ctx, data)
	if err != nil {
		return fmt.Errorf("could not import %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d messages (head %s)\n", n, rt.Gateway.Head())
	return nil
}
