package mcpcmder

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
	"github.com/papercomputeco/parley/pkg/mcpserver"
)

const mcpLongDesc string = `Serve the conversation as MCP tools over stdio.

Exposes send_message, get_usage, clear_history and list_messages to an
MCP client that launches parley as a subprocess. Logs go to stderr.

Example client configuration:
  {"command": "parley", "args": ["mcp"]}`

const mcpShortDesc string = "Serve MCP tools over stdio"

type mcpCommander struct {
	dbPath  string
	version string
}

func NewMCPCmd(version string) *cobra.Command {
	cmder := &mcpCommander{version: version}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cmd, &mcp.StdioTransport{})
		},
	}

	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to SQLite database, \"-\" for in-memory")

	return cmd
}

func (c *mcpCommander) run(ctx context.Context, cmd *cobra.Command, transport mcp.Transport) error {
	opts := bootstrap.OptionsFromFlags(cmd)
	opts.DBPath = c.dbPath
	opts.LogOutput = cmd.ErrOrStderr()

	rt, err := bootstrap.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	server := mcpserver.New(rt.Gateway, c.version, rt.Logger)
	rt.Logger.Info("serving MCP over stdio", zap.String("model", rt.Config.Primary.Model))

	if err := server.Run(ctx, transport); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
