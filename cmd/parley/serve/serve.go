package servecmder

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
	"github.com/papercomputeco/parley/pkg/mcpserver"
	"github.com/papercomputeco/parley/server"
)

const serveLongDesc string = `Run the parley HTTP API.

Serves chat, attachments, voice control, transcript export, the
conversation DAG and an MCP endpoint at /mcp. Voice input is fed by a
browser recogniser posting to /api/voice/events.

Examples:
  parley serve
  parley serve --listen 127.0.0.1:9090 --db ~/.parley/parley.db`

const serveShortDesc string = "Run the parley HTTP API"

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	listenAddr string
	dbPath     string
	version    string
}

func NewServeCmd(version string) *cobra.Command {
	cmder := &serveCommander{version: version}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cmd, nil)
		},
	}

	cmd.Flags().StringVarP(&cmder.listenAddr, "listen", "l", "", "Address to listen on (overrides the configuration)")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to SQLite database, \"-\" for in-memory")

	return cmd
}

// run serves until ctx is cancelled. A non-nil ln is used instead of the
// configured address.
func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command, ln net.Listener) error {
	opts := bootstrap.OptionsFromFlags(cmd)
	opts.DBPath = c.dbPath

	rt, err := bootstrap.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	listenAddr := rt.Config.Server.ListenAddr
	if c.listenAddr != "" {
		listenAddr = c.listenAddr
	}

	v := rt.Voice()
	mcp := mcpserver.New(rt.Gateway, c.version, rt.Logger)

	srv, err := server.New(server.Config{ListenAddr: listenAddr}, server.Deps{
		Gateway: rt.Gateway,
		Storer:  rt.Storer,
		Machine: v.Machine,
		Feed:    v.Feed,
		Speaker: v.Speaker,
		Draft:   v.Draft,
		Toasts:  rt.Toasts,
		MCP:     mcpserver.Handler(mcp),
		Logger:  rt.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	go func() {
		err := rt.Settings.Watch(ctx, func() {
			rt.Logger.Info("preferences changed on disk")
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			rt.Logger.Warn("stopped watching preferences", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if ln != nil {
			errCh <- srv.RunWithListener(ln)
			return
		}
		errCh <- srv.Run()
	}()

	rt.Logger.Info("parley serving",
		zap.String("listen", listenAddr),
		zap.String("model", rt.Config.Primary.Model),
		zap.String("db", rt.Config.Storage.DBPath),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	rt.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
