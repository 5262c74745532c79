package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
	chatcmder "github.com/papercomputeco/parley/cmd/parley/chat"
	exportcmder "github.com/papercomputeco/parley/cmd/parley/export"
	importcmder "github.com/papercomputeco/parley/cmd/parley/import"
	keycmder "github.com/papercomputeco/parley/cmd/parley/key"
	mcpcmder "github.com/papercomputeco/parley/cmd/parley/mcp"
	mergecmder "github.com/papercomputeco/parley/cmd/parley/merge"
	pushcmder "github.com/papercomputeco/parley/cmd/parley/push"
	servecmder "github.com/papercomputeco/parley/cmd/parley/serve"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const rootLongDesc string = `parley is a conversational gateway with voice I/O.

It sends chat messages to OpenRouter, falls back to Gemini once when the
primary is rate limited, explains every failure in the conversation, and
keeps a content-addressed history of every exchange.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "parley",
		Short:         "Conversational gateway with voice I/O",
		Long:          rootLongDesc,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	bootstrap.AddFlags(cmd)

	cmd.AddCommand(
		servecmder.NewServeCmd(version),
		chatcmder.NewChatCmd(),
		exportcmder.NewExportCmd(),
		importcmder.NewImportCmd(),
		mergecmder.NewMergeCmd(),
		pushcmder.NewPushCmd(),
		mcpcmder.NewMCPCmd(version),
		keycmder.NewKeyCmd(),
	)

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
