package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
	"github.com/papercomputeco/parley/pkg/compose"
	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/gateway"
)

const chatLongDesc string = `Chat with the configured model in the terminal.

Type a message and press Enter to send it. Commands:
  /attach <path>   attach a file to the next message
  /clear           clear the conversation
  /usage           show the tokens used so far
  /quit            leave

When standard output is not a terminal, chat reads one message per line
from standard input and prints each reply.

Examples:
  parley chat
  echo "What is a Merkle DAG?" | parley chat --db -`

const chatShortDesc string = "Chat in the terminal"

type chatCommander struct {
	plain   bool
	dbPath  string
	logFile string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Read and print plain lines instead of the full-screen interface")
	cmd.Flags().StringVar(&cmder.dbPath, "db", "", "Path to SQLite database, \"-\" for in-memory")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", filepath.Join(config.Dir(), "chat.log"), "File receiving logs while chatting")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logOut, err := openLog(c.logFile)
	if err != nil {
		return err
	}
	defer logOut.Close()

	opts := bootstrap.OptionsFromFlags(cmd)
	opts.DBPath = c.dbPath
	opts.LogOutput = logOut

	rt, err := bootstrap.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	if c.plain || !isTerminal(cmd.OutOrStdout()) {
		return runLines(ctx, rt.Gateway, rt.Toasts, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}
	m := newModel(ctx, rt.Gateway, rt.Toasts, rt.Config.Primary.Model, style)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func openLog(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{io.Discard}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// command is a parsed slash command.
type command struct {
	name string
	arg  string
}

func parseCommand(line string) (command, bool) {
	if !strings.HasPrefix(line, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// errQuit ends a session.
var errQuit = errors.New("quit")

// execute runs a slash command and returns the line to show for it.
func execute(ctx context.Context, gw *gateway.Gateway, cmd command) (string, error) {
	switch cmd.name {
	case "quit", "exit", "q":
		return "", errQuit
	case "clear":
		if err := gw.Clear(ctx); err != nil {
			return "", err
		}
		return "History cleared.", nil
	case "usage":
		return fmt.Sprintf("Tokens used: %d", gw.TotalTokens()), nil
	case "attach":
		if cmd.arg == "" {
			return "", errors.New("usage: /attach <path>")
		}
		data, err := os.ReadFile(cmd.arg)
		if err != nil {
			return "", fmt.Errorf("could not read %s: %w", cmd.arg, err)
		}
		a, err := gw.AttachFile(filepath.Base(cmd.arg), data)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Attached %s (%d pending)", a.Name, len(gw.Pending())), nil
	default:
		return "", fmt.Errorf("unknown command /%s", cmd.name)
	}
}

// runLines is the non-interactive chat: one message per input line.
func runLines(ctx context.Context, gw *gateway.Gateway, toasts *gateway.ToastLog, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), compose.MaxAttachmentBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if cmd, ok := parseCommand(line); ok {
			msg, err := execute(ctx, gw, cmd)
			switch {
			case errors.Is(err, errQuit):
				return nil
			case err != nil:
				fmt.Fprintf(out, "error: %v\n", err)
			default:
				fmt.Fprintln(out, msg)
			}
			toasts.Drain()
			continue
		}

		reply, err := gw.Send(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "%s\n\n", reply.Content)

		for _, t := range toasts.Drain() {
			if t.Destructive {
				fmt.Fprintf(out, "! %s: %s\n", t.Title, t.Description)
			}
		}
	}
	return scanner.Err()
}
