package keycmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
	"github.com/papercomputeco/parley/pkg/prefs"
)

const keyLongDesc string = `Manage the API keys parley sends to its providers.

Keys are stored in the operating system keyring when one is available
and in the preference file otherwise. Keys from the environment or the
configuration file are used when none is stored.

Providers:
  openrouter   primary chat completions provider
  gemini       fallback used after the primary is rate limited

Examples:
  parley key set openrouter
  echo "$GEMINI_API_KEY" | parley key set gemini
  parley key status
  parley key delete gemini`

const keyShortDesc string = "Manage provider API keys"

// providerKeys maps provider names to their preference keys.
var providerKeys = map[string]string{
	"openrouter": prefs.KeyPrimaryAPIKey,
	"gemini":     prefs.KeyFallbackAPIKey,
}

var providerOrder = []string{"openrouter", "gemini"}

func NewKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: keyShortDesc,
		Long:  keyLongDesc,
	}

	cmd.AddCommand(newSetCmd(), newDeleteCmd(), newStatusCmd())
	return cmd
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <provider> [key]",
		Short:     "Store an API key, read from stdin when not given",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: providerOrder,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := prefKey(args[0])
			if err != nil {
				return err
			}

			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				value, err = readKey(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return errors.New("key is empty")
			}

			p, err := open(cmd)
			if err != nil {
				return err
			}
			if err := p.Secrets.Set(name, value); err != nil {
				return fmt.Errorf("could not store key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s key %s\n", args[0], mask(value))
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "delete <provider>",
		Short:     "Delete a stored API key",
		Args:      cobra.ExactArgs(1),
		ValidArgs: providerOrder,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := prefKey(args[0])
			if err != nil {
				return err
			}
			p, err := open(cmd)
			if err != nil {
				return err
			}
			if err := p.Secrets.Delete(name); err != nil {
				return fmt.Errorf("could not delete key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s key\n", args[0])
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which API keys are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open(cmd)
			if err != nil {
				return err
			}

			fallback := map[string]string{
				"openrouter": p.Config.Primary.APIKey,
				"gemini":     p.Config.Fallback.APIKey,
			}
			for _, provider := range providerOrder {
				status := "not set"
				if v, ok, err := p.Secrets.Get(providerKeys[provider]); err == nil && ok && strings.TrimSpace(v) != "" {
					status = "stored " + mask(v)
				} else if fallback[provider] != "" {
					status = "from environment " + mask(fallback[provider])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-11s %s\n", provider, status)
			}
			return nil
		},
	}
}

func open(cmd *cobra.Command) (*bootstrap.Preferences, error) {
	opts := bootstrap.OptionsFromFlags(cmd)
	opts.LogOutput = io.Discard
	return bootstrap.OpenPreferences(opts)
}

func prefKey(provider string) (string, error) {
	key, ok := providerKeys[strings.ToLower(provider)]
	if !ok {
		return "", fmt.Errorf("unknown provider %q (want openrouter or gemini)", provider)
	}
	return key, nil
}

// readKey reads a key without echo from a terminal, or the first line of
// any other input.
func readKey(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "API key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("could not read key: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("could not read key: %w", err)
	}
	return line, nil
}

// mask keeps the first and last characters of a key.
func mask(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "…" + key[len(key)-4:]
}
