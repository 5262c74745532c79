// Package bootstrap assembles parley's components from configuration for the
// sub-commands.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/config"
	"github.com/papercomputeco/parley/pkg/credential"
	"github.com/papercomputeco/parley/pkg/gateway"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/merkle"
	"github.com/papercomputeco/parley/pkg/prefs"
	"github.com/papercomputeco/parley/pkg/provider"
	"github.com/papercomputeco/parley/pkg/translate"
	"github.com/papercomputeco/parley/pkg/voice"
	"github.com/papercomputeco/parley/server"
)

// Options select the configuration and logging of a command.
type Options struct {
	ConfigPath string
	Debug      bool

	// LogOutput receives logs. Nil logs to stdout.
	LogOutput io.Writer

	// EnvFiles are loaded into the environment before it is read.
	EnvFiles []string

	// NoKeyring keeps secrets in the preference file only.
	NoKeyring bool

	// DBPath overrides the configured database. "-" keeps history in memory.
	DBPath string
}

// AddFlags registers the persistent flags read by OptionsFromFlags.
func AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", config.DefaultPath(), "Path to the configuration file")
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("no-keyring", false, "Do not use the OS keyring for API keys")
}

// OptionsFromFlags reads the persistent flags. Commands run on their own
// (without the root command) get the defaults.
func OptionsFromFlags(cmd *cobra.Command) Options {
	opts := Options{
		ConfigPath: config.DefaultPath(),
		EnvFiles:   []string{".env"},
	}
	if f := cmd.Flags().Lookup("config"); f != nil {
		opts.ConfigPath = f.Value.String()
	}
	if f := cmd.Flags().Lookup("debug"); f != nil {
		opts.Debug, _ = strconv.ParseBool(f.Value.String())
	}
	if f := cmd.Flags().Lookup("no-keyring"); f != nil {
		opts.NoKeyring, _ = strconv.ParseBool(f.Value.String())
	}
	return opts
}

// Preferences are the configuration and preference stores of a command.
type Preferences struct {
	Config config.Config
	Logger *zap.Logger

	// Settings holds plain preferences and the conversation head. Secrets
	// reads API keys from the keyring first and falls back to Settings.
	Settings *prefs.FileStore
	Secrets  prefs.Store
}

// Runtime is an assembled parley.
type Runtime struct {
	Preferences

	Storer     merkle.Storer
	Toasts     *gateway.ToastLog
	Gateway    *gateway.Gateway
	Translator *translate.Client
}

// OpenPreferences loads configuration and opens the preference stores.
func OpenPreferences(opts Options) (*Preferences, error) {
	cfg, err := config.Load(opts.ConfigPath, opts.EnvFiles...)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		cfg.Debug = true
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	log := logger.NewLoggerTo(out, cfg.Debug)

	settings, err := prefs.NewFileStore(cfg.Prefs.Path, log)
	if err != nil {
		return nil, fmt.Errorf("open preferences: %w", err)
	}
	applyPreferences(&cfg, settings, log)

	secrets := prefs.Store(settings)
	if cfg.Prefs.UseKeyring && !opts.NoKeyring {
		kr := prefs.NewKeyringStore(cfg.Prefs.KeyringService)
		if kr.Available() {
			secrets = prefs.Chain{kr, settings}
		} else {
			log.Debug("keyring unavailable, keeping API keys in the preference file")
		}
	}

	return &Preferences{Config: cfg, Logger: log, Settings: settings, Secrets: secrets}, nil
}

// Open loads configuration, opens storage and restores the conversation.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	p, err := OpenPreferences(opts)
	if err != nil {
		return nil, err
	}
	cfg, log, settings, secrets := p.Config, p.Logger, p.Settings, p.Secrets

	switch opts.DBPath {
	case "":
	case "-":
		cfg.Storage.DBPath = ""
	default:
		cfg.Storage.DBPath = opts.DBPath
	}
	p.Config = cfg

	storer, err := OpenStorer(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	toasts := gateway.NewToastLog(50)
	gw, err := gateway.New(gateway.Config{FallbackModel: cfg.Fallback.Model}, gateway.Deps{
		Resolver: credential.NewResolver(
			credential.WithStore(secrets),
			credential.WithDefaults(cfg.Primary.APIKey, cfg.Primary.Model),
		),
		Primary: provider.NewPrimaryClient(&provider.OpenRouter{
			BaseURL: cfg.Primary.BaseURL,
			Referer: cfg.Primary.Referer,
			Title:   cfg.Primary.Title,
		}, log),
		FallbackResolver: credential.NewResolver(
			credential.WithStore(secrets),
			credential.WithPreferenceKeys(prefs.KeyFallbackAPIKey, ""),
			credential.WithDefaults(cfg.Fallback.APIKey, cfg.Fallback.Model),
		),
		Fallback: provider.NewFallbackClient(&provider.Gemini{BaseURL: cfg.Fallback.BaseURL}, log),
		Storer:   storer,
		Prefs:    settings,
		Notifier: gateway.NotifierFunc(func(t gateway.Toast) {
			toasts.Notify(t)
			logToast(log, t)
		}),
		Logger: log,
	})
	if err != nil {
		_ = storer.Close()
		return nil, err
	}

	if err := gw.Restore(ctx); err != nil {
		log.Warn("could not restore conversation", zap.Error(err))
	}

	return &Runtime{
		Preferences: *p,
		Storer:      storer,
		Toasts:      toasts,
		Gateway:     gw,
		Translator:  translate.New(cfg.Translate.BaseURL, log),
	}, nil
}

// OpenStorer opens the SQLite database at path, or an in-memory store when
// path is empty.
func OpenStorer(path string) (merkle.Storer, error) {
	if path == "" {
		return merkle.NewMemoryStorer(), nil
	}
	s, err := merkle.NewSQLiteStorer(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return s, nil
}

// Close releases storage and flushes the logger.
func (r *Runtime) Close() error {
	err := r.Storer.Close()
	_ = r.Logger.Sync()
	return err
}

// Voice is the voice stack of a server.
type Voice struct {
	Machine *voice.Machine
	Feed    *voice.Feed
	Speaker *voice.Speaker
	Draft   *server.Draft
}

// Voice builds voice input fed by HTTP events and voice output through the
// configured synthesizer. Without a synthesizer the speaker answers
// voice.ErrUnsupported.
func (r *Runtime) Voice() Voice {
	vc := r.Config.Voice
	draft := server.NewDraft()
	feed := voice.NewFeed()

	machine := voice.NewMachine(feed, r.Translator, draft.Write, voice.MachineConfig{
		Language:       vc.Language,
		AutoDetect:     vc.AutoDetect,
		TranslateTo:    vc.TranslateTo,
		SilenceTimeout: vc.SilenceTimeout(),
	}, r.Logger)

	var synth voice.Synthesizer
	if s, err := voice.NewExecSynthesizer(vc.Synthesizer); err != nil {
		r.Logger.Info("speech output disabled", zap.Error(err))
	} else {
		synth = s
	}

	speaker := voice.NewSpeaker(synth, r.Translator, voice.SpeakerConfig{
		Language:       vc.Language,
		SourceLanguage: vc.SourceLanguage,
		Speed:          vc.Speed,
		Gender:         voice.ParseGender(vc.Gender),
	}, r.Logger)

	return Voice{Machine: machine, Feed: feed, Speaker: speaker, Draft: draft}
}

// applyPreferences lets preferences saved by a client override the voice
// configuration.
func applyPreferences(cfg *config.Config, store prefs.Store, log *zap.Logger) {
	get := func(key string) string {
		v, ok, err := store.Get(key)
		if err != nil || !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if v := get(prefs.KeyVoiceLanguage); v != "" {
		cfg.Voice.Language = v
	}
	if v := get(prefs.KeyVoiceGender); v != "" {
		cfg.Voice.Gender = string(voice.ParseGender(v))
	}
	if v := get(prefs.KeyTranslateTo); v != "" {
		cfg.Voice.TranslateTo = v
	}
	if v := get(prefs.KeyVoiceSpeed); v != "" {
		speed, err := strconv.ParseFloat(v, 64)
		if err != nil || speed <= 0 || speed > 10 {
			log.Warn("ignoring invalid voice speed preference", zap.String("value", v))
		} else {
			cfg.Voice.Speed = speed
		}
	}
}

func logToast(log *zap.Logger, t gateway.Toast) {
	if t.Destructive {
		log.Warn("toast", zap.String("title", t.Title), zap.String("description", t.Description))
		return
	}
	log.Debug("toast", zap.String("title", t.Title), zap.String("description", t.Description))
}

