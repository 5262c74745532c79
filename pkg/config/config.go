// Package config loads parley's static configuration: a TOML file, then a
// .env file, then environment variables, each layer overriding the last.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultPrimaryBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel            = "google/gemini-2.0-flash-exp:free"
	DefaultFallbackBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	DefaultFallbackModel    = "gemini-2.0-flash"
	DefaultTranslateBaseURL = "https://translate.googleapis.com/translate_a/single"
	DefaultVoiceLanguage    = "ru-RU"
	DefaultSourceLanguage   = "ru"
	DefaultSilenceTimeoutMs = 1500
	DefaultListenAddr       = ":8080"
	DefaultTitle            = "Parley"
)

// Config is the full parley configuration.
type Config struct {
	Primary   PrimaryConfig   `toml:"primary"`
	Fallback  FallbackConfig  `toml:"fallback"`
	Voice     VoiceConfig     `toml:"voice"`
	Translate TranslateConfig `toml:"translate"`
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Prefs     PrefsConfig     `toml:"prefs"`
	Debug     bool            `toml:"debug"`
}

// PrimaryConfig configures the OpenRouter-compatible chat completions provider.
type PrimaryConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`

	// Referer and Title are sent as HTTP-Referer and X-Title so the provider
	// can attribute traffic to this client.
	Referer string `toml:"referer"`
	Title   string `toml:"title"`
}

// FallbackConfig configures the Gemini generate-content provider used after a
// rate-limited primary call.
type FallbackConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// VoiceConfig configures recognition and synthesis.
type VoiceConfig struct {
	Language         string  `toml:"language"`
	SourceLanguage   string  `toml:"source_language"`
	Speed            float64 `toml:"speed"`
	Gender           string  `toml:"gender"`
	AutoDetect       bool    `toml:"auto_detect"`
	TranslateTo      string  `toml:"translate_to"`
	SilenceTimeoutMs int     `toml:"silence_timeout_ms"`
	Synthesizer      string  `toml:"synthesizer"`
}

// SilenceTimeout returns the dictation segmentation timeout.
func (v VoiceConfig) SilenceTimeout() time.Duration {
	return time.Duration(v.SilenceTimeoutMs) * time.Millisecond
}

// TranslateConfig configures the public translation endpoint.
type TranslateConfig struct {
	BaseURL string `toml:"base_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr string `toml:"listen"`
}

// StorageConfig configures conversation persistence.
type StorageConfig struct {
	// DBPath is the SQLite database path, ~/.parley/parley.db by default.
	// Empty keeps history in memory.
	DBPath string `toml:"db_path"`
}

// PrefsConfig configures the preference store.
type PrefsConfig struct {
	Path           string `toml:"path"`
	UseKeyring     bool   `toml:"use_keyring"`
	KeyringService string `toml:"keyring_service"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	home := Dir()
	return Config{
		Primary: PrimaryConfig{
			BaseURL: DefaultPrimaryBaseURL,
			Model:   DefaultModel,
			Referer: "http://localhost",
			Title:   DefaultTitle,
		},
		Fallback: FallbackConfig{
			BaseURL: DefaultFallbackBaseURL,
			Model:   DefaultFallbackModel,
		},
		Voice: VoiceConfig{
			Language:         DefaultVoiceLanguage,
			SourceLanguage:   DefaultSourceLanguage,
			Speed:            1.0,
			Gender:           "female",
			TranslateTo:      "en",
			SilenceTimeoutMs: DefaultSilenceTimeoutMs,
		},
		Translate: TranslateConfig{BaseURL: DefaultTranslateBaseURL},
		Server:    ServerConfig{ListenAddr: DefaultListenAddr},
		Storage:   StorageConfig{DBPath: filepath.Join(home, "parley.db")},
		Prefs: PrefsConfig{
			Path:       filepath.Join(home, "prefs.toml"),
			UseKeyring: true,
		},
	}
}

// Dir returns the parley state directory (~/.parley).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return filepath.Join(home, ".parley")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the TOML file at path (a missing file is not an error), loads
// envFiles with godotenv without overwriting the existing environment, and
// applies environment overrides.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&cfg.Primary.APIKey, "PARLEY_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	setString(&cfg.Primary.BaseURL, "PARLEY_PRIMARY_BASE_URL")
	setString(&cfg.Primary.Model, "PARLEY_MODEL")
	setString(&cfg.Fallback.APIKey, "PARLEY_GEMINI_API_KEY", "GEMINI_API_KEY")
	setString(&cfg.Fallback.BaseURL, "PARLEY_FALLBACK_BASE_URL")
	setString(&cfg.Server.ListenAddr, "PARLEY_LISTEN")
	setString(&cfg.Storage.DBPath, "PARLEY_DB")
	setString(&cfg.Voice.Language, "PARLEY_VOICE_LANGUAGE")

	if v := os.Getenv("PARLEY_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Primary.BaseURL == "" {
		errs = append(errs, errors.New("primary.base_url is required"))
	}
	if c.Voice.Speed <= 0 || c.Voice.Speed > 10 {
		errs = append(errs, fmt.Errorf("voice.speed %v out of range (0, 10]", c.Voice.Speed))
	}
	if c.Voice.SilenceTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("voice.silence_timeout_ms must be positive, got %d", c.Voice.SilenceTimeoutMs))
	}
	switch c.Voice.Gender {
	case "", "male", "female":
	default:
		errs = append(errs, fmt.Errorf("voice.gender must be male or female, got %q", c.Voice.Gender))
	}
	return errors.Join(errs...)
}
