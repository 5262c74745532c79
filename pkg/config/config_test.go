package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/config"
)

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		for _, k := range []string{
			"OPENROUTER_API_KEY", "PARLEY_OPENROUTER_API_KEY", "GEMINI_API_KEY",
			"PARLEY_GEMINI_API_KEY", "PARLEY_MODEL", "PARLEY_LISTEN", "PARLEY_DB",
		} {
			GinkgoT().Setenv(k, "")
		}
	})

	It("returns defaults when the file is missing", func() {
		cfg, err := config.Load(filepath.Join(dir, "missing.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Primary.Model).To(Equal(config.DefaultModel))
		Expect(cfg.Voice.SilenceTimeout()).To(Equal(1500 * time.Millisecond))
		Expect(cfg.Server.ListenAddr).To(Equal(":8080"))
		Expect(cfg.Storage.DBPath).To(HaveSuffix("parley.db"))
	})

	It("overlays the TOML file on the defaults", func() {
		path := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte(`
[primary]
model = "meta-llama/llama-3.3-70b-instruct:free"

[voice]
language = "en-US"
gender = "male"
silence_timeout_ms = 900
`), 0o600)).To(Succeed())

		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Primary.Model).To(Equal("meta-llama/llama-3.3-70b-instruct:free"))
		Expect(cfg.Primary.BaseURL).To(Equal(config.DefaultPrimaryBaseURL))
		Expect(cfg.Voice.Language).To(Equal("en-US"))
		Expect(cfg.Voice.Gender).To(Equal("male"))
		Expect(cfg.Voice.SilenceTimeout()).To(Equal(900 * time.Millisecond))
	})

	It("lets the environment and .env files supply credentials", func() {
		envFile := filepath.Join(dir, ".env")
		Expect(os.WriteFile(envFile, []byte("GEMINI_API_KEY=gm-from-dotenv\n"), 0o600)).To(Succeed())
		GinkgoT().Setenv("OPENROUTER_API_KEY", "sk-or-from-env")
		// godotenv never overwrites variables that are already set, even empty
		// ones, so clear the placeholder first.
		Expect(os.Unsetenv("GEMINI_API_KEY")).To(Succeed())

		cfg, err := config.Load("", envFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Primary.APIKey).To(Equal("sk-or-from-env"))
		Expect(cfg.Fallback.APIKey).To(Equal("gm-from-dotenv"))
	})

	It("rejects invalid voice settings", func() {
		path := filepath.Join(dir, "bad.toml")
		Expect(os.WriteFile(path, []byte("[voice]\nspeed = -1\ngender = \"robot\"\n"), 0o600)).To(Succeed())

		_, err := config.Load(path)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("voice.speed"))
		Expect(err.Error()).To(ContainSubstring("voice.gender"))
	})

	It("reports malformed TOML", func() {
		path := filepath.Join(dir, "broken.toml")
		Expect(os.WriteFile(path, []byte("[primary\n"), 0o600)).To(Succeed())

		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("decode config")))
	})
})
