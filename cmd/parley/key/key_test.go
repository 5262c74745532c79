package keycmder

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
	"github.com/papercomputeco/parley/pkg/prefs"
)

var _ = Describe("Key Command", func() {
	var (
		dir        string
		configPath string
		prefsPath  string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		for _, k := range []string{"OPENROUTER_API_KEY", "PARLEY_OPENROUTER_API_KEY", "GEMINI_API_KEY", "PARLEY_GEMINI_API_KEY"} {
			GinkgoT().Setenv(k, "")
		}
		prefsPath = filepath.Join(dir, "prefs.toml")
		configPath = filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(configPath, []byte(fmt.Sprintf("[prefs]\npath = %q\nuse_keyring = false\n", prefsPath)), 0o600)).To(Succeed())
	})

	run := func(stdin string, args ...string) (string, error) {
		root := &cobra.Command{Use: "parley"}
		bootstrap.AddFlags(root)
		root.AddCommand(NewKeyCmd())

		var out bytes.Buffer
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(&out)
		root.SetErr(GinkgoWriter)
		root.SetArgs(append([]string{"--config", configPath, "--no-keyring", "key"}, args...))
		err := root.Execute()
		return out.String(), err
	}

	stored := func(key string) (string, bool) {
		store, err := prefs.NewFileStore(prefsPath, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		v, ok, err := store.Get(key)
		Expect(err).NotTo(HaveOccurred())
		return v, ok
	}

	It("stores a key given as an argument", func() {
		out, err := run("", "set", "openrouter", "sk-or-v1-abcdef123456")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Stored openrouter key sk-o…3456"))

		v, ok := stored(prefs.KeyPrimaryAPIKey)
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal("sk-or-v1-abcdef123456"))
	})

	It("reads the key from stdin", func() {
		_, err := run("AIza-gemini-key\n", "set", "gemini")
		Expect(err).NotTo(HaveOccurred())

		v, _ := stored(prefs.KeyFallbackAPIKey)
		Expect(v).To(Equal("AIza-gemini-key"))
	})

	It("rejects empty keys and unknown providers", func() {
		_, err := run("\n", "set", "gemini")
		Expect(err).To(MatchError("key is empty"))

		_, err = run("", "set", "anthropic", "key")
		Expect(err).To(MatchError(ContainSubstring("unknown provider")))
	})

	It("deletes a stored key", func() {
		_, err := run("", "set", "gemini", "AIza-gemini-key")
		Expect(err).NotTo(HaveOccurred())

		out, err := run("", "delete", "gemini")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Deleted gemini key"))

		_, ok := stored(prefs.KeyFallbackAPIKey)
		Expect(ok).To(BeFalse())
	})

	It("reports where each key comes from", func() {
		GinkgoT().Setenv("GEMINI_API_KEY", "AIza-from-env-9999")
		_, err := run("", "set", "openrouter", "sk-or-v1-abcdef123456")
		Expect(err).NotTo(HaveOccurred())

		out, err := run("", "status")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("openrouter  stored sk-o…3456"))
		Expect(out).To(ContainSubstring("gemini      from environment AIza…9999"))
	})
})

var _ = Describe("mask", func() {
	It("hides short keys entirely", func() {
		Expect(mask("short")).To(Equal("*****"))
	})
})
