package importcmder_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
	importcmder "github.com/papercomputeco/parley/cmd/parley/import"
	"github.com/papercomputeco/parley/pkg/llm"
)

const transcriptJSON = `{"messages":[
  {"role":"user","text":"Привет"},
  {"role":"assistant","text":"Здравствуйте!"},
  {"role":"user","text":"How are you?"}
]}`

var _ = Describe("Import Command", func() {
	var (
		dir        string
		configPath string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		GinkgoT().Setenv("PARLEY_DB", "")
		configPath = filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(configPath, []byte(fmt.Sprintf(`
[storage]
db_path = %q

[prefs]
path = %q
use_keyring = false
`, filepath.Join(dir, "parley.db"), filepath.Join(dir, "prefs.toml"))), 0o600)).To(Succeed())
	})

	run := func(stdin string, args ...string) (string, error) {
		cmd := importcmder.NewImportCmd()
		bootstrap.AddFlags(cmd)
		var out bytes.Buffer
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetOut(&out)
		cmd.SetErr(GinkgoWriter)
		cmd.SetArgs(append([]string{"--config", configPath, "--no-keyring"}, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	restored := func() []llm.Message {
		rt, err := bootstrap.Open(context.Background(), bootstrap.Options{
			ConfigPath: configPath,
			NoKeyring:  true,
			LogOutput:  GinkgoWriter,
		})
		Expect(err).NotTo(HaveOccurred())
		defer rt.Close()
		return rt.Gateway.Messages()
	}

	It("imports a transcript file as the persisted conversation", func() {
		path := filepath.Join(dir, "chat.json")
		Expect(os.WriteFile(path, []byte(transcriptJSON), 0o600)).To(Succeed())

		out, err := run("", path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Imported 3 messages"))

		messages := restored()
		Expect(messages).To(HaveLen(3))
		Expect(messages[0].Content).To(Equal("Привет"))
		Expect(messages[1].Role).To(Equal(llm.RoleAssistant))
		Expect(messages[2].Content).To(Equal("How are you?"))
	})

	It("reads the transcript from stdin", func() {
		out, err := run(transcriptJSON, "-")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Imported 3 messages"))
		Expect(restored()).To(HaveLen(3))
	})

	It("leaves the conversation untouched when the transcript is invalid", func() {
		_, err := run(transcriptJSON, "-")
		Expect(err).NotTo(HaveOccurred())

		_, err = run("not json", "-")
		Expect(err).To(HaveOccurred())
		Expect(restored()).To(HaveLen(3))
	})

	It("fails for a missing file", func() {
		_, err := run("", filepath.Join(dir, "missing.json"))
		Expect(err).To(MatchError(ContainSubstring("could not read transcript")))
	})
})
