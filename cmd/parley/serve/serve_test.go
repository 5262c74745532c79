package servecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/cmd/parley/bootstrap"
)

var _ = Describe("Serve Command", func() {
	var (
		dir      string
		upstream *httptest.Server
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		for _, k := range []string{"OPENROUTER_API_KEY", "PARLEY_OPENROUTER_API_KEY", "PARLEY_PRIMARY_BASE_URL", "PARLEY_DB", "PARLEY_LISTEN"} {
			GinkgoT().Setenv(k, "")
		}
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"served"}}],"usage":{"total_tokens":7}}`)
		}))
		DeferCleanup(upstream.Close)
	})

	It("serves the API until the context is cancelled", func() {
		configPath := filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(configPath, []byte(fmt.Sprintf(`
[primary]
base_url = %q
api_key = "sk-or-test"

[prefs]
path = %q
use_keyring = false
`, upstream.URL, filepath.Join(dir, "prefs.toml"))), 0o600)).To(Succeed())

		cmd := NewServeCmd("test")
		bootstrap.AddFlags(cmd)
		Expect(cmd.ParseFlags([]string{"--config", configPath, "--no-keyring", "--db", "-"})).To(Succeed())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		base := "http://" + ln.Addr().String()

		cmder := &serveCommander{dbPath: "-", version: "test"}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- cmder.run(ctx, cmd, ln) }()

		Eventually(func() (int, error) {
			resp, err := http.Get(base + "/health")
			if err != nil {
				return 0, err
			}
			resp.Body.Close()
			return resp.StatusCode, nil
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(http.StatusOK))

		resp, err := http.Post(base+"/api/chat", "application/json", strings.NewReader(`{"text":"hello"}`))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body["total_tokens"]).To(Equal(float64(7)))
		Expect(body["message"]).To(HaveKeyWithValue("content", "served"))

		cancel()
		Eventually(done, 15*time.Second).Should(Receive(BeNil()))
	})
})
