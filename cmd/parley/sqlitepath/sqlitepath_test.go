package sqlitepath_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/cmd/parley/sqlitepath"
)

var _ = Describe("ResolveSQLitePath", func() {
	var home string

	BeforeEach(func() {
		home = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", home)
		GinkgoT().Setenv("PARLEY_DB", "")
	})

	It("prefers the explicit path", func() {
		GinkgoT().Setenv("PARLEY_DB", "/from/env.db")
		Expect(sqlitepath.ResolveSQLitePath("/explicit.db")).To(Equal("/explicit.db"))
	})

	It("falls back to PARLEY_DB", func() {
		GinkgoT().Setenv("PARLEY_DB", "/from/env.db")
		Expect(sqlitepath.ResolveSQLitePath("")).To(Equal("/from/env.db"))
	})

	It("uses the default database when it exists", func() {
		path := filepath.Join(home, ".parley", "parley.db")
		Expect(sqlitepath.DefaultPath()).To(Equal(path))
		Expect(os.MkdirAll(filepath.Dir(path), 0o700)).To(Succeed())
		Expect(os.WriteFile(path, nil, 0o600)).To(Succeed())

		Expect(sqlitepath.ResolveSQLitePath("")).To(Equal(path))
	})

	It("fails when there is nothing to resolve", func() {
		_, err := sqlitepath.ResolveSQLitePath("")
		Expect(err).To(MatchError(sqlitepath.ErrNoDatabase))
	})
})
