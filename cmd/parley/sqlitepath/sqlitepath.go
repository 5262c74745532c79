// Package sqlitepath resolves which SQLite database a command works on.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/papercomputeco/parley/pkg/config"
)

// ErrNoDatabase is returned when no database is named and none exists at the
// default location.
var ErrNoDatabase = errors.New("no database found: pass --sqlite or set PARLEY_DB")

// DefaultPath is where parley keeps its database when asked to persist.
func DefaultPath() string {
	return filepath.Join(config.Dir(), "parley.db")
}

// ResolveSQLitePath returns override when set, then $PARLEY_DB, then the
// default database if it exists.
func ResolveSQLitePath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv("PARLEY_DB"); env != "" {
		return env, nil
	}
	if _, err := os.Stat(DefaultPath()); err == nil {
		return DefaultPath(), nil
	}
	return "", ErrNoDatabase
}
