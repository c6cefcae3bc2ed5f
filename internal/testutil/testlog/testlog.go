// Package testlog builds quiet zerolog loggers for tests. Set
// RINGCTL_TEST_LOG_LEVEL to surface engine logging while debugging a test.
package testlog

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	level := zerolog.Disabled
	if raw := os.Getenv("RINGCTL_TEST_LOG_LEVEL"); raw != "" {
		if lvl, err := zerolog.ParseLevel(raw); err == nil {
			level = lvl
		}
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Str("test", t.Name()).Logger()
}
