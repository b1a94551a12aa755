// Package observability carries the process logger bootstrap and the
// Prometheus metrics recorded by the packet server and the ops endpoint.
package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the daemon's process logger: a console writer on
// stderr tagged with the app name, so packet payloads and CLI output on
// stdout never interleave with log lines. The level is whatever the
// logging profile set globally (PKTWIRE_LOG_LEVEL applies).
func InitLogger(app string) zerolog.Logger {
	writer := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(writer).With().Timestamp().Str("app", strings.TrimSpace(app)).Logger()
	log.Logger = logger
	return logger
}
