package observability

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// InitLogger builds the process logger. Every line carries the service name
// so api and worker output can share one sink.
func InitLogger(level, service string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stdout
	}

	return zerolog.New(output).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Caller().
		Str("service", service).
		Logger()
}

// parseLogLevel falls back to info for empty or unknown levels.
func parseLogLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithFields returns a child logger carrying the given key/value pairs.
// Empty values are dropped; a trailing key without a value is ignored.
func WithFields(logger zerolog.Logger, kv ...string) zerolog.Logger {
	l := logger.With()
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		l = l.Str(kv[i], kv[i+1])
	}
	return l.Logger()
}
