package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	APP        = "APP"
	CONFIG     = "CONFIG"
	DISPATCH   = "DISPATCH"
	STREAM     = "STREAM"
	GATEWAY    = "GATEWAY"
	MIDDLEWARE = "MIDDLEWARE"
	REDIS      = "REDIS"
)

// ParseLevel maps a LOG_LEVEL style name onto a zerolog level. Unknown or
// empty names fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init sets the global level and, when pretty is set, swaps the global logger
// for a human readable console writer on stderr.
func Init(level string, pretty bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// For returns the global logger tagged with namespace.
func For(namespace string) zerolog.Logger {
	return log.With().Str("namespace", namespace).Logger()
}
