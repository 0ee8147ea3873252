// Package logger configures the process-wide zerolog logger from
// application configuration.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config is the subset of application configuration the logger needs.
// Kept independent of the config package's own type so logger has no
// import-cycle risk as the config schema grows.
type Config struct {
	Level  string
	Pretty bool
}

// Init configures the global zerolog logger: JSON output by default, a
// human-readable console writer when cfg.Pretty is set, and the level
// parsed from cfg.Level (one of debug, info, warn, error, fatal, panic).
// An unrecognized level falls back to info rather than failing startup,
// since config validation is expected to have already rejected it.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
