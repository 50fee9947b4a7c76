// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/agentops/internal/config"
)

// Setup sets the global zerolog level and output from cfg and returns the
// configured logger. A nil out writes to stderr.
func Setup(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}
