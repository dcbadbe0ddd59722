// Package logging configures the global zerolog logger used
// throughout the daemon.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configure the global logger.
type Options struct {
	// Level is one of zerolog's level names: trace, debug, info,
	// warn, error, fatal, panic, disabled.
	Level string
	// Format is "console" for human-readable output or "json" for
	// structured output consumed by a log shipper.
	Format string
}

// Setup installs opts as the global zerolog configuration. Call this
// once at startup before any log.* call.
func Setup(opts *Options) error {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.ToLower(opts.Format) == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
	return nil
}
