// Package logging wires the shared zerolog logger the same way across all
// four service binaries, mirroring the teacher's cmd-level setup.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. pretty selects the
// human-readable console writer (local/dev); otherwise logs are emitted as
// JSON, suitable for ingestion by a log pipeline in production.
func Init(levelName string, pretty bool) {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
