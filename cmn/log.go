package cmn

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide structured logger from the configured
// level, writing human-readable console output (the teacher's own daemons
// default to readable stderr logging during development; JSON lines are left
// to a production log pipeline to parse from stdout instead).
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(out).With().Timestamp().Caller().Logger()
}
