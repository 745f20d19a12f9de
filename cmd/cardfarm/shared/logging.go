package shared

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// SetupLogger configures zerolog with pretty console output.
func SetupLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// SetupFileLogger configures zerolog for structured (JSON) output to a file
// in addition to the console.
func SetupFileLogger(debug bool, file io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	out := zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file)
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}
