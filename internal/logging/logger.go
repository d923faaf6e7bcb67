package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options selects the level and output format.
type Options struct {
	Level  string
	Format string
}

// New builds the process logger writing to stderr.
func New(opts Options) (zerolog.Logger, error) {
	return newLogger(os.Stderr, opts, isatty.IsTerminal(os.Stderr.Fd()))
}

func newLogger(out io.Writer, opts Options, terminal bool) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	w := out
	switch opts.Format {
	case "console":
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
	default:
		if terminal {
			w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "platematch").Logger(), nil
}
