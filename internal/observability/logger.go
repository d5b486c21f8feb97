package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerOptions shapes the console logger.
type LoggerOptions struct {
	App       string
	Timestamp bool
	NoColor   bool
}

// NewLogger builds a console logger writing to out.
func NewLogger(out io.Writer, opts LoggerOptions) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	if !opts.Timestamp {
		output.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(output).With().Timestamp()
	if opts.App != "" {
		ctx = ctx.Str("app", opts.App)
	}
	return ctx.Logger()
}

// InitLogger installs a timestamped console logger for app as the global logger.
func InitLogger(app string) zerolog.Logger {
	logger := NewLogger(os.Stdout, LoggerOptions{App: app, Timestamp: true})
	log.Logger = logger
	return logger
}
