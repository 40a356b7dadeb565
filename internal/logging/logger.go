// Package logging configures the process-wide zerolog logger.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the global logger. Replaced by Init.
var Logger = log.Logger

// Config controls logger output.
type Config struct {
	Level        string `json:"level,omitempty"`         // debug, info, warn, error
	Format       string `json:"format,omitempty"`        // json or pretty
	TimeFormat   string `json:"time_format,omitempty"`   // defaults to RFC3339
	ReportCaller bool   `json:"report_caller,omitempty"` // add file:line to every event
}

// Init builds the global logger from cfg and installs it as zerolog's global logger.
func Init(cfg Config) {
	InitWithWriter(cfg, os.Stdout)
}

// InitWithWriter is Init with an explicit destination. Tests pass a buffer.
func InitWithWriter(cfg Config, out io.Writer) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.TimeFormat == "" {
		zerolog.TimeFieldFormat = time.RFC3339
	} else {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	output := out
	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: cfg.TimeFormat,
		}
	}

	builder := zerolog.New(output).Level(level).With().Timestamp()
	if cfg.ReportCaller {
		builder = builder.Caller()
	}

	Logger = builder.Logger()
	log.Logger = Logger
}

// Debug starts a debug level event.
func Debug() *zerolog.Event { return Logger.Debug() }

// Info starts an info level event.
func Info() *zerolog.Event { return Logger.Info() }

// Warn starts a warn level event.
func Warn() *zerolog.Event { return Logger.Warn() }

// Error starts an error level event.
func Error() *zerolog.Event { return Logger.Error() }

// Ctx returns the logger stored in ctx, falling back to the global logger.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		return &Logger
	}
	return l
}

// WithContext attaches a child of the global logger carrying fields to ctx.
func WithContext(ctx context.Context, fields map[string]any) context.Context {
	l := Logger.With().Fields(fields).Logger()
	return l.WithContext(ctx)
}
