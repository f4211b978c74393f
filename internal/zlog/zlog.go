// Package zlog adapts github.com/rs/zerolog to [trafficgen.Logger], so the
// CLI (cmd/trafficgen) can run with leveled, optionally-JSON console
// logging while the core keeps depending only on the narrow interface.
package zlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/netforge/trafficgen"
)

// Logger wraps a zerolog.Logger as a trafficgen.Logger.
type Logger struct {
	z zerolog.Logger
}

// New constructs a Logger writing to w. When pretty is true, output goes
// through zerolog.ConsoleWriter; otherwise it is newline-delimited JSON,
// suited to log aggregation.
func New(w io.Writer, level zerolog.Level, pretty bool) *Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &Logger{z: z}
}

// NewDefault constructs a Logger on os.Stderr at levelName ("debug", "info",
// "warn", or "error"), falling back to info on an unrecognized name.
func NewDefault(levelName string, pretty bool) *Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return New(os.Stderr, level, pretty)
}

func (l *Logger) Debugf(format string, v ...any) { l.z.Debug().Msgf(format, v...) }
func (l *Logger) Debug(message string)           { l.z.Debug().Msg(message) }
func (l *Logger) Infof(format string, v ...any)  { l.z.Info().Msgf(format, v...) }
func (l *Logger) Info(message string)            { l.z.Info().Msg(message) }
func (l *Logger) Warnf(format string, v ...any)  { l.z.Warn().Msgf(format, v...) }
func (l *Logger) Warn(message string)            { l.z.Warn().Msg(message) }

var _ trafficgen.Logger = &Logger{}
