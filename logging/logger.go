package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log output destinations recognized by Config.Output.
const (
	CONSOLE = "console"
	JOURNAL = "journald"
)

// Logger is a wrapper around a zap.SugaredLogger that additionally carries the
// interval at which periodic log messages (e.g. long-running query progress)
// should be emitted, so callers do not have to thread that value separately.
type Logger struct {
	*zap.SugaredLogger

	interval time.Duration
}

// NewLogger returns a new Logger that wraps the given zap.SugaredLogger and
// uses interval for periodic logging, see Logger.Interval.
func NewLogger(log *zap.SugaredLogger, interval time.Duration) *Logger {
	return &Logger{SugaredLogger: log, interval: interval}
}

// Interval returns the interval at which periodic log messages should be emitted.
func (l *Logger) Interval() time.Duration {
	return l.interval
}

// NewLoggerFromConfig builds a zap-backed Logger hierarchy from a Config and a
// map of named child loggers to their minimum level (Config.Options), writing
// either to stderr or to systemd-journald depending on Config.Output.
func NewLoggerFromConfig(c *Config, name string) (*Logger, error) {
	level := c.Level
	if lvl, ok := c.Options[name]; ok {
		level = lvl
	}

	var core zapcore.Core

	switch c.Output {
	case JOURNAL:
		core = NewJournaldCore(name, level)
	case CONSOLE, "":
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stderr), level)
	default:
		return nil, fmt.Errorf("%s is not a valid logger output. Must be either %q or %q", c.Output, CONSOLE, JOURNAL)
	}

	zl := zap.New(core, zap.AddCaller()).Named(name)

	return NewLogger(zl.Sugar(), c.Interval), nil
}
