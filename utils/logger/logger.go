// Package logger configures the process-wide logrus logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/evalphobia/logrus_sentry"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/writer"
)

// Config controls log output.
type Config struct {
	Verbosity int    // 0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace
	Format    string // text or json
	Color     bool
	File      string // optional; logs go to stdout and the file
	SentryDSN string // optional; errors are reported to Sentry
}

// Level maps a verbosity to a logrus level, clamping out-of-range values.
func Level(verbosity int) log.Level {
	switch {
	case verbosity <= 0:
		return log.FatalLevel
	case verbosity >= 5:
		return log.TraceLevel
	}
	return log.Level(verbosity + 1)
}

// Formatter returns the formatter for format.
func Formatter(format string, color bool) (log.Formatter, error) {
	switch format {
	case "", "text":
		return &log.TextFormatter{FullTimestamp: true, ForceColors: color, DisableColors: !color}, nil
	case "json":
		return &log.JSONFormatter{TimestampFormat: time.RFC3339Nano}, nil
	}
	return nil, fmt.Errorf("unknown log format %q (valid: text, json)", format)
}

// Setup applies cfg to l. Without a log file, warnings and errors go to
// stderr and everything else to stdout.
func Setup(l *log.Logger, cfg Config) error {
	f, err := Formatter(cfg.Format, cfg.Color)
	if err != nil {
		return err
	}
	l.SetFormatter(f)
	l.SetLevel(Level(cfg.Verbosity))
	l.ReplaceHooks(make(log.LevelHooks))

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		l.SetOutput(io.MultiWriter(file, os.Stdout))
	} else {
		l.SetOutput(io.Discard)
		l.AddHook(&writer.Hook{
			Writer:    os.Stderr,
			LogLevels: []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel},
		})
		l.AddHook(&writer.Hook{
			Writer:    os.Stdout,
			LogLevels: []log.Level{log.InfoLevel, log.DebugLevel, log.TraceLevel},
		})
	}

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []log.Level{
			log.PanicLevel,
			log.FatalLevel,
			log.ErrorLevel,
		})
		if err != nil {
			return fmt.Errorf("sentry hook: %w", err)
		}
		hook.Timeout = 5 * time.Second
		hook.StacktraceConfiguration.Enable = true
		l.AddHook(hook)
	}
	return nil
}
