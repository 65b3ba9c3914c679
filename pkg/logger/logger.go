// Package logger builds the process logger: one slog text handler fanned out
// to stdout and to a rotating log file.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Name is attached to every record as the "logger" attribute.
	Name string

	// FilePath is the log file. Empty disables the file sink.
	FilePath string

	// Level is one of debug, info, warn, error. Default: debug.
	Level string

	// MaxSizeMB rotates the file once it grows past this size. Default: 10.
	MaxSizeMB  int
	MaxBackups int

	// Console receives the same records as the file. Default: os.Stdout.
	Console io.Writer
}

// Logger is a slog.Logger together with the file sink it owns.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

// New creates the logger. The caller must Close it to flush the file sink.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}

	l := &Logger{}
	out := opts.Console
	if opts.FilePath != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB, // megabytes
			MaxBackups: opts.MaxBackups,
			LocalTime:  true,
		}
		out = io.MultiWriter(opts.Console, l.file)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})
	l.Logger = slog.New(handler)
	if opts.Name != "" {
		l.Logger = l.Logger.With("logger", opts.Name)
	}
	return l, nil
}

// Close flushes and closes the file sink.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a level name to a slog.Level. Empty means debug.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
