package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lmittmann/tint"
)

// Level represents a log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Output formats understood by SetFormat.
const (
	FormatTint = "tint"
	FormatText = "text"
	FormatJSON = "json"
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a log level string
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// Logger is a leveled logger backed by slog.
// Output is discarded until a log file or writer is configured so that
// logging never draws over the TUI.
type Logger struct {
	mu     sync.Mutex
	level  Level
	format string
	out    io.Writer
	slog   *slog.Logger
	file   *os.File
}

var (
	// Default is the default logger instance
	Default *Logger
)

func init() {
	Default = New()
}

// New creates a new logger based on environment variables
func New() *Logger {
	l := &Logger{
		level:  LevelInfo,
		format: FormatText,
		out:    io.Discard,
	}

	if levelStr := os.Getenv("REPOSYNC_LOG_LEVEL"); levelStr != "" {
		if level, err := ParseLevel(levelStr); err == nil {
			l.level = level
		}
	}

	if format := os.Getenv("REPOSYNC_LOG_FORMAT"); format != "" {
		if validFormat(format) {
			l.format = format
		}
	}

	if logFile := os.Getenv("REPOSYNC_LOG_FILE"); logFile != "" {
		if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			l.file = f
			l.out = f
		}
	}

	l.rebuild()
	return l
}

// Configure applies level, format and file settings in one call.
// Empty values leave the current setting untouched.
func (l *Logger) Configure(level, format, file string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level != "" {
		parsed, err := ParseLevel(level)
		if err != nil {
			return err
		}
		l.level = parsed
	}
	if format != "" {
		if !validFormat(format) {
			return fmt.Errorf("invalid log format: %s (must be tint, text or json)", format)
		}
		l.format = format
	}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		if l.file != nil {
			_ = l.file.Close()
		}
		l.file = f
		l.out = f
	}

	l.rebuild()
	return nil
}

// Close closes the logger and any open file handles
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.out = io.Discard
		l.rebuild()
		return err
	}
	return nil
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.rebuild()
}

// SetOutput sets the output writer
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
	l.rebuild()
}

// Slog exposes the underlying structured logger for libraries that take one.
func (l *Logger) Slog() *slog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slog
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(LevelDebug, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(LevelInfo, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(LevelWarn, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(LevelError, format, v...)
}

func (l *Logger) log(level Level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	l.slog.Log(context.Background(), level.slogLevel(), fmt.Sprintf(format, v...))
}

// rebuild swaps in a handler for the current writer, level and format.
// Callers must hold l.mu.
func (l *Logger) rebuild() {
	opts := &slog.HandlerOptions{Level: l.level.slogLevel()}

	var h slog.Handler
	switch l.format {
	case FormatJSON:
		h = slog.NewJSONHandler(l.out, opts)
	case FormatTint:
		h = tint.NewHandler(l.out, &tint.Options{Level: opts.Level})
	default:
		h = slog.NewTextHandler(l.out, opts)
	}
	l.slog = slog.New(h)
}

func validFormat(format string) bool {
	switch format {
	case FormatTint, FormatText, FormatJSON:
		return true
	}
	return false
}

// Package-level functions that use the default logger

// Debug logs a debug message using the default logger
func Debug(format string, v ...interface{}) {
	Default.Debug(format, v...)
}

// Info logs an info message using the default logger
func Info(format string, v ...interface{}) {
	Default.Info(format, v...)
}

// Warn logs a warning message using the default logger
func Warn(format string, v ...interface{}) {
	Default.Warn(format, v...)
}

// Error logs an error message using the default logger
func Error(format string, v ...interface{}) {
	Default.Error(format, v...)
}

// Configure configures the default logger
func Configure(level, format, file string) error {
	return Default.Configure(level, format, file)
}

// Close closes the default logger
func Close() error {
	return Default.Close()
}
