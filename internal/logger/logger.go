// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the name of the log file inside the configured directory.
const FileName = "aiodarr.log"

// Logger wraps zerolog and owns the rotating file writer, if any.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
	recent  *Recent
}

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string // "console", "json" or empty for auto
	Path       string // directory for log files; empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// RecentSize is the number of entries kept in memory for the status API.
	// Zero disables the buffer.
	RecentSize int
}

// New creates a logger writing to stdout and, when Path is set, a rotated file.
func New(cfg Config) *Logger {
	return newWithOutput(cfg, os.Stdout, isTerminal(os.Stdout))
}

func newWithOutput(cfg Config, stdout io.Writer, terminal bool) *Logger {
	var consoleOutput io.Writer
	if useConsole(cfg.Format, terminal) {
		consoleOutput = zerolog.ConsoleWriter{
			Out:        stdout,
			TimeFormat: time.RFC3339,
			NoColor:    !terminal,
		}
	} else {
		consoleOutput = stdout
	}

	writers := []io.Writer{consoleOutput}

	var rotator *lumberjack.Logger
	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0o755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   filepath.Join(cfg.Path, FileName),
				MaxSize:    orDefault(cfg.MaxSizeMB, 10),
				MaxBackups: orDefault(cfg.MaxBackups, 5),
				MaxAge:     orDefault(cfg.MaxAgeDays, 30),
				Compress:   cfg.Compress,
				LocalTime:  true,
			}
			writers = append(writers, rotator)
		}
	}

	var recent *Recent
	if cfg.RecentSize > 0 {
		recent = NewRecent(cfg.RecentSize)
		writers = append(writers, recent)
	}

	output := consoleOutput
	if len(writers) > 1 {
		output = io.MultiWriter(writers...)
	}

	logger := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: logger, rotator: rotator, recent: recent}
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Recent returns the in-memory entry buffer, or nil when disabled.
func (l *Logger) Recent() *Recent {
	return l.recent
}

// WithComponent returns a child logger tagged with component.
func (l *Logger) WithComponent(component string) zerolog.Logger {
	return l.Logger.With().Str("component", component).Logger()
}

// ParseLevel converts a level name to a zerolog.Level, ignoring case.
// Unknown names map to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func useConsole(format string, terminal bool) bool {
	switch strings.ToLower(format) {
	case "json":
		return false
	case "console":
		return true
	default:
		return terminal
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
