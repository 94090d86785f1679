// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the dual-sink structured logger used
// throughout the node: console, file, both, or silent, backed by
// charmbracelet/log so call sites keep the same Info/Warn/Error/Debug
// key-value shape regardless of sink.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Mode selects where log output goes.
type Mode string

const (
	ModeConsole Mode = "console"
	ModeFile    Mode = "file"
	ModeBoth    Mode = "both"
	ModeNone    Mode = "none"
)

// PathStyle controls whether FilePath is used as-is or treated as a
// directory that receives a dated log file, matching the
// NORMAL_PATH_STYLE / IDPS_PATH_STYLE env vars.
type PathStyle string

const (
	PathStyleFixed PathStyle = "fixed"
	PathStyleDated PathStyle = "dated"
)

// Config controls a Logger's construction.
type Config struct {
	Mode      Mode
	PathStyle PathStyle
	FilePath  string
	Level     charmlog.Level
}

// DefaultConfig returns console-only logging at Info level.
func DefaultConfig() Config {
	return Config{
		Mode:  ModeConsole,
		Level: charmlog.InfoLevel,
	}
}

// Logger wraps a charmbracelet/log.Logger behind the call-site contract
// the rest of the module was built against: Info/Warn/Error/Debug taking
// a message and alternating key/value pairs.
type Logger struct {
	inner *charmlog.Logger
}

// New builds a Logger for cfg. A "none" mode discards everything.
func New(cfg Config) *Logger {
	w := resolveWriter(cfg)
	inner := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		Level:           cfg.Level,
	})
	return &Logger{inner: inner}
}

func resolveWriter(cfg Config) io.Writer {
	switch cfg.Mode {
	case ModeNone:
		return io.Discard
	case ModeFile:
		return openLogFile(cfg)
	case ModeBoth:
		f := openLogFile(cfg)
		return io.MultiWriter(os.Stdout, f)
	default:
		return os.Stdout
	}
}

func openLogFile(cfg Config) io.Writer {
	path := cfg.FilePath
	if cfg.PathStyle == PathStyleDated {
		path = filepath.Join(cfg.FilePath, datedFileName())
	}
	if path == "" {
		return os.Stdout
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return os.Stdout
	}
	return f
}

func datedFileName() string {
	return time.Now().UTC().Format("2006-01-02") + ".log"
}

func (l *Logger) Info(msg string, keyvals ...any)  { l.inner.Info(msg, keyvals...) }
func (l *Logger) Warn(msg string, keyvals ...any)  { l.inner.Warn(msg, keyvals...) }
func (l *Logger) Error(msg string, keyvals ...any) { l.inner.Error(msg, keyvals...) }
func (l *Logger) Debug(msg string, keyvals ...any) { l.inner.Debug(msg, keyvals...) }

// With returns a derived Logger with the given key/value pairs attached
// to every subsequent log call.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{inner: l.inner.With(keyvals...)}
}
