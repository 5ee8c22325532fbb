package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logMu   sync.RWMutex
	base    = zerolog.Nop()
	logFile *os.File
)

// ConfigureLogging routes Debug output to <dir>/debug.log.
// With verbose set, the same records are also written to stderr.
func ConfigureLogging(dir string, verbose bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open debug log: %w", err)
	}

	var w io.Writer = f
	if verbose {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	zerolog.TimeFieldFormat = time.RFC3339
	base = zerolog.New(w).With().Timestamp().Str("service", "m3u8dl").Logger().Level(zerolog.DebugLevel)
	return nil
}

// SetLogger replaces the base logger (tests use this to capture output)
func SetLogger(l zerolog.Logger) {
	logMu.Lock()
	base = l
	logMu.Unlock()
}

// CloseLogging flushes and closes the debug log file
func CloseLogging() {
	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
	base = zerolog.Nop()
}

// Logger returns a child logger annotated with the given component name.
func Logger(component string) zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return base.With().Str("component", component).Logger()
}

// Debug writes a message to the debug log
func Debug(format string, args ...any) {
	logMu.RLock()
	l := base
	logMu.RUnlock()
	l.Debug().Msgf(format, args...)
}
