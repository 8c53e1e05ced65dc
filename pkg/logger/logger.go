// Package logger provides the logging capability for repoman.
//
// A single package-level slog logger is shared by the CLI and the background
// agent. CLI runs log human-readable text to stderr; structured (JSON) output
// can be requested via the UNSTRUCTURED_LOGS=false environment variable so
// the agent log file stays machine-parseable.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/spf13/viper"
)

// singleton is the package-level logger created by Initialize.
// Accessed atomically to be safe for concurrent use across goroutines.
var singleton atomic.Pointer[slog.Logger]

func init() {
	// Set a default logger so callers that skip Initialize() don't panic.
	singleton.Store(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func get() *slog.Logger {
	return singleton.Load()
}

// Get returns the underlying *slog.Logger for injection into structs.
func Get() *slog.Logger {
	return get()
}

// Set replaces the singleton logger. This is intended for tests that need to
// capture log output; production code should use Initialize instead.
func Set(l *slog.Logger) {
	singleton.Store(l)
}

// unstructuredLogs checks the UNSTRUCTURED_LOGS environment variable.
// Unstructured (text) output is the default.
func unstructuredLogs() bool {
	use, err := strconv.ParseBool(os.Getenv("UNSTRUCTURED_LOGS"))
	if err != nil {
		return true
	}
	return use
}

// Initialize creates the singleton logger, writing to stderr. The level is
// debug when the --debug flag (bound to viper) is set, info otherwise.
func Initialize() {
	InitializeWithWriter(os.Stderr)
}

// InitializeWithWriter creates the singleton logger writing to w instead of
// stderr.
func InitializeWithWriter(w io.Writer) {
	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if unstructuredLogs() {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	singleton.Store(slog.New(handler))
}

// Debug logs a message at debug level using the singleton logger.
func Debug(msg string) {
	get().Debug(msg)
}

// Debugf logs a formatted message at debug level using the singleton logger.
func Debugf(msg string, args ...any) {
	get().Debug(fmt.Sprintf(msg, args...))
}

// Info logs a message at info level using the singleton logger.
func Info(msg string) {
	get().Info(msg)
}

// Infof logs a formatted message at info level using the singleton logger.
func Infof(msg string, args ...any) {
	get().Info(fmt.Sprintf(msg, args...))
}

// Warn logs a message at warning level using the singleton logger.
func Warn(msg string) {
	get().Warn(msg)
}

// Warnf logs a formatted message at warning level using the singleton logger.
func Warnf(msg string, args ...any) {
	get().Warn(fmt.Sprintf(msg, args...))
}

// Error logs a message at error level using the singleton logger.
func Error(msg string) {
	get().Error(msg)
}

// Errorf logs a formatted message at error level using the singleton logger.
func Errorf(msg string, args ...any) {
	get().Error(fmt.Sprintf(msg, args...))
}
