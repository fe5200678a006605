package vchan

import (
	"io"

	"avaneesh/vchan-go/pkg/internal/logger"
)

// Logger is the logging interface accepted in Config and by Manager
type Logger = logger.Logger

// LogLevel represents logging level
type LogLevel = logger.Level

const (
	// LevelDebug shows all log messages (most verbose)
	LevelDebug = logger.LevelDebug
	// LevelInfo shows info, warn, and error messages (default)
	LevelInfo = logger.LevelInfo
	// LevelWarn shows warn and error messages
	LevelWarn = logger.LevelWarn
	// LevelError shows only error messages
	LevelError = logger.LevelError
)

// SetLogLevel sets the level of the package default logger
func SetLogLevel(level LogLevel) {
	logger.SetDefault(logger.NewDefaultLogger(level))
}

// NewLogger returns a Logger writing to w at the given level
func NewLogger(w io.Writer, level LogLevel) Logger {
	return logger.NewLogger(w, level)
}

// NewNoOpLogger returns a Logger that discards everything
func NewNoOpLogger() Logger {
	return logger.NewNoOpLogger()
}
