package storelog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger("", "info", false)

// logFile backs Zero when it writes to a file.
var logFile *os.File

// NewZeroLogger builds the process logger. An empty filepath means stdout.
// Pretty output uses the zerolog console writer, otherwise records are json.
func NewZeroLogger(filepath string, level string, pretty bool) *zerolog.Logger {
	logger, _ := newZeroLogger(filepath, level, pretty)
	return logger
}

func newZeroLogger(filepath string, level string, pretty bool) (*zerolog.Logger, *os.File) {
	file, writer, err := newWriter(filepath)
	if err != nil {
		writer = os.Stdout
	}
	if pretty {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(writer).With().Timestamp().Logger().Level(parseLevel(level))

	return &logger, file
}

// ReloadLogger replaces the global logger and closes the log file of the
// previous one.
func ReloadLogger(filepath string, level string, pretty bool) {
	logger, file := newZeroLogger(filepath, level, pretty)
	prev := logFile
	Zero, logFile = logger, file
	if prev != nil {
		_ = prev.Close()
	}
}

func UpdateZeroLogLevel(logLevel string) error {
	level := parseLevel(logLevel)
	zeroLogger := Zero.With().Logger().Level(level)
	Zero = &zeroLogger
	return nil
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// newWriter opens filepath in append mode, creating it when missing.
func newWriter(filepath string) (*os.File, io.Writer, error) {
	if filepath == "" {
		return nil, os.Stdout, nil
	}
	f, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}
