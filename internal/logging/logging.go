// Package logging sets up the per-run log file and console logger.
// The run log is append-only and timestamp-named, one file per invocation,
// which removes cross-run contention by construction.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// logTimeLayout names run log files with a sortable timestamp.
const logTimeLayout = "20060102-150405"

// lineTimeLayout is the timestamp format inside log lines.
const lineTimeLayout = "2006-01-02 15:04:05"

// RunLog bundles the configured logger with the log file it writes to.
type RunLog struct {
	Logger zerolog.Logger
	Path   string

	file *os.File
}

// Setup creates the run log file under dir and returns a logger writing
// `[timestamp] [LEVEL] message` lines to it, mirrored to stderr at the same
// level. Levels: debug, info, warn, error.
func Setup(dir, level string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("updrift-%s.log", time.Now().Format(logTimeLayout)))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileWriter := lineWriter(file, true)
	consoleWriter := lineWriter(os.Stderr, false)

	logger := zerolog.New(zerolog.MultiLevelWriter(fileWriter, consoleWriter)).
		Level(ParseLevel(level)).
		With().Timestamp().Logger()

	return &RunLog{Logger: logger, Path: path, file: file}, nil
}

// Close flushes and closes the underlying log file.
func (rl *RunLog) Close() error {
	if rl.file != nil {
		return rl.file.Close()
	}
	return nil
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// lineWriter renders `[timestamp] [LEVEL] message key=value...` lines.
func lineWriter(out *os.File, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: lineTimeLayout,
		FormatTimestamp: func(i interface{}) string {
			s, _ := i.(string)
			if t, err := time.Parse(zerolog.TimeFieldFormat, s); err == nil {
				return "[" + t.Format(lineTimeLayout) + "]"
			}
			return "[" + s + "]"
		},
		FormatLevel: func(i interface{}) string {
			s, _ := i.(string)
			return "[" + strings.ToUpper(s) + "]"
		},
	}
}
