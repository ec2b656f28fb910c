// Package logging is the structured leveled logger shared by the
// channel, both reliable engines, and session bring-up. It keeps the
// level vocabulary and per-section banners of a hand-rolled console
// logger, but backs them with a real structured-logging library so
// fields (peer address, sequence number, session id) are attributable
// rather than string-formatted.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// Level aliases the charmbracelet/log levels under the names used
// throughout this module.
type Level = log.Level

const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// New creates a root logger writing to stderr at the given level, with
// the component name attached as a prefix (mirrors the teacher's
// per-subsystem log prefixes: CHANNEL, GBN, SR, SESSION).
func New(component string, level Level) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	l.SetLevel(level)
	return l.WithPrefix(component)
}

// ParseLevel maps a command-line flag value to a Level, defaulting to
// LevelInfo for anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Section prints a banner line the way the teacher's Section() helper
// did, useful for demarcating phases in the cmd/ binaries (bring-up,
// steady state, shutdown).
func Section(l *log.Logger, title string) {
	l.Info("════════════════════════════════════════")
	l.Info(title)
	l.Info("════════════════════════════════════════")
}
