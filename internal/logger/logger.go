// Package logger is the tagged console logger used by the CLI and the
// storage layers. Messages carry a short component tag ("DB", "DATA", ...).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// stdout resolves os.Stdout at write time so redirecting it (tests, -quiet)
// takes effect without rebuilding the logger.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

var (
	mu  sync.RWMutex
	log = newLogger(stdout{})
)

func newLogger(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:           w,
		TimeFormat:    "15:04:05",
		FieldsExclude: []string{"tag"},
	}
	return zerolog.New(cw).With().Timestamp().Logger()
}

// SetOutput redirects all log output (nil restores stdout).
func SetOutput(w io.Writer) {
	if w == nil {
		w = stdout{}
	}
	mu.Lock()
	log = newLogger(w).Level(log.GetLevel())
	mu.Unlock()
}

// SetLevel sets the minimum level: "debug", "info", "warn", "error" or "disabled".
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	mu.Lock()
	log = log.Level(lvl)
	mu.Unlock()
	return nil
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

// tagged renders the tag as a fixed-width prefix; it is also kept as a
// structured field for non-console writers.
func tagged(e *zerolog.Event, tag, msg string) {
	e.Str("tag", tag).Msg(fmt.Sprintf("[%-5s] %s", tag, msg))
}

func Debug(tag, msg string) {
	tagged(current().Debug(), tag, msg)
}

func Info(tag, msg string) {
	tagged(current().Info(), tag, msg)
}

// Success logs a completed step at info level, marked with a check.
func Success(tag, msg string) {
	tagged(current().Info(), tag, "✓ "+msg)
}

func Warn(tag, msg string) {
	tagged(current().Warn(), tag, msg)
}

func Error(tag, msg string) {
	tagged(current().Error(), tag, msg)
}

// Banner prints the program header.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	tagged(current().Info(), "MAIN", fmt.Sprintf("frontier-engine %s, Monte Carlo portfolio frontier", version))
}

// Section starts a titled block of Stats lines.
func Section(title string) {
	tagged(current().Info(), "-----", strings.ToUpper(title))
}

// Stats prints one key/value line of a Section.
func Stats(key string, value interface{}) {
	tagged(current().Info(), "", fmt.Sprintf("  %-24s %v", key, value))
}
