// Package monitoring sets up the structured logger shared by the engine and
// the command line tools.
package monitoring

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a text logger writing to w at the named level
// ("debug", "info", "warn", "error"). A nil w writes to stderr.
func New(level string, w io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if w == nil {
		w = os.Stderr
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return log, nil
}

// NewJSON is like New but emits one JSON object per entry.
func NewJSON(level string, w io.Writer) (*logrus.Logger, error) {
	log, err := New(level, w)
	if err != nil {
		return nil, err
	}
	log.SetFormatter(&logrus.JSONFormatter{})
	return log, nil
}

// Discard returns a logger that drops everything. Tests use it to mute
// components.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}
