// Package logging sets up the process-wide logrus logger, grounded on the
// teacher's cmd entrypoint (level parsed from configuration, text
// formatting with full timestamps, structured fields for every subsystem
// logger handed out from here).
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures and returns the root logger for level (one of logrus's
// level strings: "debug", "info", "warn", "error", ...).
func Setup(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)
	return logger, nil
}

// ForComponent returns a child logger carrying a "component" field, the
// way every subsystem constructor in this module takes a *logrus.Logger
// and immediately narrows it.
func ForComponent(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}
