// Package log exposes the process-wide logrus logger.
package log

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetLevel(levelFromEnv(os.Getenv("LOG_LEVEL")))
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func levelFromEnv(v string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// GetLogger returns the shared logger instance.
func GetLogger() *logrus.Logger {
	return logger
}

// UseJSON switches the shared logger to JSON output, used by the HTTP server.
func UseJSON() {
	logger.SetFormatter(&logrus.JSONFormatter{})
}
