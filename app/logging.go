package app

import (
	"os"

	"github.com/sirupsen/logrus"
)

// InitLogger returns the process logger: human-readable text with debug
// output when debug is set, JSON at Info otherwise.
func InitLogger(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return logger
	}
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}
