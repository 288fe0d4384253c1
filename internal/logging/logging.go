package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Debug enables per-item extraction
// diagnostics; a non-empty filePath tees JSON records into that file.
func New(debug bool, filePath string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	log.SetLevel(logrus.InfoLevel)
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}

	if filePath == "" {
		log.SetOutput(os.Stderr)
		return log
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.WithError(err).Error("Could not create file for logging")
		return log
	}
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return log
}

// Discard returns a logger that drops everything; used by tests and
// library callers that do not care about diagnostics.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
