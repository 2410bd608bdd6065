// Package log wraps a process-wide logrus logger. Services tag their
// entries with WithComponent so one JSON stream stays filterable.
package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *logrus.Logger

// Config controls the process logger.
type Config struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, text
	Output     string `json:"output"`      // stdout, file
	Filename   string `json:"filename"`    // log file path when output is file
	MaxSize    int    `json:"max_size"`    // per-file cap in MB before rotation
	MaxAge     int    `json:"max_age"`     // days to keep rotated files
	MaxBackups int    `json:"max_backups"` // rotated files to keep
	Compress   bool   `json:"compress"`
}

// Init configures the process logger. An unparseable level falls back
// to info rather than failing startup.
func Init(cfg Config) error {
	logger = logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	var output io.Writer = os.Stdout
	if cfg.Output == "file" && cfg.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0755); err != nil {
			return err
		}
		// lumberjack handles rotation.
		output = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
	}
	logger.SetOutput(output)

	return nil
}

// GetLogger returns the process logger, creating a default one when
// Init has not run (tests, mostly).
func GetLogger() *logrus.Logger {
	if logger == nil {
		logger = logrus.New()
	}
	return logger
}

// Info logs at info level without fields.
func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

// WithField starts an entry with one field.
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields starts an entry with several fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithError starts an entry carrying err.
func WithError(err error) *logrus.Entry {
	return GetLogger().WithError(err)
}

// WithComponent tags an entry with the emitting component name.
func WithComponent(name string) *logrus.Entry {
	return GetLogger().WithField("component", name)
}
