// Package log sets up the process wide logrus logger.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level  string
	Format string
	// File enables a rotated log file next to stderr output when not empty.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu     sync.RWMutex
	logger = logrus.New()
	closer io.Closer
)

func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return logger
}

// Init replaces the global logger, writing to out and to the configured log
// file. Calling it again closes the log file opened by the previous call.
func Init(cfg Config, out io.Writer) error {
	if out == nil {
		out = os.Stderr
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return err
	}

	writers := []io.Writer{out}

	var fileWriter *lumberjack.Logger
	if cfg.File != "" {
		fileWriter = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,  // megabytes
			MaxBackups: cfg.MaxBackups, // number of backups
			MaxAge:     cfg.MaxAgeDays, // days
			Compress:   cfg.Compress,
		}
		writers = append(writers, fileWriter)
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(formatter)
	l.SetOutput(io.MultiWriter(writers...))

	mu.Lock()
	defer mu.Unlock()

	if closer != nil {
		if err := closer.Close(); err != nil {
			l.WithError(err).Warn("Failed to close previous log file")
		}
		closer = nil
	}
	if fileWriter != nil {
		closer = fileWriter
	}
	logger = l

	return nil
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if closer == nil {
		return nil
	}

	err := closer.Close()
	closer = nil

	return err
}

func parseLevel(levelStr string) (logrus.Level, error) {
	if levelStr == "" {
		return logrus.InfoLevel, nil
	}

	return logrus.ParseLevel(strings.ToLower(levelStr))
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		}, nil
	case "json":
		return &logrus.JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", format)
	}
}
