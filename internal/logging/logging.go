// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"

	"taskpulse/internal/config"
)

// New returns a logrus logger configured from cfg, writing to out (stdout when nil).
func New(cfg config.LogConfig, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := log.New()
	logger.SetOutput(out)
	if lvl, err := log.ParseLevel(strings.TrimSpace(cfg.Level)); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return logger
}

// Gorm adapts logger for gorm: slow queries and errors only.
func Gorm(logger *log.Logger) gormlogger.Interface {
	return gormlogger.New(
		logger.WithField("component", "gorm"),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
