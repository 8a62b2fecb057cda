// Package logging configures the process-wide zerolog logger: a colored
// console writer on stdout plus an optional rotating file sink.
package logging

import (
	"io"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/verimux/verimux/internal/config"
)

// New builds the root logger from cfg. When LogFile is set, entries are
// also written there as JSON with size-based rotation.
func New(cfg *config.Config) zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        colorable.NewColorableStdout(),
		TimeFormat: time.Kitchen,
		NoColor:    cfg.NoColor,
	}

	writers := []io.Writer{console}
	if cfg.LogFile != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // MiB
			MaxBackups: 3,
			MaxAge:     30, // days
		})
	}

	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()
}
