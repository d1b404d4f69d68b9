// Package utils
package utils

import (
	"fmt"
	"log"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/lumberjack.v3"
)

var (
	logger  *zap.Logger
	once    sync.Once
	logCfg  = DefaultLogConfig()
	console = true
)

// LogConfig controls the rotated log file.
type LogConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Level      string
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Filename:   "logs/depthbook.log",
		MaxSize:    5,
		MaxBackups: 10,
		MaxAge:     14,
		Level:      os.Getenv("LOG_LEVEL"),
	}
}

// Configure sets the sinks GetLogger builds from. It has no effect once
// GetLogger has been called.
func Configure(cfg LogConfig, withConsole bool) {
	logCfg = cfg
	console = withConsole
}

// GetLogger returns the process-wide logger, writing JSON to a rotated file
// and, unless configured otherwise, colored text to stdout.
func GetLogger() *zap.Logger {
	once.Do(func() {
		var err error
		logger, err = NewLogger(logCfg, console)
		if err != nil {
			log.Fatal(err)
		}
	})
	return logger
}

// ParseLevel falls back to info for an empty or unknown level.
func ParseLevel(s string) zapcore.Level {
	if s == "" {
		return zapcore.InfoLevel
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

func NewLogger(cfg LogConfig, console bool) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	var cores []zapcore.Core
	if console {
		developmentCfg := zap.NewDevelopmentEncoderConfig()
		developmentCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(developmentCfg), zapcore.AddSync(os.Stdout), level))
	}

	if cfg.Filename != "" {
		fileHandler, err := lumberjack.New(
			lumberjack.WithFileName(cfg.Filename),
			lumberjack.WithMaxBytes(int64(cfg.MaxSize*1024*1024)),
			lumberjack.WithMaxBackups(cfg.MaxBackups),
			lumberjack.WithMaxDays(cfg.MaxAge),
			lumberjack.WithCompress(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create file handler: %w", err)
		}
		productionCfg := zap.NewProductionEncoderConfig()
		productionCfg.TimeKey = "timestamp"
		productionCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(productionCfg), zapcore.AddSync(fileHandler), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}
