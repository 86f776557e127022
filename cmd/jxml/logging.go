package main

import (
	"fmt"

	"go.uber.org/zap"
)

// newLogger builds the process logger. In debug mode every event down to
// debug level goes to logFile; otherwise warnings and errors go to stderr.
func newLogger(debug bool, logFile string) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{logFile}
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		cfg.Encoding = "console"
		cfg.Sampling = nil
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named("jxml"), nil
}
