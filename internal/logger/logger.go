// Package logger builds the process zap logger and carries request-scoped
// loggers through contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the logger for env. prod logs JSON; local, dev and docker
// log colored console lines; test logs nothing. A non-empty level (debug,
// info, warn, error) replaces the environment's default level.
func NewLogger(env, level string) (*zap.Logger, error) {
	if env == "test" {
		return zap.NewNop(), nil
	}
	cfg, err := configFor(env)
	if err != nil {
		return nil, err
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func configFor(env string) (zap.Config, error) {
	switch env {
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg, nil
	case "local", "dev", "docker":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg, nil
	}
	return zap.Config{}, fmt.Errorf("no logger configuration for environment %q", env)
}

// NewCLI logs to stderr so stdout carries only command output. Only
// warnings and errors show unless verbose is set.
func NewCLI(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level.SetLevel(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build cli logger: %w", err)
	}
	return l, nil
}
