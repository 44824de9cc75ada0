// Package logging provides zap logger construction and helpers for keeping
// credentials out of log output.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a zap logger appropriate for the environment.
// "local" gets human-readable development output; everything else gets
// production JSON at info level.
func New(env string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
