// Package logging builds the file logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"ytscribe/internal/config"
)

// New opens (appending) the configured log file and returns a logger writing
// to it, plus the closer for the file. With logging disabled it returns a
// no-op logger.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	if !cfg.Enabled {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}

	path := cfg.File()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(f).With().Timestamp().Logger()
	return logger, f, nil
}
