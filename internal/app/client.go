package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	intrnl "watchroom/internal"
	"watchroom/internal/storage"
)

// RunClient wires the cache, API client, connector and room controller
// together and launches the Bubble Tea TUI.
func RunClient(cfg ClientConfig) error {
	if cfg.APIBaseURL == "" {
		return errors.New("API base URL is required")
	}
	if cfg.SocketURL == "" {
		return errors.New("socket URL is required")
	}

	logger, logClose, err := newLogger(cfg.LogPath)
	if err != nil {
		return err
	}
	defer logClose()

	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	cache, err := storage.NewCache(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()
	if err := cache.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate cache: %w", err)
	}

	api := intrnl.NewAPIClient(cfg.APIBaseURL)
	connector := intrnl.NewConnector(cfg.SocketURL, api, logger)
	controller := intrnl.NewRoomController(api, connector, cache, logger)
	defer controller.Leave()

	return intrnl.RunClient(api, controller, cfg.Username)
}

// newLogger opens a file-backed zerolog logger; the TUI owns stdout and
// stderr so everything structured goes to the log file.
func newLogger(path string) (zerolog.Logger, func(), error) {
	if path == "" {
		return zerolog.Nop(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := zerolog.New(file).With().Timestamp().Logger()
	return logger, func() { _ = file.Close() }, nil
}
