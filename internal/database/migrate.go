package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

// SourceURL turns a migrations directory into a file:// source URL. Values
// that already carry a scheme are returned unchanged.
func SourceURL(path string) (string, error) {
	if strings.Contains(path, "://") {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations path %s: %w", path, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Migrate applies every pending migration in dir to the database.
func Migrate(connString, dir string, logger zerolog.Logger) error {
	source, err := SourceURL(dir)
	if err != nil {
		return err
	}

	m, err := migrate.New(source, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("no pending migrations")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err == nil {
		logger.Info().Uint("version", version).Msg("migrations applied")
	}
	return nil
}
