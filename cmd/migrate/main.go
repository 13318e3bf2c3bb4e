package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"bwitty-orders/internal/config"
	"bwitty-orders/internal/database"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		return errors.New("usage: migrate <up|down|version>")
	}

	dbCfg, logCfg := config.LoadDatabase()
	logger := config.NewLogger(logCfg)

	source, err := database.SourceURL(dbCfg.MigrationsPath)
	if err != nil {
		return err
	}

	m, err := migrate.New(source, dbCfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch command := args[0]; command {
	case "up":
		return up(m, logger)
	case "down":
		return down(m, logger)
	case "version":
		return version(m, logger)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func up(m *migrate.Migrate, logger zerolog.Logger) error {
	err := m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info().Msg("no pending migrations")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	logger.Info().Msg("migrations applied successfully")
	return nil
}

func down(m *migrate.Migrate, logger zerolog.Logger) error {
	err := m.Steps(-1)
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info().Msg("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}
	logger.Info().Msg("migration rolled back successfully")
	return nil
}

func version(m *migrate.Migrate, logger zerolog.Logger) error {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info().Msg("no migrations applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("current migration version")
	return nil
}
