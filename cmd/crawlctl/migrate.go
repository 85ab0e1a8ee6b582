package main

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/urfave/cli/v2"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back the Postgres schema (airlines, airports, seat_specs, flights, prices)",
		Subcommands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply every pending migration",
				Action: func(c *cli.Context) error { return runMigrate(c, func(m *migrate.Migrate) error { return m.Up() }) },
			},
			{
				Name:   "down",
				Usage:  "roll back one migration step",
				Action: func(c *cli.Context) error { return runMigrate(c, func(m *migrate.Migrate) error { return m.Steps(-1) }) },
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					return runMigrate(c, func(m *migrate.Migrate) error {
						version, dirty, err := m.Version()
						if err != nil {
							return err
						}
						fmt.Printf("version=%d dirty=%v\n", version, dirty)
						return nil
					})
				},
			},
		},
	}
}

func runMigrate(c *cli.Context, step func(*migrate.Migrate) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, postgresDSN(cfg.PostgresConfig))
	if err != nil {
		return fmt.Errorf("open migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		_ = srcErr
		_ = dbErr
	}()

	if err := step(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
