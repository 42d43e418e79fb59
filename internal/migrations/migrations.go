// Package migrations embeds the schema of the post store.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed *.sql
var migrationsFS embed.FS

// Run applies every pending migration. Already being up to date is not an error.
func Run(dbx *sqlx.DB) error {
	migrator, err := newMigrator(dbx)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error migrating: %w", err)
	}

	version, _, _ := migrator.Version()
	slog.Info("migrated", "version", version)

	return nil
}

func newMigrator(dbx *sqlx.DB) (*migrate.Migrate, error) {
	d, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return nil, fmt.Errorf("error creating migrations source: %w", err)
	}
	i, err := sqlite.WithInstance(dbx.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("error creating sqlite instance for migration: %w", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", d, "sqlite3", i)
	if err != nil {
		return nil, fmt.Errorf("error creating migrator: %w", err)
	}

	return migrator, nil
}
