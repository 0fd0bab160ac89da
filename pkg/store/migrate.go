package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/pkg/store/migrations"
)

// migrationsTable records the applied PostgreSQL schema version.
const migrationsTable = "schema_migrations"

// runMigrations brings a PostgreSQL database up to the embedded schema.
// golang-migrate serializes concurrent runs with an advisory lock.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("catalog schema up to date")
	case err != nil:
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		logger.Warn("catalog schema is dirty, manual intervention may be required", "version", version)
		return nil
	}
	logger.Info("catalog schema ready", "version", version)
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
