// Package store persists the mapping catalog, schema declarations and
// password policies in a SQL database through GORM.
//
// A GORMStore is a mapping.Source for mapping.Catalog and a policy.Store for
// policy.Engine.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/attrsync/internal/logger"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a record violates a unique key.
	ErrDuplicate = errors.New("record already exists")
)

// sqlite pragmas: WAL lets readers run during catalog imports.
const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// GORMStore is the SQL-backed catalog store.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

// New opens the database described by config and brings its schema up to
// date: versioned migrations on PostgreSQL, AutoMigrate on SQLite.
func New(config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dialector, err := openDialector(config)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := &GORMStore{db: db, config: config}

	if err := s.tunePool(); err != nil {
		_ = s.Close()
		return nil, err
	}
	if config.Type == DatabaseTypeSQLite {
		if err := db.AutoMigrate(allModels()...); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to run database migration: %w", err)
		}
	}
	return s, nil
}

func openDialector(config *Config) (gorm.Dialector, error) {
	if config.Type == DatabaseTypePostgres {
		dsn := config.Postgres.DSN()
		if err := runMigrations(dsn); err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	}

	path := config.SQLite.Path
	if path == memoryPath {
		return sqlite.Open(path), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return sqlite.Open(path + sqlitePragmas), nil
}

func (s *GORMStore) tunePool() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	switch {
	case s.config.Type == DatabaseTypePostgres:
		sqlDB.SetMaxOpenConns(s.config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(s.config.Postgres.MaxIdleConns)
	case s.config.SQLite.Path == memoryPath:
		// each connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	}
	return nil
}

// DB returns the underlying GORM connection.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// gormWriter forwards GORM's slow-query and error lines to the logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logger.KeyComponent, "store")
}

func newGormLogger() gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// convertNotFoundError maps gorm.ErrRecordNotFound to ErrNotFound.
func convertNotFoundError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
