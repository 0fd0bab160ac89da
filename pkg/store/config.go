package store

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// DatabaseType selects the SQL backend.
type DatabaseType string

const (
	DatabaseTypeSQLite   DatabaseType = "sqlite"
	DatabaseTypePostgres DatabaseType = "postgres"
)

const memoryPath = ":memory:"

// Config selects and configures the catalog database.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" yaml:"type"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// SQLiteConfig holds the database file, or ":memory:".
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig holds connection settings for PostgreSQL.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// SSLMode is one of disable, require, verify-ca, verify-full.
	SSLMode string `mapstructure:"sslmode" yaml:"sslmode"`

	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// DSN returns a postgres:// URL understood by both pgx and golang-migrate.
func (c *PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// DefaultSQLitePath is attrsync.db under the user configuration directory.
func DefaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "attrsync", "attrsync.db")
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = DefaultSQLitePath()
		}
	case DatabaseTypePostgres:
		p := &c.Postgres
		p.Port = orDefault(p.Port, 5432)
		p.MaxOpenConns = orDefault(p.MaxOpenConns, 25)
		p.MaxIdleConns = orDefault(p.MaxIdleConns, 5)
		if p.SSLMode == "" {
			p.SSLMode = "disable"
		}
	}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Validate reports every missing required field at once.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite path is required")
		}
		return nil
	case DatabaseTypePostgres:
		var errs []error
		for field, v := range map[string]string{
			"host":     c.Postgres.Host,
			"database": c.Postgres.Database,
			"user":     c.Postgres.User,
		} {
			if v == "" {
				errs = append(errs, fmt.Errorf("postgres %s is required", field))
			}
		}
		return errors.Join(errs...)
	default:
		return fmt.Errorf("unsupported database type: %q", c.Type)
	}
}
