package config

import (
	"strings"
	"testing"

	"github.com/marmos91/attrsync/pkg/connector/ldap"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid log level", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"invalid cache backend", func(c *Config) { c.Cache.Backend = "redis" }, "Cache.Backend"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -1 }, "Cache.TTL"},
		{"sample rate out of range", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "lte"},
		{"metrics port out of range", func(c *Config) { c.Metrics.Port = 70000 }, "max"},
		{"fallback too short", func(c *Config) { c.Password.FallbackLength = 4 }, "gte"},
		{"file source without path", func(c *Config) { c.Catalog.Source = CatalogSourceFile }, "Catalog.Path"},
		{"unknown connector type", func(c *Config) {
			c.Connectors = map[string]ConnectorConfig{"r": {Type: "soap"}}
		}, "Type"},
		{"ldap without section", func(c *Config) {
			c.Connectors = map[string]ConnectorConfig{"r": {Type: ConnectorTypeLDAP}}
		}, "ldap section is required"},
		{"ldap without url", func(c *Config) {
			c.Connectors = map[string]ConnectorConfig{"r": {Type: ConnectorTypeLDAP, LDAP: &ldap.Config{BaseDN: "dc=x"}}}
		}, "URL"},
		{"postgres without host", func(c *Config) {
			c.Database.Type = "postgres"
			c.Database.Postgres.Database = "attrsync"
			c.Database.Postgres.User = "attrsync"
		}, "postgres host is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_FileSourceSkipsDatabase(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Catalog = CatalogConfig{Source: CatalogSourceFile, Path: "/etc/attrsync/catalog.yaml"}
	cfg.Database.Type = "postgres"

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected database to be ignored for file catalogs, got: %v", err)
	}
}
