package config

import (
	"strings"
	"time"

	"github.com/marmos91/attrsync/pkg/expression"
	"github.com/marmos91/attrsync/pkg/store"
	"github.com/marmos91/attrsync/pkg/virattr"
)

// DefaultFallbackLength is the length of the random password used when no
// password satisfies the applicable policies.
const DefaultFallbackLength = 16

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyDatabaseDefaults(&cfg.Database)
	applyCatalogDefaults(&cfg.Catalog)
	applyCacheDefaults(&cfg.Cache)
	applyExpressionDefaults(&cfg.Expression)
	applyPasswordDefaults(&cfg.Password)
	applyConnectorDefaults(cfg.Connectors)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyDatabaseDefaults(cfg *store.Config) {
	cfg.ApplyDefaults()
}

func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Source == "" {
		cfg.Source = CatalogSourceDatabase
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Backend == "" {
		cfg.Backend = CacheBackendMemory
	}
	if cfg.TTL == 0 {
		cfg.TTL = virattr.DefaultTTL
	}
	if cfg.Size == 0 {
		cfg.Size = virattr.DefaultMemoryEntries
	}
}

func applyExpressionDefaults(cfg *ExpressionConfig) {
	if cfg.CacheSize == 0 {
		cfg.CacheSize = expression.DefaultCacheSize
	}
}

func applyPasswordDefaults(cfg *PasswordConfig) {
	if cfg.FallbackLength == 0 {
		cfg.FallbackLength = DefaultFallbackLength
	}
}

// applyConnectorDefaults fills LDAP defaults for every LDAP connector.
func applyConnectorDefaults(connectors map[string]ConnectorConfig) {
	for key, c := range connectors {
		if c.Type == "" {
			c.Type = ConnectorTypeLDAP
		}
		if c.LDAP != nil {
			c.LDAP.ApplyDefaults()
		}
		connectors[key] = c
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			TTL:     5 * time.Minute,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
