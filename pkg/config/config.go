// Package config loads the attrsync configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/attrsync/pkg/connector/ldap"
	"github.com/marmos91/attrsync/pkg/store"
)

// Config represents the attrsync configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (ATTRSYNC_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Database holds the mapping catalog, schemas and password policies
	// when Catalog.Source is "database".
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Catalog selects where resources, schemas and policies come from.
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`

	// Cache configures the virtual attribute cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Expression configures the expression evaluator
	Expression ExpressionConfig `mapstructure:"expression" yaml:"expression"`

	// Password configures password generation fallbacks
	Password PasswordConfig `mapstructure:"password" yaml:"password"`

	// Connectors binds resource keys to connector gateways.
	Connectors map[string]ConnectorConfig `mapstructure:"connectors" validate:"dive" yaml:"connectors,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Catalog sources.
const (
	CatalogSourceDatabase = "database"
	CatalogSourceFile     = "file"
)

// CatalogConfig selects the mapping catalog source.
type CatalogConfig struct {
	// Source is "database" (default) or "file".
	Source string `mapstructure:"source" validate:"required,oneof=database file" yaml:"source"`

	// Path is the catalog document read when Source is "file".
	Path string `mapstructure:"path" validate:"required_if=Source file" yaml:"path,omitempty"`
}

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendBadger = "badger"
)

// CacheConfig configures the virtual attribute cache.
type CacheConfig struct {
	// Backend is "memory" (bounded LRU, default) or "badger" (persistent).
	Backend string `mapstructure:"backend" validate:"required,oneof=memory badger" yaml:"backend"`

	// TTL is how long a populated entry is served without a connector fetch.
	// Default: 5m
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0" yaml:"ttl"`

	// Size bounds the memory backend's entry count.
	// Default: 10000
	Size int `mapstructure:"size" validate:"omitempty,gt=0" yaml:"size"`

	// Path is the badger directory. Empty runs badger in memory.
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// ExpressionConfig configures the expression evaluator.
type ExpressionConfig struct {
	// CacheSize bounds the number of parsed expressions kept in memory.
	// Default: 512
	CacheSize int `mapstructure:"cache_size" validate:"omitempty,gt=0" yaml:"cache_size"`
}

// PasswordConfig configures password generation.
type PasswordConfig struct {
	// FallbackLength is the length of the random password substituted when
	// no password satisfies the applicable policies.
	// Default: 16
	FallbackLength int `mapstructure:"fallback_length" validate:"gte=8,lte=128" yaml:"fallback_length"`
}

// Connector types.
const (
	ConnectorTypeLDAP   = "ldap"
	ConnectorTypeMemory = "memory"
)

// ConnectorConfig binds one resource to a gateway.
type ConnectorConfig struct {
	// Type is "ldap" or "memory".
	Type string `mapstructure:"type" validate:"required,oneof=ldap memory" yaml:"type"`

	// LDAP is required when Type is "ldap".
	LDAP *ldap.Config `mapstructure:"ldap" validate:"omitempty" yaml:"ldap,omitempty"`
}

// EnvPrefix prefixes environment overrides: ATTRSYNC_CACHE_TTL=10m.
const EnvPrefix = "ATTRSYNC"

// Load builds the configuration from defaults, the file at configPath and
// ATTRSYNC_* environment variables, later sources winning. An empty
// configPath searches the default location. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad is Load for commands that need a configuration file to exist.
// The error explains how to create one.
func MustLoad(configPath string) (*Config, error) {
	path := configPath
	if path == "" {
		path = GetDefaultConfigPath()
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		hint := "  attrsync config init"
		if configPath != "" {
			hint += " --config " + configPath
		}
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Create one with:\n%s\n\n"+
			"or point to an existing file with --config", path, hint)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML. The file may hold bind passwords so it is
// created with mode 0600.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// newViper returns a viper seeded with every default as a key, so that
// environment overrides apply even when no file is present.
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(GetConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode defaults: %w", err)
	}
	var defaults map[string]any
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("failed to decode defaults: %w", err)
	}
	setDefaults(v, "", defaults)
	return v, nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, prefix+k+".", sub)
			continue
		}
		v.SetDefault(prefix+k, val)
	}
}

func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook accepts "30s"-style strings. Bare numbers are seconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch d := data.(type) {
		case string:
			return time.ParseDuration(d)
		case int:
			return time.Duration(d) * time.Second, nil
		case int64:
			return time.Duration(d) * time.Second, nil
		case float64:
			return time.Duration(d * float64(time.Second)), nil
		}
		return data, nil
	}
}

// GetConfigDir returns $XDG_CONFIG_HOME/attrsync, ~/.config/attrsync, or "."
// when no home directory is known.
func GetConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "attrsync")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "attrsync")
	}
	return "."
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a file exists at GetDefaultConfigPath.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
