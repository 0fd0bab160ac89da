// Package cmdutil provides shared utilities for attrsync commands.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/marmos91/attrsync/internal/cli/output"
	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/internal/telemetry"
	"github.com/marmos91/attrsync/pkg/config"
	"github.com/marmos91/attrsync/pkg/engine"
	"github.com/marmos91/attrsync/pkg/metrics"
)

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	NoColor    bool
}

// Version is reported to telemetry backends. Set by the root command.
var Version = "dev"

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// LoadConfig loads the configuration named by --config, or the default one.
// Without any configuration file the defaults are used.
func LoadConfig() (*config.Config, error) {
	if Flags.ConfigFile != "" {
		return config.MustLoad(Flags.ConfigFile)
	}
	return config.Load("")
}

// Session is a loaded configuration with its logger, telemetry and engine
// initialized. Close releases everything in reverse order.
type Session struct {
	Config *config.Config
	Engine *engine.Engine

	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Server

	closers []func() error
}

// Open loads the configuration and builds an engine.
func Open(ctx context.Context, opts ...engine.Option) (*Session, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}

	s := &Session{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "attrsync",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.closers = append(s.closers, func() error { return telemetryShutdown(context.Background()) })

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "attrsync",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}
	s.closers = append(s.closers, profilingShutdown)

	// The registry must exist before the engine asks for its collectors.
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		s.Metrics = metrics.NewServer(cfg.Metrics.Port)
	}

	e, err := engine.New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	s.Engine = e
	s.closers = append(s.closers, e.Close)

	ok = true
	return s, nil
}

// Close shuts down the engine, profiling and tracing.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Printer returns a printer honoring --output and --no-color.
func Printer() (*output.Printer, error) {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, !Flags.NoColor), nil
}

// ReadYAML decodes the YAML file at path into v.
func ReadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
