package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/pkg/config"
)

var (
	serveReloadInterval time.Duration
	serveWatch          bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep the engine loaded and expose metrics",
	Long: `Run the engine in the foreground, exposing Prometheus metrics when
metrics are enabled in the configuration.

The mapping catalog is reloaded on SIGHUP and, when --reload-interval is
set, periodically. With --watch a file catalog is also reloaded whenever
the file changes. SIGINT or SIGTERM stop the process.

Examples:
  # Serve with the default config
  attrsync serve

  # Reload the catalog every five minutes
  attrsync serve --reload-interval 5m

  # Reload a file catalog as soon as it is edited
  attrsync serve --watch`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&serveReloadInterval, "reload-interval", 0, "Catalog reload interval (0 disables)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload a file catalog when the file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := cmdutil.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("shutdown error", logger.Err(err))
		}
	}()

	if s.Metrics != nil {
		s.Metrics.Start(ctx)
		logger.Info("metrics enabled", "port", s.Config.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	var tick <-chan time.Time
	if serveReloadInterval > 0 {
		ticker := time.NewTicker(serveReloadInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	changed := make(chan struct{}, 1)
	if serveWatch {
		if s.Config.Catalog.Source != config.CatalogSourceFile {
			return fmt.Errorf("--watch requires catalog.source %q", config.CatalogSourceFile)
		}
		go func() {
			err := watchFile(ctx, s.Config.Catalog.Path, func() {
				select {
				case changed <- struct{}{}:
				default:
				}
			})
			if err != nil {
				logger.Error("catalog watcher stopped", logger.Err(err))
			}
		}()
		logger.Info("watching catalog file", "path", s.Config.Catalog.Path)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	logger.Info("attrsync is running, press Ctrl+C to stop")
	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reload(ctx, s)
				continue
			}
			logger.Info("shutdown signal received", "signal", sig.String())
			return nil
		case <-tick:
			reload(ctx, s)
		case <-changed:
			reload(ctx, s)
		case <-ctx.Done():
			return nil
		}
	}
}

func reload(ctx context.Context, s *cmdutil.Session) {
	start := time.Now()
	if err := s.Engine.Reload(ctx); err != nil {
		logger.Error("catalog reload failed", logger.Err(err))
		return
	}
	logger.Info("catalog reloaded",
		"resources", len(s.Engine.Catalog.Resources()),
		logger.DurationMs(time.Since(start)))
}
