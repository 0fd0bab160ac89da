// Package metrics exposes the Prometheus registry used by attrsync and the
// constructors for component metrics.
//
// Metrics are opt-in: until InitRegistry is called every constructor returns
// nil, and components treat a nil metrics value as a no-op.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/attrsync/internal/logger"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process registry with Go runtime and process
// collectors attached. Calling it twice is harmless.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Reset drops the registry. Tests use it to start from a clean slate.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}

// Server serves /metrics for the registry.
type Server struct {
	srv *http.Server
}

// NewServer returns a metrics HTTP server bound to port.
// It returns nil when metrics are disabled.
func NewServer(port int) *Server {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background until ctx is done.
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.Info("metrics server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", logger.Err(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
}

// Handler returns the HTTP handler serving the registry.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
