package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/internal/telemetry"
)

// ErrNoGateway is returned by Router for resources without a registered gateway.
var ErrNoGateway = errors.New("no gateway registered for resource")

// Gateway fetches and pushes connector objects on external resources.
//
// Errors are opaque per-resource failures. Implementations must honor
// context cancellation and must not retry.
type Gateway interface {
	// Fetch returns the object identified by accountID, or (nil, nil) when
	// the resource has no such object.
	Fetch(ctx context.Context, resourceKey, objectClass, accountID string) (*Object, error)

	// Push creates or updates the object identified by accountID.
	Push(ctx context.Context, resourceKey, objectClass, accountID string, attrs []Attribute) error
}

// Metrics observes gateway round trips. A nil Metrics is valid.
type Metrics interface {
	ObserveFetch(resource string, duration time.Duration, err error)
	ObservePush(resource string, duration time.Duration, err error)
}

// Router dispatches to a per-resource gateway.
type Router struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{gateways: make(map[string]Gateway)}
}

// Register binds resourceKey to g.
func (r *Router) Register(resourceKey string, g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[resourceKey] = g
}

func (r *Router) lookup(resourceKey string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[resourceKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGateway, resourceKey)
	}
	return g, nil
}

// Fetch implements Gateway.
func (r *Router) Fetch(ctx context.Context, resourceKey, objectClass, accountID string) (*Object, error) {
	g, err := r.lookup(resourceKey)
	if err != nil {
		return nil, err
	}
	return g.Fetch(ctx, resourceKey, objectClass, accountID)
}

// Push implements Gateway.
func (r *Router) Push(ctx context.Context, resourceKey, objectClass, accountID string, attrs []Attribute) error {
	g, err := r.lookup(resourceKey)
	if err != nil {
		return err
	}
	return g.Push(ctx, resourceKey, objectClass, accountID, attrs)
}

// instrumented wraps a Gateway with tracing, logging and metrics.
type instrumented struct {
	next    Gateway
	metrics Metrics
}

// Instrument wraps g so every call opens a span, is logged at debug level
// and is observed by m (which may be nil).
func Instrument(g Gateway, m Metrics) Gateway {
	return &instrumented{next: g, metrics: m}
}

func (i *instrumented) Fetch(ctx context.Context, resourceKey, objectClass, accountID string) (*Object, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanConnectorFetch)
	defer span.End()
	span.SetAttributes(
		telemetry.Resource(resourceKey),
		telemetry.ObjectClass(objectClass),
		telemetry.AccountID(accountID),
	)

	start := time.Now()
	obj, err := i.next.Fetch(ctx, resourceKey, objectClass, accountID)
	elapsed := time.Since(start)

	if i.metrics != nil {
		i.metrics.ObserveFetch(resourceKey, elapsed, err)
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.DebugCtx(ctx, "connector fetch failed",
			logger.Resource(resourceKey), logger.AccountID(accountID), logger.Err(err))
		return nil, err
	}

	span.SetAttributes(telemetry.Found(obj != nil))
	logger.DebugCtx(ctx, "connector fetch",
		logger.Resource(resourceKey), logger.AccountID(accountID),
		"found", obj != nil, logger.DurationMs(elapsed))
	return obj, nil
}

func (i *instrumented) Push(ctx context.Context, resourceKey, objectClass, accountID string, attrs []Attribute) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanConnectorPush)
	defer span.End()
	span.SetAttributes(
		telemetry.Resource(resourceKey),
		telemetry.ObjectClass(objectClass),
		telemetry.AccountID(accountID),
		telemetry.AttrCountOf(len(attrs)),
	)

	start := time.Now()
	err := i.next.Push(ctx, resourceKey, objectClass, accountID, attrs)
	elapsed := time.Since(start)

	if i.metrics != nil {
		i.metrics.ObservePush(resourceKey, elapsed, err)
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.DebugCtx(ctx, "connector push failed",
			logger.Resource(resourceKey), logger.AccountID(accountID), logger.Err(err))
		return err
	}
	logger.DebugCtx(ctx, "connector push",
		logger.Resource(resourceKey), logger.AccountID(accountID),
		logger.KeyAttrCount, len(attrs), logger.DurationMs(elapsed))
	return nil
}
