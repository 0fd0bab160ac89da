package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/internal/telemetry"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/inbound"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/marmos91/attrsync/pkg/outbound"
)

// ErrObjectNotFound is returned by Pull when the resource has no object for
// the account id.
var ErrObjectNotFound = errors.New("connector object not found")

// Pull fetches accountID from resourceKey and translates it into a new
// entity of anyType.
func (e *Engine) Pull(ctx context.Context, resourceKey, anyType, accountID string, tmpl *entity.Entity) (_ *inbound.Result, err error) {
	ctx, done := startRun(ctx, "pull", resourceKey, anyType, accountID)
	defer func() { done(err) }()

	resource, provision, err := e.provision(resourceKey, anyType)
	if err != nil {
		return nil, err
	}

	obj, err := e.Gateway.Fetch(ctx, resourceKey, provision.ObjectClassFor(), accountID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%s on %s: %w", accountID, resource.Key, ErrObjectNotFound)
	}

	res, err := e.Translator.Translate(ctx, obj, mapping.ItemsFor(provision, mapping.PurposeSynchronization), anyType, tmpl)
	if err != nil {
		return nil, err
	}
	res.Entity.AddResource(resourceKey)
	logWarnings(ctx, resourceKey, res.Warnings)
	return res, nil
}

// PullUpdate fetches accountID from resourceKey and diffs it against original.
func (e *Engine) PullUpdate(ctx context.Context, resourceKey, accountID string, original *entity.Entity, tmpl *entity.Entity) (_ *inbound.DiffResult, err error) {
	ctx, done := startRun(ctx, "pull_update", resourceKey, original.Type, original.Key)
	defer func() { done(err) }()

	resource, provision, err := e.provision(resourceKey, original.Type)
	if err != nil {
		return nil, err
	}

	obj, err := e.Gateway.Fetch(ctx, resourceKey, provision.ObjectClassFor(), accountID)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("%s on %s: %w", accountID, resource.Key, ErrObjectNotFound)
	}

	res, err := e.Translator.Diff(ctx, original.Key, obj, original, mapping.ItemsFor(provision, mapping.PurposeSynchronization), tmpl)
	if err != nil {
		return nil, err
	}
	logWarnings(ctx, resourceKey, res.Warnings)
	return res, nil
}

// Prepare builds the outbound payload of ent for resourceKey.
func (e *Engine) Prepare(ctx context.Context, ent *entity.Entity, resourceKey string, opts outbound.Options) (*outbound.Result, error) {
	resource, err := e.Catalog.Resource(resourceKey)
	if err != nil {
		return nil, err
	}
	res, err := e.Preparer.Prepare(ctx, ent, resource, opts)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		logger.WarnCtx(ctx, "outbound warning", logger.Resource(resourceKey), "item", w.Item, "warning", w.Message)
	}
	return res, nil
}

// Propagate prepares ent for resourceKey and pushes the payload. A payload
// without account id is still pushed; the resource decides whether to
// reject it.
func (e *Engine) Propagate(ctx context.Context, ent *entity.Entity, resourceKey string, opts outbound.Options) (_ *outbound.Result, err error) {
	ctx, done := startRun(ctx, "propagate", resourceKey, ent.Type, ent.Key)
	defer func() { done(err) }()

	_, provision, err := e.provision(resourceKey, ent.Type)
	if err != nil {
		return nil, err
	}
	res, err := e.Prepare(ctx, ent, resourceKey, opts)
	if err != nil {
		return nil, err
	}
	if err := e.Gateway.Push(ctx, resourceKey, provision.ObjectClassFor(), res.AccountID, res.Attributes); err != nil {
		return res, err
	}
	return res, nil
}

func (e *Engine) provision(resourceKey, anyType string) (*mapping.Resource, *mapping.Provision, error) {
	resource, err := e.Catalog.Resource(resourceKey)
	if err != nil {
		return nil, nil, err
	}
	provision := resource.Provision(anyType)
	if provision == nil {
		return nil, nil, fmt.Errorf("resource %s has no provision for %s: %w", resourceKey, anyType, outbound.ErrNoProvision)
	}
	return resource, provision, nil
}

func logWarnings(ctx context.Context, resourceKey string, warnings []inbound.Warning) {
	for _, w := range warnings {
		logger.WarnCtx(ctx, "inbound warning", logger.Resource(resourceKey), "item", w.Item, "warning", w.Message)
	}
}

// startRun opens the span and log context of one engine operation. The
// returned func ends both and must be called with the operation's error.
func startRun(ctx context.Context, op, resourceKey, anyType, owner string) (context.Context, func(error)) {
	ctx, span := telemetry.StartSpan(ctx, "engine."+op, trace.WithAttributes(
		telemetry.Resource(resourceKey), telemetry.AnyType(anyType), telemetry.OwnerKey(owner)))

	lc := logger.NewLogContext(op).
		WithResource(resourceKey).
		WithOwner(anyType, owner).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	return ctx, func(err error) {
		if err != nil {
			telemetry.RecordError(ctx, err)
			logger.DebugCtx(ctx, "operation failed", logger.Err(err), logger.KeyDurationMs, lc.DurationMs())
		} else {
			logger.DebugCtx(ctx, "operation completed", logger.KeyDurationMs, lc.DurationMs())
		}
		span.End()
	}
}
