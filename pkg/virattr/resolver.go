package virattr

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/internal/telemetry"
	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/mapping"
	"golang.org/x/sync/singleflight"
)

// AccountResolver computes the account id of an entity on a resource.
type AccountResolver interface {
	AccountID(ctx context.Context, owner *entity.Entity, resource *mapping.Resource, provision *mapping.Provision) (string, error)
}

// AccountResolverFunc adapts a function to AccountResolver.
type AccountResolverFunc func(ctx context.Context, owner *entity.Entity, resource *mapping.Resource, provision *mapping.Provision) (string, error)

func (f AccountResolverFunc) AccountID(ctx context.Context, owner *entity.Entity, resource *mapping.Resource, provision *mapping.Provision) (string, error) {
	return f(ctx, owner, resource, provision)
}

// Warning records a resource that could not be read during a resolution.
type Warning struct {
	Resource string
	Schema   string
	Err      error
}

func (w Warning) String() string {
	return fmt.Sprintf("resource %s, schema %s: %v", w.Resource, w.Schema, w.Err)
}

// Resolution is the outcome of resolving one virtual attribute.
type Resolution struct {
	Schema   string
	Values   []string
	Hit      bool
	Warnings []Warning
}

// Resolver fetches virtual attribute values from every resource declaring
// them, through the cache.
type Resolver struct {
	cache    *Cache
	catalog  *mapping.Catalog
	gateway  connector.Gateway
	accounts AccountResolver
	flights  singleflight.Group
}

// NewResolver creates a resolver.
func NewResolver(cache *Cache, catalog *mapping.Catalog, gateway connector.Gateway, accounts AccountResolver) *Resolver {
	return &Resolver{cache: cache, catalog: catalog, gateway: gateway, accounts: accounts}
}

// Cache returns the cache the resolver reads and fills.
func (r *Resolver) Cache() *Cache { return r.cache }

// KeyFor returns the cache key of schema on owner.
func KeyFor(owner *entity.Entity, schema string) Key {
	return Key{OwnerType: owner.Kind.String(), OwnerKey: owner.Key, Schema: schema}
}

// fetched is a connector object read once per resource within a call.
type fetched struct {
	obj *connector.Object
	err error
}

// Resolve returns the values of schema for owner, from the cache when valid,
// otherwise from every resource of the owner whose mapping declares schema.
// Failures of single resources become warnings. Only an ambiguous account
// id mapping is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, owner *entity.Entity, schema string) (*Resolution, error) {
	return r.resolve(ctx, owner, schema, map[string]fetched{})
}

// Retrieve resolves every virtual attribute of owner and stores the values
// in owner.Virtual. Connector objects are fetched at most once per resource.
func (r *Resolver) Retrieve(ctx context.Context, owner *entity.Entity) ([]Warning, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanVirAttrRetrieve)
	defer span.End()
	span.SetAttributes(telemetry.AnyType(owner.Type), telemetry.OwnerKey(owner.Key))

	owner.EnsureMaps()
	objects := map[string]fetched{}
	var warnings []Warning
	for _, schema := range slices.Sorted(maps.Keys(owner.Virtual)) {
		res, err := r.resolve(ctx, owner, schema, objects)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return warnings, err
		}
		owner.Virtual[schema].Values = res.Values
		warnings = append(warnings, res.Warnings...)
	}
	span.SetAttributes(telemetry.Warnings(len(warnings)))
	return warnings, nil
}

func (r *Resolver) resolve(ctx context.Context, owner *entity.Entity, schema string, objects map[string]fetched) (*Resolution, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanVirAttrResolve)
	defer span.End()
	span.SetAttributes(telemetry.AnyType(owner.Type), telemetry.OwnerKey(owner.Key), telemetry.Schema(schema))

	key := KeyFor(owner, schema)
	v, err, _ := r.flights.Do(key.String(), func() (any, error) {
		return r.load(ctx, owner, key, objects)
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	res := v.(*Resolution)
	span.SetAttributes(telemetry.CacheHit(res.Hit), telemetry.Warnings(len(res.Warnings)))

	out := *res
	out.Values = slices.Clone(res.Values)
	out.Warnings = slices.Clone(res.Warnings)
	return &out, nil
}

// load runs at most once concurrently per key.
func (r *Resolver) load(ctx context.Context, owner *entity.Entity, key Key, objects map[string]fetched) (*Resolution, error) {
	if cached, hit, err := r.cache.Get(ctx, key); err != nil {
		logger.WarnCtx(ctx, "virtual cache unavailable, fetching", logger.Schema(key.Schema), logger.Err(err))
	} else if hit {
		logger.DebugCtx(ctx, "virtual attribute cache hit",
			logger.Owner(key.OwnerKey), logger.Schema(key.Schema))
		return &Resolution{Schema: key.Schema, Values: cached.All(), Hit: true}, nil
	}

	start := time.Now()
	fl := r.cache.track(key)
	defer r.cache.release(key, fl)

	previous, err := r.cache.Lookup(ctx, key)
	if err != nil {
		logger.WarnCtx(ctx, "stale virtual values unavailable", logger.Schema(key.Schema), logger.Err(err))
	}

	subject := entity.ResolveRealOwner(owner)
	targets := r.catalog.TargetsDeclaring(subject.Resources, subject.Type, key.Schema, mapping.KindVirtualSchema, mapping.PurposeBoth)

	entry := NewEntry(key)
	res := &Resolution{Schema: key.Schema, Values: []string{}}
	for _, t := range targets {
		items := ownedItems(t.Items, owner.Kind)
		if len(items) == 0 {
			continue
		}

		values, err := r.fetchValues(ctx, subject, t, items, objects)
		if errors.Is(err, mapping.ErrInvalidMapping) {
			return nil, err
		}
		if err != nil {
			logger.WarnCtx(ctx, "virtual attribute fetch failed",
				logger.Resource(t.Resource.Key), logger.Schema(key.Schema), logger.Err(err))
			res.Warnings = append(res.Warnings, Warning{Resource: t.Resource.Key, Schema: key.Schema, Err: err})
			entry.ForceExpired = true
			if stale, ok := previous.valuesFor(t.Resource.Key); ok {
				values = stale
			}
		}
		if values == nil {
			continue
		}
		entry.Values[t.Resource.Key] = values
		for _, v := range values {
			if !slices.Contains(res.Values, v) {
				res.Values = append(res.Values, v)
			}
		}
	}

	if err := r.cache.commit(ctx, entry, fl); err != nil {
		logger.WarnCtx(ctx, "virtual cache commit failed", logger.Schema(key.Schema), logger.Err(err))
	}
	if r.cache.metrics != nil {
		r.cache.metrics.ObserveResolve(time.Since(start), len(res.Warnings))
	}
	logger.DebugCtx(ctx, "virtual attribute resolved",
		logger.Owner(key.OwnerKey), logger.Schema(key.Schema),
		logger.KeyCount, len(res.Values), logger.CacheState(entry.State(r.cache.now())))
	return res, nil
}

// fetchValues reads the values of items from t's connector object. A nil
// slice means the resource holds no object for the owner.
func (r *Resolver) fetchValues(ctx context.Context, owner *entity.Entity, t mapping.Target, items []mapping.Item, objects map[string]fetched) ([]string, error) {
	f, ok := objects[t.Resource.Key]
	if !ok {
		accountID, err := r.accounts.AccountID(ctx, owner, t.Resource, t.Provision)
		if err != nil {
			return nil, err
		}
		if accountID == "" {
			logger.DebugCtx(ctx, "no account id, resource skipped",
				logger.Resource(t.Resource.Key), logger.Owner(owner.Key))
			return nil, nil
		}
		obj, err := r.gateway.Fetch(ctx, t.Resource.Key, t.Provision.ObjectClassFor(), accountID)
		f = fetched{obj: obj, err: err}
		objects[t.Resource.Key] = f
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.obj == nil {
		return nil, nil
	}

	values := []string{}
	for _, item := range items {
		attr := f.obj.Attribute(item.ExtAttrName)
		if attr == nil {
			continue
		}
		for _, v := range attr.Strings() {
			if !slices.Contains(values, v) {
				values = append(values, v)
			}
		}
	}
	return values, nil
}

func (e *Entry) valuesFor(resource string) ([]string, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.Values[resource]
	return slices.Clone(v), ok
}

func ownedItems(items []mapping.Item, k entity.Kind) []mapping.Item {
	var out []mapping.Item
	for _, it := range items {
		if it.OwnedBy(k) {
			out = append(out, it)
		}
	}
	return out
}
