// Package engine wires the mapping catalog, virtual attribute cache,
// connector gateways, translators and password policies from a Config.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/pkg/config"
	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/connector/ldap"
	"github.com/marmos91/attrsync/pkg/connector/memory"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/expression"
	"github.com/marmos91/attrsync/pkg/inbound"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/marmos91/attrsync/pkg/metrics"
	"github.com/marmos91/attrsync/pkg/outbound"
	"github.com/marmos91/attrsync/pkg/policy"
	"github.com/marmos91/attrsync/pkg/store"
	"github.com/marmos91/attrsync/pkg/template"
	"github.com/marmos91/attrsync/pkg/virattr"
	virattrbadger "github.com/marmos91/attrsync/pkg/virattr/badger"

	// Registers the Prometheus metrics constructors.
	_ "github.com/marmos91/attrsync/pkg/metrics/prometheus"
)

// Engine holds the wired components. Fields are safe for concurrent use.
type Engine struct {
	Catalog    *mapping.Catalog
	Schemas    *entity.Schemas
	Evaluator  expression.Evaluator
	Gateway    connector.Gateway
	Cache      *virattr.Cache
	Resolver   *virattr.Resolver
	Policies   *policy.Engine
	Translator *inbound.Translator
	Preparer   *outbound.Preparer

	// Store is nil when the catalog is read from a file.
	Store *store.GORMStore

	router       *connector.Router
	filePolicies *policy.MemoryStore
	reloadMu     sync.Mutex
	cfg          *config.Config
	closers      []func() error
}

// Option customizes engine construction.
type Option func(*options)

type options struct {
	gateways map[string]connector.Gateway
	lookup   entity.Lookup
}

// WithGateway registers g for resourceKey, taking precedence over the
// connectors section of the configuration.
func WithGateway(resourceKey string, g connector.Gateway) Option {
	return func(o *options) { o.gateways[resourceKey] = g }
}

// WithLookup sets the lookup used to reach groups and group owners during
// outbound preparation.
func WithLookup(l entity.Lookup) Option {
	return func(o *options) { o.lookup = l }
}

// New builds an engine from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	o := &options{gateways: make(map[string]connector.Gateway)}
	for _, opt := range opts {
		opt(o)
	}
	if o.lookup == nil {
		o.lookup = entity.NewMemoryLookup()
	}

	e := &Engine{cfg: cfg, Schemas: entity.NewSchemas()}
	ok := false
	defer func() {
		if !ok {
			_ = e.Close()
		}
	}()

	policyStore, err := e.openCatalog(ctx)
	if err != nil {
		return nil, err
	}

	evaluator, err := expression.NewTemplateEvaluator(cfg.Expression.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression evaluator: %w", err)
	}
	e.Evaluator = evaluator

	cache, err := e.openCache()
	if err != nil {
		return nil, err
	}
	e.Cache = cache

	e.router = connector.NewRouter()
	if err := e.registerGateways(o.gateways); err != nil {
		return nil, err
	}
	e.Gateway = connector.Instrument(e.router, metrics.NewConnectorMetrics())

	e.Policies = policy.NewEngine(policyStore, nil)
	e.Translator = inbound.NewTranslator(e.Schemas, template.NewApplier(evaluator),
		inbound.WithPasswordGenerator(e.Policies),
		inbound.WithFallbackLength(cfg.Password.FallbackLength),
	)
	e.Preparer = outbound.NewPreparer(e.Schemas, evaluator,
		outbound.WithCache(cache),
		outbound.WithLookup(o.lookup),
		outbound.WithPasswordGenerator(e.Policies),
		outbound.WithFallbackLength(cfg.Password.FallbackLength),
	)
	e.Resolver = virattr.NewResolver(cache, e.Catalog, e.Gateway, e.Preparer)

	ok = true
	logger.InfoCtx(ctx, "engine ready",
		"catalog_source", cfg.Catalog.Source,
		"resources", len(e.Catalog.Resources()),
		"cache_backend", cfg.Cache.Backend,
		"cache_ttl", cfg.Cache.TTL.String())
	return e, nil
}

// openCatalog loads resources and schemas and returns the policy store
// matching the configured catalog source.
func (e *Engine) openCatalog(ctx context.Context) (policy.Store, error) {
	catalog, err := mapping.NewCatalog()
	if err != nil {
		return nil, err
	}
	e.Catalog = catalog

	switch e.cfg.Catalog.Source {
	case config.CatalogSourceFile:
		e.filePolicies = policy.NewMemoryStore()
		if err := e.loadDocument(ctx); err != nil {
			return nil, err
		}
		return e.filePolicies, nil

	default:
		db, err := store.New(&e.cfg.Database)
		if err != nil {
			return nil, err
		}
		e.Store = db
		e.closers = append(e.closers, db.Close)

		if err := db.LoadSchemas(ctx, e.Schemas); err != nil {
			return nil, fmt.Errorf("failed to load schemas: %w", err)
		}
		if err := catalog.Load(ctx, db); err != nil {
			return nil, err
		}
		return db, nil
	}
}

func (e *Engine) openCache() (*virattr.Cache, error) {
	var backend virattr.Store
	switch e.cfg.Cache.Backend {
	case config.CacheBackendBadger:
		s, err := virattrbadger.Open(e.cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open virtual attribute cache: %w", err)
		}
		e.closers = append(e.closers, s.Close)
		backend = s
	default:
		s, err := virattr.NewMemoryStore(e.cfg.Cache.Size)
		if err != nil {
			return nil, err
		}
		backend = s
	}
	return virattr.NewCache(backend, e.cfg.Cache.TTL, virattr.WithMetrics(metrics.NewVirAttrMetrics())), nil
}

func (e *Engine) registerGateways(overrides map[string]connector.Gateway) error {
	for key, c := range e.cfg.Connectors {
		if _, ok := overrides[key]; ok {
			continue
		}
		switch c.Type {
		case config.ConnectorTypeLDAP:
			if c.LDAP == nil {
				return fmt.Errorf("connector %s: missing ldap section", key)
			}
			e.router.Register(key, ldap.New(*c.LDAP))
		case config.ConnectorTypeMemory:
			e.router.Register(key, memory.New())
		default:
			return fmt.Errorf("connector %s: unsupported type %q", key, c.Type)
		}
		logger.Debug("connector registered", logger.Resource(key), "type", c.Type)
	}
	for key, g := range overrides {
		e.router.Register(key, g)
	}
	return nil
}

// loadDocument parses the catalog file and refreshes schemas, password
// policies and resources from it.
func (e *Engine) loadDocument(ctx context.Context) error {
	doc, err := store.ReadDocument(e.cfg.Catalog.Path)
	if err != nil {
		return err
	}
	doc.Schemas.Register(e.Schemas)

	realms := make(map[string]*policy.Rules, len(doc.Realms))
	for realm, name := range doc.Realms {
		if rules, ok := doc.Policies[name]; ok {
			realms[realm] = &rules
		}
	}
	resources := make(map[string]*policy.Rules, len(doc.Resources))
	for _, r := range doc.Resources {
		if rules, ok := doc.Policies[r.PasswordPolicy]; ok {
			resources[r.Key] = &rules
		}
	}

	if err := e.Catalog.Load(ctx, documentSource{doc}); err != nil {
		return err
	}
	e.filePolicies.Replace(realms, resources)
	return nil
}

// Reload re-reads resources, schemas and, for a file catalog, password
// policies from the catalog source.
func (e *Engine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	if e.Store == nil {
		return e.loadDocument(ctx)
	}
	if err := e.Store.LoadSchemas(ctx, e.Schemas); err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}
	return e.Catalog.Load(ctx, e.Store)
}

// Close releases the database and cache backends.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// documentSource serves the resources of an already parsed catalog document.
type documentSource struct {
	doc *store.Document
}

func (s documentSource) ListResources(context.Context) ([]*mapping.Resource, error) {
	return s.doc.Resources, nil
}
