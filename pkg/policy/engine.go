package policy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/marmos91/attrsync/internal/logger"
	"github.com/marmos91/attrsync/internal/telemetry"
	"github.com/marmos91/attrsync/pkg/entity"
	"go.opentelemetry.io/otel/attribute"
)

// Store resolves the policies attached to realms and resources. A missing
// policy is reported as (nil, nil).
type Store interface {
	RealmRules(ctx context.Context, realm string) (*Rules, error)
	ResourceRules(ctx context.Context, resourceKey string) (*Rules, error)
}

// Engine generates passwords honoring every policy that applies to an entity.
type Engine struct {
	store Store
	gen   *Generator
}

// NewEngine creates an engine. A nil generator uses crypto/rand.
func NewEngine(store Store, gen *Generator) *Engine {
	if gen == nil {
		gen = NewGenerator()
	}
	return &Engine{store: store, gen: gen}
}

// Collect returns the rules of every realm from the root down to realm,
// followed by the rules of each resource. Realms and resources without a
// policy are skipped.
func (e *Engine) Collect(ctx context.Context, realm string, resources []string) ([]*Rules, error) {
	var out []*Rules
	if e.store == nil {
		return out, nil
	}
	for _, r := range Ancestors(realm) {
		rules, err := e.store.RealmRules(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("realm %s password policy: %w", r, err)
		}
		if rules != nil {
			out = append(out, rules)
		}
	}
	for _, key := range resources {
		rules, err := e.store.ResourceRules(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("resource %s password policy: %w", key, err)
		}
		if rules != nil {
			out = append(out, rules)
		}
	}
	return out, nil
}

// Generate produces a password for ent. Errors wrapping
// ErrUnsatisfiablePolicy mean the caller should use RandomPassword.
func (e *Engine) Generate(ctx context.Context, ent *entity.Entity) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPolicyGenerate)
	defer span.End()
	span.SetAttributes(telemetry.AnyType(ent.Type), telemetry.OwnerKey(ent.Key))

	rules, err := e.Collect(ctx, ent.Realm, ent.Resources)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return "", err
	}
	span.SetAttributes(attribute.Int("policy.count", len(rules)))

	merged := Merge(rules...)
	password, err := e.gen.Generate(merged)
	if err != nil {
		logger.DebugCtx(ctx, "password generation failed",
			logger.Owner(ent.Key), logger.KeyRealm, ent.Realm, logger.Err(err))
		return "", err
	}
	return password, nil
}

// Ancestors lists realm and its parents from the root down:
// "/a/b" yields "/", "/a", "/a/b". An empty realm yields nothing.
func Ancestors(realm string) []string {
	if realm == "" {
		return nil
	}
	out := []string{"/"}
	var path string
	for _, part := range strings.Split(strings.Trim(realm, "/"), "/") {
		if part == "" {
			continue
		}
		path += "/" + part
		out = append(out, path)
	}
	return out
}

// MemoryStore is a Store backed by maps.
type MemoryStore struct {
	mu        sync.RWMutex
	realms    map[string]*Rules
	resources map[string]*Rules
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{realms: map[string]*Rules{}, resources: map[string]*Rules{}}
}

// SetRealm attaches rules to realm.
func (s *MemoryStore) SetRealm(realm string, r *Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realms[realm] = r
}

// SetResource attaches rules to a resource.
func (s *MemoryStore) SetResource(key string, r *Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[key] = r
}

// Replace swaps every realm and resource assignment at once.
func (s *MemoryStore) Replace(realms, resources map[string]*Rules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realms = realms
	s.resources = resources
}

func (s *MemoryStore) RealmRules(_ context.Context, realm string) (*Rules, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.realms[realm], nil
}

func (s *MemoryStore) ResourceRules(_ context.Context, key string) (*Rules, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resources[key], nil
}
