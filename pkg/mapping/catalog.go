package mapping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrResourceNotFound is returned when a resource key is not in the catalog.
var ErrResourceNotFound = errors.New("resource not found")

// Source supplies resource definitions to a Catalog.
type Source interface {
	ListResources(ctx context.Context) ([]*Resource, error)
}

// Catalog is a concurrent registry of resources and their provisions.
// Lookups never perform I/O; Load refreshes the registry from a Source.
type Catalog struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewCatalog creates a catalog holding the given resources.
func NewCatalog(resources ...*Resource) (*Catalog, error) {
	c := &Catalog{resources: make(map[string]*Resource)}
	for _, r := range resources {
		if err := c.Put(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Put validates and stores a resource, replacing any previous definition.
func (c *Catalog) Put(r *Resource) error {
	if r.Key == "" {
		return fmt.Errorf("%w: resource without key", ErrInvalidMapping)
	}
	for i := range r.Provisions {
		if err := Validate(&r.Provisions[i]); err != nil {
			return fmt.Errorf("resource %s: %w", r.Key, err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[r.Key] = r
	return nil
}

// Load replaces the catalog contents with the resources from src.
func (c *Catalog) Load(ctx context.Context, src Source) error {
	resources, err := src.ListResources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list resources: %w", err)
	}
	fresh := make(map[string]*Resource, len(resources))
	for _, r := range resources {
		for i := range r.Provisions {
			if err := Validate(&r.Provisions[i]); err != nil {
				return fmt.Errorf("resource %s: %w", r.Key, err)
			}
		}
		fresh[r.Key] = r
	}
	c.mu.Lock()
	c.resources = fresh
	c.mu.Unlock()
	return nil
}

// Resource returns the resource with the given key.
func (c *Catalog) Resource(key string) (*Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.resources[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrResourceNotFound)
	}
	return r, nil
}

// Resources returns all resources ordered by key.
func (c *Catalog) Resources() []*Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Resource, 0, len(c.resources))
	for _, r := range c.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ItemsFor returns the mapping items of resourceKey's provision for anyType
// usable for purpose. A resource without such a provision yields no items.
func (c *Catalog) ItemsFor(resourceKey, anyType string, purpose Purpose) ([]Item, error) {
	r, err := c.Resource(resourceKey)
	if err != nil {
		return nil, err
	}
	return ItemsFor(r.Provision(anyType), purpose), nil
}

// Target is a resource provision that declares a given schema.
type Target struct {
	Resource  *Resource
	Provision *Provision
	Items     []Item
}

// TargetsDeclaring returns, in the order of resourceKeys, each resource whose
// provision for anyType maps intAttrName with kind for purpose. Unknown
// resource keys are skipped.
func (c *Catalog) TargetsDeclaring(resourceKeys []string, anyType, intAttrName string, kind Kind, purpose Purpose) []Target {
	var targets []Target
	for _, key := range resourceKeys {
		r, err := c.Resource(key)
		if err != nil {
			continue
		}
		p := r.Provision(anyType)
		if p == nil {
			continue
		}
		items := Find(ItemsFor(p, purpose), intAttrName, kind)
		if len(items) == 0 {
			continue
		}
		targets = append(targets, Target{Resource: r, Provision: p, Items: items})
	}
	return targets
}

// FileSource reads resources from the "resources" key of a YAML document.
type FileSource struct {
	Path string
}

type fileDocument struct {
	Resources []*Resource `yaml:"resources"`
}

// ListResources implements Source.
func (f FileSource) ListResources(_ context.Context) ([]*Resource, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", f.Path, err)
	}
	return doc.Resources, nil
}
