// Package memory provides an in-process connector gateway, used for tests,
// dry runs and the CLI's file-backed resources.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/marmos91/attrsync/pkg/connector"
)

type objectKey struct {
	resource    string
	objectClass string
	accountID   string
}

// Gateway stores connector objects in memory. Failures can be injected per
// resource, and every call is counted.
type Gateway struct {
	mu       sync.Mutex
	objects  map[objectKey]*connector.Object
	failures map[string]error
	fetches  map[string]int
	pushes   map[string]int
}

// New creates an empty gateway.
func New() *Gateway {
	return &Gateway{
		objects:  make(map[objectKey]*connector.Object),
		failures: make(map[string]error),
		fetches:  make(map[string]int),
		pushes:   make(map[string]int),
	}
}

// Put stores obj under the given resource, keyed by its UID.
func (g *Gateway) Put(resourceKey string, obj *connector.Object) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[objectKey{resourceKey, obj.ObjectClass, obj.UID}] = cloneObject(obj)
}

// Fail makes every call against resourceKey return err; a nil err clears it.
func (g *Gateway) Fail(resourceKey string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, resourceKey)
		return
	}
	g.failures[resourceKey] = err
}

// Fetches returns the number of Fetch calls made against resourceKey.
func (g *Gateway) Fetches(resourceKey string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches[resourceKey]
}

// Pushes returns the number of Push calls made against resourceKey.
func (g *Gateway) Pushes(resourceKey string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pushes[resourceKey]
}

// Fetch implements connector.Gateway.
func (g *Gateway) Fetch(ctx context.Context, resourceKey, objectClass, accountID string) (*connector.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches[resourceKey]++
	if err := g.failures[resourceKey]; err != nil {
		return nil, err
	}
	obj, ok := g.objects[objectKey{resourceKey, objectClass, accountID}]
	if !ok {
		return nil, nil
	}
	return cloneObject(obj), nil
}

// Push implements connector.Gateway. Attributes are merged into any existing
// object; __NAME__ updates the object name.
func (g *Gateway) Push(ctx context.Context, resourceKey, objectClass, accountID string, attrs []connector.Attribute) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pushes[resourceKey]++
	if err := g.failures[resourceKey]; err != nil {
		return err
	}

	key := objectKey{resourceKey, objectClass, accountID}
	obj, ok := g.objects[key]
	if !ok {
		obj = &connector.Object{ObjectClass: objectClass, UID: accountID, Name: accountID}
		g.objects[key] = obj
	}
	for _, a := range attrs {
		if a.Name == connector.NameAttr {
			obj.Name = connector.DecodeSecret(a.First())
			continue
		}
		replaced := false
		for i := range obj.Attributes {
			if obj.Attributes[i].Name == a.Name {
				obj.Attributes[i].Values = slices.Clone(a.Values)
				replaced = true
				break
			}
		}
		if !replaced {
			obj.Attributes = append(obj.Attributes, connector.Attribute{Name: a.Name, Values: slices.Clone(a.Values)})
		}
	}
	return nil
}

func cloneObject(o *connector.Object) *connector.Object {
	c := *o
	c.Attributes = make([]connector.Attribute, len(o.Attributes))
	for i, a := range o.Attributes {
		c.Attributes[i] = connector.Attribute{Name: a.Name, Values: slices.Clone(a.Values)}
	}
	return &c
}
