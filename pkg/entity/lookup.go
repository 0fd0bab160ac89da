package entity

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLookup is a Lookup over an in-process set of entities.
type MemoryLookup struct {
	mu       sync.RWMutex
	entities map[Kind]map[string]*Entity
}

// NewMemoryLookup creates a lookup pre-populated with entities.
func NewMemoryLookup(entities ...*Entity) *MemoryLookup {
	l := &MemoryLookup{entities: make(map[Kind]map[string]*Entity)}
	for _, e := range entities {
		l.Put(e)
	}
	return l
}

// Put adds or replaces an entity.
func (l *MemoryLookup) Put(e *Entity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byKey, ok := l.entities[e.Kind]
	if !ok {
		byKey = make(map[string]*Entity)
		l.entities[e.Kind] = byKey
	}
	byKey[e.Key] = e
}

// Get implements Lookup.
func (l *MemoryLookup) Get(_ context.Context, kind Kind, key string) (*Entity, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.entities[kind][key]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("%s %q: %w", kind, key, ErrNotFound)
}
