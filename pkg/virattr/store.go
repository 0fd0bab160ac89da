package virattr

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds MemoryStore when no size is given.
const DefaultMemoryEntries = 10000

// Store persists cache entries. Entries are kept past their expiry so that
// stale values remain available as a fallback.
type Store interface {
	// Get returns the entry for key, or (nil, nil) when absent.
	Get(ctx context.Context, key Key) (*Entry, error)
	Put(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key Key) error
	Len(ctx context.Context) (int, error)
}

// MemoryStore is a bounded in-process Store evicting least recently used
// entries.
type MemoryStore struct {
	entries *lru.Cache[Key, *Entry]
}

// NewMemoryStore creates a store holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[Key, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{entries: entries}, nil
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Entry, error) {
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, entry *Entry) error {
	s.entries.Add(entry.Key, entry.Clone())
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.entries.Remove(key)
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	return s.entries.Len(), nil
}
