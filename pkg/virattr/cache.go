package virattr

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/attrsync/internal/logger"
)

// DefaultTTL is how long fetched values are served without a new fetch.
const DefaultTTL = 5 * time.Minute

// Metrics observes cache activity. A nil Metrics disables collection.
type Metrics interface {
	ObserveLookup(hit bool)
	RecordForceExpire()
	ObserveResolve(duration time.Duration, failures int)
}

// CacheStats contains cache statistics.
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// Cache applies expiry rules on top of a Store.
//
// Entries become hits only while they are not force-expired and their TTL
// has not elapsed. Expired and force-expired entries are retained so callers
// can fall back to them when a refresh fails.
type Cache struct {
	store   Store
	ttl     time.Duration
	now     func() time.Time
	metrics Metrics

	hits   atomic.Int64
	misses atomic.Int64

	// mu orders commits against force expiries of in-flight keys.
	mu       sync.Mutex
	inflight map[string][]*flight
}

// flight records whether its key was force expired while a resolution was
// fetching.
type flight struct {
	expired bool
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithMetrics attaches metrics.
func WithMetrics(m Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache creates a cache over store. A non-positive ttl uses DefaultTTL.
func NewCache(store Store, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{store: store, ttl: ttl, now: time.Now, inflight: make(map[string][]*flight)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the entry for key when it is a valid hit.
func (c *Cache) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	e, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("virtual cache get %s: %w", key, err)
	}
	hit := e.Valid(c.now())
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.metrics != nil {
		c.metrics.ObserveLookup(hit)
	}
	if !hit {
		return nil, false, nil
	}
	return e, true, nil
}

// Lookup returns the stored entry for key regardless of its validity.
func (c *Cache) Lookup(ctx context.Context, key Key) (*Entry, error) {
	e, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("virtual cache lookup %s: %w", key, err)
	}
	return e, nil
}

// Put stores entry with a fresh expiry. The ForceExpired flag is kept as
// given.
func (c *Cache) Put(ctx context.Context, entry *Entry) error {
	entry.ExpiresAt = c.now().Add(c.ttl)
	if err := c.store.Put(ctx, entry); err != nil {
		return fmt.Errorf("virtual cache put %s: %w", entry.Key, err)
	}
	return nil
}

// track registers a resolution of key that is about to fetch.
func (c *Cache) track(key Key) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f := &flight{}
	k := key.String()
	c.inflight[k] = append(c.inflight[k], f)
	return f
}

// release unregisters f. It is safe to call more than once.
func (c *Cache) release(key Key, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key.String()
	rest := slices.DeleteFunc(c.inflight[k], func(o *flight) bool { return o == f })
	if len(rest) == 0 {
		delete(c.inflight, k)
		return
	}
	c.inflight[k] = rest
}

// commit stores the outcome of flight f. An entry whose key was force
// expired after f began is stored force-expired.
func (c *Cache) commit(ctx context.Context, entry *Entry, f *flight) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.expired {
		entry.ForceExpired = true
	}
	return c.Put(ctx, entry)
}

// ForceExpire marks the entry for key so the next resolution fetches again.
// The entry and its values are retained. Absent keys are ignored, but a
// resolution of key in flight still commits force-expired.
func (c *Cache) ForceExpire(ctx context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.inflight[key.String()] {
		f.expired = true
	}

	e, err := c.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("virtual cache force expire %s: %w", key, err)
	}
	if e == nil || e.ForceExpired {
		return nil
	}
	e.ForceExpired = true
	if err := c.store.Put(ctx, e); err != nil {
		return fmt.Errorf("virtual cache force expire %s: %w", key, err)
	}
	if c.metrics != nil {
		c.metrics.RecordForceExpire()
	}
	logger.Debug("virtual attribute force expired",
		logger.KeyOwner, key.OwnerKey, logger.KeySchema, key.Schema)
	return nil
}

// Expire removes the entry for key.
func (c *Cache) Expire(ctx context.Context, key Key) error {
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("virtual cache expire %s: %w", key, err)
	}
	return nil
}

// Stats returns current cache statistics.
func (c *Cache) Stats(ctx context.Context) CacheStats {
	size, err := c.store.Len(ctx)
	if err != nil {
		logger.Warn("virtual cache size unavailable", logger.Err(err))
	}
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   int64(size),
	}
}
