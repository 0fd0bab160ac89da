// Package virattr resolves virtual attributes from external resources and
// caches the values fetched per resource.
package virattr

import (
	"maps"
	"slices"
	"time"
)

// Key identifies a cache entry.
type Key struct {
	OwnerType string `json:"owner_type"`
	OwnerKey  string `json:"owner_key"`
	Schema    string `json:"schema"`
}

func (k Key) String() string {
	return k.OwnerType + "/" + k.OwnerKey + "/" + k.Schema
}

// Entry holds the values of one virtual attribute, per resource.
type Entry struct {
	Key

	// Values maps a resource key to the values fetched from it.
	Values map[string][]string `json:"values"`

	ExpiresAt    time.Time `json:"expires_at"`
	ForceExpired bool      `json:"force_expired"`
}

// NewEntry creates an empty entry for key.
func NewEntry(key Key) *Entry {
	return &Entry{Key: key, Values: make(map[string][]string)}
}

// Valid reports whether the entry may be served as a cache hit at now.
func (e *Entry) Valid(now time.Time) bool {
	return e != nil && !e.ForceExpired && now.Before(e.ExpiresAt)
}

// State names the entry's lifecycle state at now.
func (e *Entry) State(now time.Time) string {
	switch {
	case e == nil:
		return "absent"
	case e.ForceExpired:
		return "force_expired"
	case !now.Before(e.ExpiresAt):
		return "expired"
	default:
		return "populated"
	}
}

// All returns the union of the values of every resource, ordered by
// resource key and then by first occurrence.
func (e *Entry) All() []string {
	if e == nil {
		return nil
	}
	out := []string{}
	for _, resource := range slices.Sorted(maps.Keys(e.Values)) {
		for _, v := range e.Values[resource] {
			if !slices.Contains(out, v) {
				out = append(out, v)
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Values = make(map[string][]string, len(e.Values))
	for k, v := range e.Values {
		c.Values[k] = slices.Clone(v)
	}
	return &c
}
