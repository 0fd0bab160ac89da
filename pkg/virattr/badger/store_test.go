package badger

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/attrsync/pkg/virattr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := virattr.Key{OwnerType: "USER", OwnerKey: "u1", Schema: "phone"}

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	entry := virattr.NewEntry(key)
	entry.Values["ldap"] = []string{"555-1"}
	entry.ExpiresAt = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	entry.ForceExpired = true
	require.NoError(t, s.Put(ctx, entry))

	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, key, got.Key)
	assert.Equal(t, []string{"555-1"}, got.Values["ldap"])
	assert.True(t, got.ForceExpired)
	assert.True(t, entry.ExpiresAt.Equal(got.ExpiresAt))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Delete(ctx, key))
	got, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreWithCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := virattr.NewCache(newTestStore(t), time.Minute, virattr.WithClock(func() time.Time { return now }))
	key := virattr.Key{OwnerType: "USER", OwnerKey: "u1", Schema: "phone"}

	entry := virattr.NewEntry(key)
	entry.Values["ldap"] = []string{"555-1"}
	require.NoError(t, cache.Put(ctx, entry))

	got, hit, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"555-1"}, got.All())

	require.NoError(t, cache.ForceExpire(ctx, key))
	_, hit, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)

	stale, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"555-1"}, stale.All())
}

func TestStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestStore(t).Get(ctx, virattr.Key{OwnerKey: "u1"})
	assert.ErrorIs(t, err, context.Canceled)
}
