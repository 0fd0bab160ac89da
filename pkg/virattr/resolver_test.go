package virattr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/connector/memory"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usernameAccounts = AccountResolverFunc(func(_ context.Context, owner *entity.Entity, _ *mapping.Resource, _ *mapping.Provision) (string, error) {
	return owner.Username, nil
})

func phoneResource(key string) *mapping.Resource {
	return &mapping.Resource{
		Key: key,
		Provisions: []mapping.Provision{{
			AnyType: entity.AnyTypeUser,
			Items: []mapping.Item{
				{IntAttrName: "username", ExtAttrName: connector.UIDAttr, Kind: mapping.KindUsername, AccountID: true},
				{IntAttrName: "phone", ExtAttrName: "telephoneNumber", Kind: mapping.KindVirtualSchema},
				{IntAttrName: "mail", ExtAttrName: "mail", Kind: mapping.KindVirtualSchema},
				{IntAttrName: "phone", ExtAttrName: "mobile", Kind: mapping.KindVirtualSchema, Entity: entity.KindMembership},
			},
		}},
	}
}

type resolverFixture struct {
	clock    *fakeClock
	gateway  *memory.Gateway
	resolver *Resolver
	user     *entity.Entity
}

func newResolverFixture(t *testing.T, resources ...string) *resolverFixture {
	t.Helper()
	var rs []*mapping.Resource
	for _, r := range resources {
		rs = append(rs, phoneResource(r))
	}
	catalog, err := mapping.NewCatalog(rs...)
	require.NoError(t, err)

	clock := newClock()
	gw := memory.New()
	user := entity.NewUser("u1", "rossini")
	for _, r := range resources {
		user.AddResource(r)
		gw.Put(r, &connector.Object{
			ObjectClass: mapping.ObjectClassAccount,
			UID:         "rossini",
			Attributes: []connector.Attribute{
				connector.NewAttribute("telephoneNumber", "555-"+r),
				connector.NewAttribute("mail", "rossini@"+r),
				connector.NewAttribute("mobile", "333-"+r),
			},
		})
	}
	return &resolverFixture{
		clock:    clock,
		gateway:  gw,
		resolver: NewResolver(newTestCache(t, clock, 300*time.Second), catalog, gw, usernameAccounts),
		user:     user,
	}
}

func TestResolveCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1")

	res, err := f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, []string{"555-R1"}, res.Values)
	assert.Equal(t, 1, f.gateway.Fetches("R1"))

	f.clock.Advance(100 * time.Second)
	res, err = f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, []string{"555-R1"}, res.Values)
	assert.Equal(t, 1, f.gateway.Fetches("R1"))

	require.NoError(t, f.resolver.Cache().ForceExpire(ctx, KeyFor(f.user, "phone")))
	res, err = f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, 2, f.gateway.Fetches("R1"))

	f.clock.Advance(301 * time.Second)
	_, err = f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.Equal(t, 3, f.gateway.Fetches("R1"))
}

func TestResolveFansOutOncePerResource(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1", "R2")

	res, err := f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"555-R1", "555-R2"}, res.Values)
	assert.Equal(t, 1, f.gateway.Fetches("R1"))
	assert.Equal(t, 1, f.gateway.Fetches("R2"))

	entry, err := f.resolver.Cache().Lookup(ctx, KeyFor(f.user, "phone"))
	require.NoError(t, err)
	assert.Equal(t, []string{"555-R1"}, entry.Values["R1"])
	assert.Equal(t, []string{"555-R2"}, entry.Values["R2"])
	assert.False(t, entry.ForceExpired)
}

func TestResolvePartialFailureFallsBackToStale(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1", "R2")

	_, err := f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	require.NoError(t, f.resolver.Cache().ForceExpire(ctx, KeyFor(f.user, "phone")))

	f.gateway.Fail("R2", errors.New("connection refused"))
	res, err := f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"555-R1", "555-R2"}, res.Values)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "R2", res.Warnings[0].Resource)

	entry, err := f.resolver.Cache().Lookup(ctx, KeyFor(f.user, "phone"))
	require.NoError(t, err)
	assert.True(t, entry.ForceExpired)
	assert.Equal(t, []string{"555-R2"}, entry.Values["R2"])

	f.gateway.Fail("R2", nil)
	res, err = f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.False(t, res.Hit, "a degraded entry is never served as a hit")
	assert.Empty(t, res.Warnings)
}

func TestResolveTotalFailureRetriesNextTime(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1")
	f.gateway.Fail("R1", errors.New("down"))

	res, err := f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.Empty(t, res.Values)
	assert.Len(t, res.Warnings, 1)

	entry, err := f.resolver.Cache().Lookup(ctx, KeyFor(f.user, "phone"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.ForceExpired)

	f.gateway.Fail("R1", nil)
	res, err = f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.Equal(t, []string{"555-R1"}, res.Values)
	assert.Equal(t, 2, f.gateway.Fetches("R1"))
}

func TestResolveNoTargets(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1")

	res, err := f.resolver.Resolve(ctx, f.user, "unmapped")
	require.NoError(t, err)
	assert.Empty(t, res.Values)
	assert.Equal(t, 0, f.gateway.Fetches("R1"))

	res, err = f.resolver.Resolve(ctx, f.user, "unmapped")
	require.NoError(t, err)
	assert.True(t, res.Hit, "empty results are cached")
}

func TestResolveMembershipUsesSubject(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1")
	membership := entity.NewMembership("m1", f.user, "staff")

	res, err := f.resolver.Resolve(ctx, membership, "phone")
	require.NoError(t, err)
	assert.Equal(t, []string{"333-R1"}, res.Values)

	_, hit, err := f.resolver.Cache().Get(ctx, KeyFor(membership, "phone"))
	require.NoError(t, err)
	assert.True(t, hit)
	_, hit, err = f.resolver.Cache().Get(ctx, KeyFor(f.user, "phone"))
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestResolveAmbiguousAccountID(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1")
	f.resolver.accounts = AccountResolverFunc(func(context.Context, *entity.Entity, *mapping.Resource, *mapping.Provision) (string, error) {
		return "", mapping.ErrInvalidMapping
	})

	_, err := f.resolver.Resolve(ctx, f.user, "phone")
	assert.ErrorIs(t, err, mapping.ErrInvalidMapping)
}

func TestRetrieveSharesObjects(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1")
	f.user.SetVirtual(&entity.Attr{Schema: "phone"})
	f.user.SetVirtual(&entity.Attr{Schema: "mail"})

	warnings, err := f.resolver.Retrieve(ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"555-R1"}, f.user.VirtualAttr("phone").Values)
	assert.Equal(t, []string{"rossini@R1"}, f.user.VirtualAttr("mail").Values)
	assert.Equal(t, 1, f.gateway.Fetches("R1"))
}

// blockingGateway holds every fetch until released. Entered, when set,
// is signalled as each fetch starts.
type blockingGateway struct {
	connector.Gateway
	release chan struct{}
	entered chan struct{}
	mu      sync.Mutex
	calls   int
}

func (g *blockingGateway) Fetch(ctx context.Context, resourceKey, objectClass, accountID string) (*connector.Object, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.Gateway.Fetch(ctx, resourceKey, objectClass, accountID)
}

func TestResolveSingleFetchInFlight(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1")
	gw := &blockingGateway{Gateway: f.gateway, release: make(chan struct{})}
	f.resolver.gateway = gw

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.resolver.Resolve(ctx, f.user, "phone")
			if err == nil {
				results[i] = res.Values
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gw.release)
	wg.Wait()

	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Equal(t, 1, gw.calls)
	for _, r := range results {
		assert.Equal(t, []string{"555-R1"}, r)
	}
}

func TestResolveForceExpireDuringFetch(t *testing.T) {
	ctx := context.Background()
	f := newResolverFixture(t, "R1")
	gw := &blockingGateway{Gateway: f.gateway, release: make(chan struct{}), entered: make(chan struct{}, 1)}
	f.resolver.gateway = gw

	done := make(chan error, 1)
	go func() {
		_, err := f.resolver.Resolve(ctx, f.user, "phone")
		done <- err
	}()

	select {
	case <-gw.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not start")
	}
	require.NoError(t, f.resolver.Cache().ForceExpire(ctx, KeyFor(f.user, "phone")))
	close(gw.release)
	require.NoError(t, <-done)

	res, err := f.resolver.Resolve(ctx, f.user, "phone")
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, []string{"555-R1"}, res.Values)
	assert.Equal(t, 2, f.gateway.Fetches("R1"))
}
