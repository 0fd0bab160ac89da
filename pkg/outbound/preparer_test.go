package outbound

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/expression"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/marmos91/attrsync/pkg/virattr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrValues(t *testing.T, res *Result, name string) []string {
	t.Helper()
	for _, a := range res.Attributes {
		if a.Name == name {
			return a.Strings()
		}
	}
	return nil
}

func hasAttr(res *Result, name string) bool {
	for _, a := range res.Attributes {
		if a.Name == name {
			return true
		}
	}
	return false
}

func testSchemas() *entity.Schemas {
	s := entity.NewSchemas()
	s.AddPlain(entity.PlainSchema{Name: "photo", Type: entity.TypeBinary})
	s.AddDerived(entity.DerivedSchema{Name: "cn", Expression: "{{ .firstname }} {{ .surname }}"})
	s.AddDerived(entity.DerivedSchema{Name: "tag", Expression: "dept-{{ .dept }}"})
	s.AddVirtual(entity.VirtualSchema{Name: "badge", ReadOnly: true})
	return s
}

func userResource(link string, items ...mapping.Item) *mapping.Resource {
	base := []mapping.Item{
		{IntAttrName: "username", ExtAttrName: "uid", Kind: mapping.KindUsername, AccountID: true},
		{IntAttrName: "password", ExtAttrName: connector.PasswordAttr, Kind: mapping.KindPassword, Password: true},
	}
	return &mapping.Resource{
		Key: "ldap",
		Provisions: []mapping.Provision{{
			AnyType:        entity.AnyTypeUser,
			ConnObjectLink: link,
			Items:          append(base, items...),
		}},
	}
}

func testUser() *entity.Entity {
	u := entity.NewUser("u1", "U123")
	u.Password = "Secret123!"
	u.SetPlain(&entity.Attr{Schema: "firstname", Values: []string{"Gioacchino"}})
	u.SetPlain(&entity.Attr{Schema: "surname", Values: []string{"Rossini"}})
	u.SetPlain(&entity.Attr{Schema: "dept", Values: []string{"music"}})
	u.SetPlain(&entity.Attr{Schema: "groups", Values: []string{"staff", "admins"}})
	u.SetDerived(&entity.Attr{Schema: "cn"})
	u.SetDerived(&entity.Attr{Schema: "tag"})
	u.SetVirtual(&entity.Attr{Schema: "phone", Values: []string{"555-1"}})
	return u
}

func newPreparer(opts ...Option) *Preparer {
	return NewPreparer(testSchemas(), expression.MustTemplateEvaluator(), opts...)
}

func TestPrepareAccountIDAndName(t *testing.T) {
	res, err := newPreparer().Prepare(context.Background(), testUser(), userResource(""), Options{})
	require.NoError(t, err)

	assert.Equal(t, "U123", res.AccountID)
	assert.Equal(t, "U123", res.Name)
	assert.Equal(t, []string{"U123"}, attrValues(t, res, "uid"))
	assert.Equal(t, []string{"U123"}, attrValues(t, res, connector.NameAttr))
	assert.Empty(t, res.Warnings)
}

func TestPrepareBlankLinkFallsBackToAccountID(t *testing.T) {
	res, err := newPreparer().Prepare(context.Background(), testUser(), userResource("{{ .missing }}"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "U123", res.Name)
}

func TestPrepareLinkOverridesName(t *testing.T) {
	res, err := newPreparer().Prepare(context.Background(), testUser(), userResource("uid={{ .username }},ou={{ .tag }}"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "U123", res.AccountID)
	assert.Equal(t, "uid=U123,ou=dept-music", res.Name)
	assert.Equal(t, []string{"U123"}, attrValues(t, res, "uid"))
}

func TestPrepareMergesSameExternalName(t *testing.T) {
	r := userResource("",
		mapping.Item{IntAttrName: "groups", ExtAttrName: "groups", Kind: mapping.KindPlainSchema},
		mapping.Item{IntAttrName: "tag", ExtAttrName: "groups", Kind: mapping.KindDerivedSchema},
		mapping.Item{IntAttrName: "cn", ExtAttrName: "cn", Kind: mapping.KindDerivedSchema},
	)
	res, err := newPreparer().Prepare(context.Background(), testUser(), r, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"staff", "admins", "dept-music"}, attrValues(t, res, "groups"))
	assert.Equal(t, []string{"Gioacchino Rossini"}, attrValues(t, res, "cn"))
}

func TestPreparePassword(t *testing.T) {
	ctx := context.Background()

	res, err := newPreparer().Prepare(ctx, testUser(), userResource(""), Options{})
	require.NoError(t, err)
	assert.False(t, hasAttr(res, connector.PasswordAttr))

	res, err = newPreparer().Prepare(ctx, testUser(), userResource(""), Options{ChangePassword: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Secret123!"}, attrValues(t, res, connector.PasswordAttr))

	res, err = newPreparer().Prepare(ctx, testUser(), userResource(""), Options{ChangePassword: true, Password: "Explicit1!"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Explicit1!"}, attrValues(t, res, connector.PasswordAttr))

	u := testUser()
	u.Password = ""
	res, err = newPreparer().Prepare(ctx, u, userResource(""), Options{ChangePassword: true})
	require.NoError(t, err)
	assert.False(t, hasAttr(res, connector.PasswordAttr))

	r := userResource("")
	r.RandomPasswordIfNotProvided = true
	res, err = newPreparer(WithFallbackLength(20)).Prepare(ctx, u, r, Options{ChangePassword: true})
	require.NoError(t, err)
	pw := attrValues(t, res, connector.PasswordAttr)
	require.Len(t, pw, 1)
	assert.Len(t, pw[0], 20)
}

func TestPrepareEnable(t *testing.T) {
	enabled := false
	res, err := newPreparer().Prepare(context.Background(), testUser(), userResource(""), Options{Enable: &enabled})
	require.NoError(t, err)
	assert.Equal(t, []string{"false"}, attrValues(t, res, connector.EnableAttr))

	res, err = newPreparer().Prepare(context.Background(), testUser(), userResource(""), Options{})
	require.NoError(t, err)
	assert.False(t, hasAttr(res, connector.EnableAttr))
}

func TestPrepareVirtualOverride(t *testing.T) {
	ctx := context.Background()
	r := userResource("",
		mapping.Item{IntAttrName: "phone", ExtAttrName: "telephoneNumber", Kind: mapping.KindVirtualSchema},
		mapping.Item{IntAttrName: "mail", ExtAttrName: "mail", Kind: mapping.KindVirtualSchema},
		mapping.Item{IntAttrName: "badge", ExtAttrName: "badge", Kind: mapping.KindVirtualSchema},
	)

	res, err := newPreparer().Prepare(ctx, testUser(), r, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"555-1"}, attrValues(t, res, "telephoneNumber"))
	assert.False(t, hasAttr(res, "badge"), "read only virtual schemas are not propagated")

	override := &VirtualOverride{ToUpdate: map[string][]string{"phone": {"555-9"}}, ToRemove: []string{"mail"}}
	res, err = newPreparer().Prepare(ctx, testUser(), r, Options{Virtual: override})
	require.NoError(t, err)
	assert.Equal(t, []string{"555-9"}, attrValues(t, res, "telephoneNumber"))
	assert.True(t, hasAttr(res, "mail"))
	assert.Empty(t, attrValues(t, res, "mail"))

	override = &VirtualOverride{ToRemove: []string{"mail"}}
	res, err = newPreparer().Prepare(ctx, testUser(), r, Options{Virtual: override})
	require.NoError(t, err)
	assert.False(t, hasAttr(res, "telephoneNumber"), "no pending update skips the item")
}

func TestIntValuesNoPendingVirtualUpdate(t *testing.T) {
	r := userResource("")
	item := mapping.Item{IntAttrName: "phone", ExtAttrName: "telephoneNumber", Kind: mapping.KindVirtualSchema}
	_, err := newPreparer().IntValues(context.Background(), testUser(), r, r.Provision(entity.AnyTypeUser), item,
		Options{Virtual: &VirtualOverride{}})
	assert.ErrorIs(t, err, ErrNoPendingVirtualUpdate)
}

func TestPrepareForceExpiresVirtualCache(t *testing.T) {
	ctx := context.Background()
	store, err := virattr.NewMemoryStore(0)
	require.NoError(t, err)
	cache := virattr.NewCache(store, time.Hour)

	u := testUser()
	key := virattr.KeyFor(u, "phone")
	entry := virattr.NewEntry(key)
	entry.Values["ldap"] = []string{"555-old"}
	require.NoError(t, cache.Put(ctx, entry))

	r := userResource("", mapping.Item{IntAttrName: "phone", ExtAttrName: "telephoneNumber", Kind: mapping.KindVirtualSchema})
	_, err = newPreparer(WithCache(cache)).Prepare(ctx, u, r, Options{})
	require.NoError(t, err)

	_, hit, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)
	stale, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	assert.True(t, stale.ForceExpired)
}

func TestPrepareAmbiguousAccountID(t *testing.T) {
	r := userResource("", mapping.Item{IntAttrName: "email", ExtAttrName: "mail", Kind: mapping.KindPlainSchema, AccountID: true})
	_, err := newPreparer().Prepare(context.Background(), testUser(), r, Options{})
	assert.ErrorIs(t, err, mapping.ErrInvalidMapping)
}

func TestPrepareNoProvision(t *testing.T) {
	_, err := newPreparer().Prepare(context.Background(), entity.NewGroup("g1", "staff"), userResource(""), Options{})
	assert.ErrorIs(t, err, ErrNoProvision)
}

func TestPrepareMissingAccountID(t *testing.T) {
	u := testUser()
	u.Username = ""
	res, err := newPreparer().Prepare(context.Background(), u, userResource(""), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.AccountID)
	assert.False(t, hasAttr(res, connector.NameAttr))
	require.Len(t, res.Warnings, 1)
}

func TestPrepareAccountIDFromEachKind(t *testing.T) {
	tests := []struct {
		name string
		item mapping.Item
		want string
	}{
		{"id", mapping.Item{IntAttrName: "key", ExtAttrName: connector.UIDAttr, Kind: mapping.KindID, AccountID: true}, "u1"},
		{"plain", mapping.Item{IntAttrName: "surname", ExtAttrName: "sn", Kind: mapping.KindPlainSchema, AccountID: true}, "Rossini"},
		{"derived", mapping.Item{IntAttrName: "tag", ExtAttrName: "tag", Kind: mapping.KindDerivedSchema, AccountID: true}, "dept-music"},
		{"virtual", mapping.Item{IntAttrName: "phone", ExtAttrName: "tel", Kind: mapping.KindVirtualSchema, AccountID: true}, "555-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &mapping.Resource{Key: "r", Provisions: []mapping.Provision{{
				AnyType: entity.AnyTypeUser,
				Items:   []mapping.Item{tt.item},
			}}}
			res, err := newPreparer().Prepare(context.Background(), testUser(), r, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.AccountID)

			id, err := newPreparer().AccountID(context.Background(), testUser(), r, r.Provision(entity.AnyTypeUser))
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestPrepareBinaryValues(t *testing.T) {
	u := testUser()
	u.SetPlain(&entity.Attr{Schema: "photo", Type: entity.TypeBinary, Values: []string{"AQI="}})
	r := userResource("", mapping.Item{IntAttrName: "photo", ExtAttrName: "jpegPhoto", Kind: mapping.KindPlainSchema})

	res, err := newPreparer().Prepare(context.Background(), u, r, Options{})
	require.NoError(t, err)
	for _, a := range res.Attributes {
		if a.Name == "jpegPhoto" {
			assert.Equal(t, []any{[]byte{0x01, 0x02}}, a.Values)
			return
		}
	}
	t.Fatal("jpegPhoto not prepared")
}

func TestPrepareGroupItems(t *testing.T) {
	staff := entity.NewGroup("staff", "staff")
	staff.SetPlain(&entity.Attr{Schema: "gid", Values: []string{"100"}})
	admins := entity.NewGroup("admins", "admins")
	admins.SetPlain(&entity.Attr{Schema: "gid", Values: []string{"200"}})

	u := testUser()
	u.Memberships = []string{"staff", "admins", "gone"}
	r := userResource("", mapping.Item{IntAttrName: "gid", ExtAttrName: "memberOf", Kind: mapping.KindPlainSchema, Entity: entity.KindGroup})

	res, err := newPreparer(WithLookup(entity.NewMemoryLookup(staff, admins))).Prepare(context.Background(), u, r, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, attrValues(t, res, "memberOf"))
}

func TestPrepareGroupOwner(t *testing.T) {
	owner := entity.NewUser("u1", "rossini")
	group := entity.NewGroup("g1", "staff")
	group.UserOwner = "u1"

	r := &mapping.Resource{Key: "ldap", Provisions: []mapping.Provision{
		{
			AnyType:        entity.AnyTypeUser,
			ConnObjectLink: "uid={{ .username }},ou=people",
			Items: []mapping.Item{
				{IntAttrName: "username", ExtAttrName: "uid", Kind: mapping.KindUsername, AccountID: true},
			},
		},
		{
			AnyType: entity.AnyTypeGroup,
			Items: []mapping.Item{
				{IntAttrName: "name", ExtAttrName: "cn", Kind: mapping.KindGroupName, Entity: entity.KindGroup, AccountID: true},
				{IntAttrName: "owner", ExtAttrName: "owner", Kind: mapping.KindGroupOwnerSchema, Entity: entity.KindGroup},
			},
		},
	}}

	res, err := newPreparer(WithLookup(entity.NewMemoryLookup(owner))).Prepare(context.Background(), group, r, Options{})
	require.NoError(t, err)
	assert.Equal(t, "staff", res.AccountID)
	assert.Equal(t, []string{"uid=rossini,ou=people"}, attrValues(t, res, "owner"))
}

func TestPrepareMandatoryWarning(t *testing.T) {
	r := userResource("", mapping.Item{IntAttrName: "email", ExtAttrName: "mail", Kind: mapping.KindPlainSchema, MandatoryCondition: "true"})
	res, err := newPreparer().Prepare(context.Background(), testUser(), r, Options{})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "mandatory")
}
