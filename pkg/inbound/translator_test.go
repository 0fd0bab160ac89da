package inbound

import (
	"context"
	"testing"

	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/expression"
	"github.com/marmos91/attrsync/pkg/mapping"
	"github.com/marmos91/attrsync/pkg/policy"
	"github.com/marmos91/attrsync/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userItems() []mapping.Item {
	return []mapping.Item{
		{IntAttrName: "key", ExtAttrName: connector.UIDAttr, Kind: mapping.KindID},
		{IntAttrName: "username", ExtAttrName: "uid", Kind: mapping.KindUsername, AccountID: true},
		{IntAttrName: "password", ExtAttrName: connector.PasswordAttr, Kind: mapping.KindPassword, Password: true},
		{IntAttrName: "email", ExtAttrName: "mail", Kind: mapping.KindPlainSchema},
		{IntAttrName: "loginCount", ExtAttrName: "logins", Kind: mapping.KindPlainSchema},
		{IntAttrName: "photo", ExtAttrName: "jpegPhoto", Kind: mapping.KindPlainSchema},
		{IntAttrName: "cn", ExtAttrName: "cn", Kind: mapping.KindDerivedSchema},
		{IntAttrName: "phone", ExtAttrName: "telephoneNumber", Kind: mapping.KindVirtualSchema},
		{IntAttrName: "role", ExtAttrName: "role", Kind: mapping.KindPlainSchema, Entity: entity.KindMembership},
	}
}

func testSchemas() *entity.Schemas {
	s := entity.NewSchemas()
	s.AddPlain(
		entity.PlainSchema{Name: "email", Type: entity.TypeString},
		entity.PlainSchema{Name: "loginCount", Type: entity.TypeLong},
		entity.PlainSchema{Name: "photo", Type: entity.TypeBinary},
	)
	return s
}

func userObject() *connector.Object {
	return &connector.Object{
		ObjectClass: mapping.ObjectClassAccount,
		UID:         "rossini",
		Attributes: []connector.Attribute{
			connector.NewAttribute("uid", "rossini"),
			connector.NewAttribute(connector.PasswordAttr, connector.NewGuardedString("Secret123!")),
			connector.NewAttribute("mail", "a@x.com"),
			connector.NewAttribute("logins", "42"),
			connector.NewAttribute("jpegPhoto", []byte{0x01, 0x02}),
			connector.NewAttribute("telephoneNumber", "555-1", "555-2"),
			connector.NewAttribute("role", "admin"),
		},
	}
}

func newTranslator(opts ...Option) *Translator {
	return NewTranslator(testSchemas(), template.NewApplier(expression.MustTemplateEvaluator()), opts...)
}

func TestTranslateUser(t *testing.T) {
	res, err := newTranslator().Translate(context.Background(), userObject(), userItems(), entity.AnyTypeUser, nil)
	require.NoError(t, err)
	e := res.Entity

	assert.Equal(t, entity.KindUser, e.Kind)
	assert.Empty(t, e.Key)
	assert.Equal(t, "rossini", e.Username)
	assert.Equal(t, "Secret123!", e.Password)
	assert.Equal(t, []string{"a@x.com"}, e.PlainAttr("email").Values)
	assert.Equal(t, []string{"42"}, e.PlainAttr("loginCount").Values)
	assert.Equal(t, []string{"AQI="}, e.PlainAttr("photo").Values)
	require.NotNil(t, e.DerivedAttr("cn"))
	assert.Empty(t, e.DerivedAttr("cn").Values)
	assert.Equal(t, []string{"555-1", "555-2"}, e.VirtualAttr("phone").Values)
	assert.Nil(t, e.PlainAttr("role"), "membership items are not translated onto the user")
	assert.Empty(t, res.Warnings)
}

func TestTranslatePlainMapping(t *testing.T) {
	items := []mapping.Item{
		{IntAttrName: "username", ExtAttrName: "uid", Kind: mapping.KindUsername, AccountID: true},
		{IntAttrName: "password", ExtAttrName: connector.PasswordAttr, Kind: mapping.KindPassword, Password: true},
		{IntAttrName: "email", ExtAttrName: "mail", Kind: mapping.KindPlainSchema},
	}
	obj := &connector.Object{Attributes: []connector.Attribute{
		connector.NewAttribute("uid", "u"),
		connector.NewAttribute(connector.PasswordAttr, "pw"),
		connector.NewAttribute("mail", "a@x.com"),
	}}

	res, err := NewTranslator(nil, nil).Translate(context.Background(), obj, items, entity.AnyTypeUser, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com"}, res.Entity.PlainAttr("email").Values)
}

func TestTranslateIsIdempotent(t *testing.T) {
	tr := newTranslator()
	first, err := tr.Translate(context.Background(), userObject(), userItems(), entity.AnyTypeUser, nil)
	require.NoError(t, err)
	second, err := tr.Translate(context.Background(), userObject(), userItems(), entity.AnyTypeUser, nil)
	require.NoError(t, err)
	assert.Equal(t, first.Entity, second.Entity)
}

func TestTranslateCoercionFailureDowngrades(t *testing.T) {
	obj := userObject()
	obj.Attributes[3] = connector.NewAttribute("logins", "many")

	res, err := newTranslator().Translate(context.Background(), obj, userItems(), entity.AnyTypeUser, nil)
	require.NoError(t, err)
	attr := res.Entity.PlainAttr("loginCount")
	assert.Equal(t, entity.TypeString, attr.Type)
	assert.Equal(t, []string{"many"}, attr.Values)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, "stored as string")
}

func TestTranslateMissingAttributes(t *testing.T) {
	obj := &connector.Object{ObjectClass: mapping.ObjectClassAccount, UID: "rossini"}
	res, err := newTranslator().Translate(context.Background(), obj, userItems(), entity.AnyTypeUser, nil)
	require.NoError(t, err)

	e := res.Entity
	assert.Empty(t, e.Username)
	assert.True(t, e.PlainAttr("email").IsEmpty())
	assert.Empty(t, e.VirtualAttr("phone").Values)
	assert.Len(t, e.Password, DefaultFallbackLength, "no policy engine yields a random fallback")
}

func TestTranslateAmbiguousAccountID(t *testing.T) {
	items := append(userItems(), mapping.Item{IntAttrName: "email", ExtAttrName: "uid2", Kind: mapping.KindPlainSchema, AccountID: true})
	_, err := newTranslator().Translate(context.Background(), userObject(), items, entity.AnyTypeUser, nil)
	assert.ErrorIs(t, err, mapping.ErrInvalidMapping)
}

func TestTranslateKeepsValuesVerbatim(t *testing.T) {
	decomposed := "Jose\u0301"
	obj := userObject()
	obj.Attributes[0] = connector.NewAttribute("uid", decomposed)
	obj.Attributes[5] = connector.NewAttribute("telephoneNumber", decomposed)

	res, err := newTranslator().Translate(context.Background(), obj, userItems(), entity.AnyTypeUser, nil)
	require.NoError(t, err)
	assert.Equal(t, decomposed, res.Entity.Username)
	assert.Len(t, res.Entity.Username, 6)
	assert.Equal(t, []string{decomposed}, res.Entity.VirtualAttr("phone").Values)
}

func TestTranslateRejectsUnsupportedKind(t *testing.T) {
	items := append(userItems(), mapping.Item{IntAttrName: "odd", ExtAttrName: "odd", Kind: mapping.Kind(99)})

	_, err := newTranslator().Translate(context.Background(), userObject(), items, entity.AnyTypeUser, nil)
	assert.ErrorIs(t, err, mapping.ErrInvalidMapping)
}

func TestTranslateRejectsGroupOwnerOnUser(t *testing.T) {
	items := append(userItems(), mapping.Item{IntAttrName: "owner", ExtAttrName: "owner", Kind: mapping.KindGroupOwnerSchema})

	_, err := newTranslator().Translate(context.Background(), userObject(), items, entity.AnyTypeUser, nil)
	assert.ErrorIs(t, err, mapping.ErrInvalidMapping)
}

func TestTranslateGroup(t *testing.T) {
	items := []mapping.Item{
		{IntAttrName: "name", ExtAttrName: "cn", Kind: mapping.KindGroupName, Entity: entity.KindGroup, AccountID: true},
		{IntAttrName: "owner", ExtAttrName: "owner", Kind: mapping.KindGroupOwnerSchema, Entity: entity.KindGroup},
		{IntAttrName: "title", ExtAttrName: "title", Kind: mapping.KindPlainSchema, Entity: entity.KindGroup},
	}
	obj := &connector.Object{ObjectClass: mapping.ObjectClassGroup, Attributes: []connector.Attribute{
		connector.NewAttribute("cn", "staff"),
		connector.NewAttribute("owner", "uid=rossini,ou=people"),
		connector.NewAttribute("title", "Staff"),
	}}

	res, err := newTranslator().Translate(context.Background(), obj, items, entity.AnyTypeGroup, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.KindGroup, res.Entity.Kind)
	assert.Equal(t, "staff", res.Entity.Name)
	assert.Empty(t, res.Entity.Password)
	owner, ok := GroupOwner(res.Entity)
	assert.True(t, ok)
	assert.Equal(t, "uid=rossini,ou=people", owner)
}

func TestTranslateAppliesTemplate(t *testing.T) {
	tmpl := entity.NewUser("", "")
	tmpl.Realm = "/even"
	tmpl.SetPlain(&entity.Attr{Schema: "email", Values: []string{"{{ .username }}@example.com"}})
	tmpl.SetPlain(&entity.Attr{Schema: "ctype", Values: []string{"pulled"}})
	tmpl.Resources = []string{"ldap"}

	res, err := newTranslator().Translate(context.Background(), userObject(), userItems(), entity.AnyTypeUser, tmpl)
	require.NoError(t, err)
	assert.Equal(t, "/even", res.Entity.Realm)
	assert.Equal(t, []string{"a@x.com"}, res.Entity.PlainAttr("email").Values)
	assert.Equal(t, []string{"pulled"}, res.Entity.PlainAttr("ctype").Values)
	assert.Equal(t, []string{"ldap"}, res.Entity.Resources)
}

func TestTranslateGeneratesPassword(t *testing.T) {
	store := policy.NewMemoryStore()
	store.SetRealm("/", &policy.Rules{MinLength: 12, DigitRequired: true})
	tmpl := entity.NewUser("", "")
	tmpl.Realm = "/"

	obj := userObject()
	obj.Attributes = obj.Attributes[:1]
	res, err := newTranslator(WithPasswordGenerator(policy.NewEngine(store, nil))).
		Translate(context.Background(), obj, userItems(), entity.AnyTypeUser, tmpl)
	require.NoError(t, err)
	assert.Len(t, res.Entity.Password, 12)
	assert.NoError(t, policy.Check(res.Entity.Password, policy.Rules{MinLength: 12, DigitRequired: true}))
	assert.Empty(t, res.Warnings)
}

func TestTranslateFallsBackToRandomPassword(t *testing.T) {
	store := policy.NewMemoryStore()
	store.SetRealm("/", &policy.Rules{MinLength: 8, MustStartWithAlpha: true, MustntStartWithAlpha: true})
	tmpl := entity.NewUser("", "")
	tmpl.Realm = "/"

	obj := userObject()
	obj.Attributes = obj.Attributes[:1]
	res, err := newTranslator(WithPasswordGenerator(policy.NewEngine(store, nil)), WithFallbackLength(16)).
		Translate(context.Background(), obj, userItems(), entity.AnyTypeUser, tmpl)
	require.NoError(t, err)
	assert.Len(t, res.Entity.Password, 16)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "password", res.Warnings[0].Item)
}
