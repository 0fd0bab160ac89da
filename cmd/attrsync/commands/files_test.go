package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/attrsync/pkg/connector"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/mapping"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestReadObject(t *testing.T) {
	path := writeFile(t, "object.yaml", `
uid: rossini
attributes:
  uid: [rossini]
  mail: [rossini@example.com, gioachino@example.com]
`)

	obj, err := readObject(path)
	require.NoError(t, err)
	assert.Equal(t, mapping.ObjectClassAccount, obj.ObjectClass)
	assert.Equal(t, "rossini", obj.UID)
	require.Len(t, obj.Attributes, 2)
	assert.Equal(t, "mail", obj.Attributes[0].Name)
	assert.Equal(t, []string{"rossini@example.com", "gioachino@example.com"}, obj.Attribute("mail").Strings())
}

func TestReadEntity(t *testing.T) {
	path := writeFile(t, "entity.yaml", `
key: u-1
username: verdi
realm: /engineering
plain:
  email:
    values: [verdi@example.com]
virtual:
  phone: {}
resources: [ldap]
`)

	e, err := readEntity(path)
	require.NoError(t, err)
	assert.Equal(t, entity.KindUser, e.Kind)
	assert.Equal(t, entity.AnyTypeUser, e.Type)
	assert.Equal(t, "email", e.PlainAttr("email").Schema)
	assert.Equal(t, "phone", e.VirtualAttr("phone").Schema)
	assert.NotNil(t, e.Derived)
	assert.True(t, e.HasResource("ldap"))
}

func TestReadEntityEmptyPath(t *testing.T) {
	e, err := readEntity("")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestEntityViewMasksPassword(t *testing.T) {
	u := entity.NewUser("u-1", "verdi")
	u.Password = "Cl34r-text"
	u.SetPlain(&entity.Attr{Schema: "email", Values: []string{"verdi@example.com"}})

	v := newEntityView(u)
	assert.Empty(t, v.Password)
	assert.Equal(t, "Cl34r-text", u.Password)

	rows := v.Rows()
	assert.Contains(t, rows, []string{"username", "verdi"})
	assert.Contains(t, rows, []string{"password", "******"})
	assert.Contains(t, rows, []string{"plain.email", "verdi@example.com"})
	for _, row := range rows {
		assert.NotContains(t, row[1], "Cl34r-text")
	}
}

func TestAttributesViewMasksPassword(t *testing.T) {
	v := newAttributesView("verdi", "uid=verdi,ou=people", []connector.Attribute{
		connector.NewAttribute("mail", "verdi@example.com"),
		connector.NewAttribute(connector.PasswordAttr, connector.NewGuardedString("S3cret!")),
	})

	assert.Equal(t, []string{"******"}, v.Attributes[connector.PasswordAttr])
	assert.Equal(t, []string{"verdi@example.com"}, v.Attributes["mail"])
	assert.Equal(t, []string{"account id", "verdi"}, v.Rows()[0])
}
