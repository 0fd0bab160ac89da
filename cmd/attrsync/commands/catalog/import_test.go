package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
)

const document = `
schemas:
  plain:
    - {name: email, type: String}
policies:
  strong: {min_length: 12, max_length: 16, digit_required: true}
resources:
  - key: ldap
    password_policy: strong
    provisions:
      - any_type: USER
        items:
          - {int_attr_name: username, ext_attr_name: uid, kind: Username, entity: USER, account_id: true}
          - {int_attr_name: email, ext_attr_name: mail, kind: PlainSchema, entity: USER}
`

func writeConfig(t *testing.T, source string) {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(document), 0600))

	cfg := fmt.Sprintf(`
logging: {level: ERROR, format: text, output: stderr}
database:
  type: sqlite
  sqlite: {path: %q}
catalog: {source: %s, path: %q}
cache: {backend: memory, ttl: 5m}
metrics: {enabled: false}
telemetry: {enabled: false}
`, filepath.Join(dir, "attrsync.db"), source, catalogPath)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0600))

	prev := cmdutil.Flags.ConfigFile
	cmdutil.Flags.ConfigFile = path
	importFile = catalogPath
	t.Cleanup(func() {
		cmdutil.Flags.ConfigFile = prev
		importFile = ""
	})
}

func newCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestRunImport(t *testing.T) {
	writeConfig(t, "database")
	cmd, out := newCommand()

	require.NoError(t, runImport(cmd, nil))
	assert.Contains(t, out.String(), "Imported 1 resources, 1 schemas and 1 policies")

	s, err := openDatabase(context.Background())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	resources, err := s.Engine.Store.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "ldap", resources[0].Key)
}

func TestRunImportRequiresDatabaseCatalog(t *testing.T) {
	writeConfig(t, "file")
	cmd, _ := newCommand()

	assert.ErrorIs(t, runImport(cmd, nil), errFileSource)
}
