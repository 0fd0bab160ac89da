//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/attrsync/pkg/policy"
)

func createPostgresStore(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("attrsync_test"),
		postgres.WithUsername("attrsync_test"),
		postgres.WithPassword("attrsync_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	s, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "attrsync_test",
			User:     "attrsync_test",
			Password: "attrsync_test",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresCatalog(t *testing.T) {
	ctx := context.Background()
	s := createPostgresStore(t)

	_, err := s.CreateResource(ctx, ldapResource())
	require.NoError(t, err)
	_, err = s.CreateResource(ctx, ldapResource())
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.GetResource(ctx, "ldap")
	require.NoError(t, err)
	require.Len(t, got.Provisions, 1)
	assert.Len(t, got.Provisions[0].Items, 4)
	assert.Equal(t, "username", got.Provisions[0].Items[0].IntAttrName)

	require.NoError(t, s.SavePolicy(ctx, "strong", policy.Rules{MinLength: 12, DigitRequired: true}))
	require.NoError(t, s.SetRealmPolicy(ctx, "/", "strong"))

	rules, err := s.ResourceRules(ctx, "ldap")
	require.NoError(t, err)
	require.NotNil(t, rules)
	assert.Equal(t, 12, rules.MinLength)

	require.NoError(t, s.DeleteResource(ctx, "ldap"))
	_, err = s.GetResource(ctx, "ldap")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresMigrationsIdempotent(t *testing.T) {
	s := createPostgresStore(t)
	assert.NoError(t, runMigrations(s.config.Postgres.DSN()))
}
