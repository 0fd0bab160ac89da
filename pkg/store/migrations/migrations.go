// Package migrations embeds the PostgreSQL schema of the catalog store.
package migrations

import "embed"

// FS holds the numbered up/down migrations.
//
//go:embed *.sql
var FS embed.FS
