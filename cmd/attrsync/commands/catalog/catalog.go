// Package catalog implements mapping catalog subcommands.
package catalog

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
)

// Cmd is the catalog subcommand.
var Cmd = &cobra.Command{
	Use:   "catalog",
	Short: "Mapping catalog management",
	Long: `Manage the resources, schemas, password policies and realms of the
mapping catalog.

Subcommands:
  list       List resources and their provisions
  import     Import a catalog YAML document into the database
  export     Export the database catalog as YAML
  delete     Delete a resource
  policies   List password policies and realm assignments
  set-realm  Assign a password policy to a realm`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(importCmd)
	Cmd.AddCommand(exportCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(policiesCmd)
	Cmd.AddCommand(setRealmCmd)
}

var errFileSource = errors.New("the catalog is read from a file; set catalog.source to database to manage it")

// openDatabase opens a session whose catalog lives in the database.
func openDatabase(ctx context.Context) (*cmdutil.Session, error) {
	s, err := cmdutil.Open(ctx)
	if err != nil {
		return nil, err
	}
	if s.Engine.Store == nil {
		_ = s.Close()
		return nil, errFileSource
	}
	return s, nil
}
