package catalog

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/pkg/store"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a catalog YAML document into the database",
	Long: `Import schemas, password policies, realm assignments and resources from
a YAML document. Existing resources with the same key are replaced.

Examples:
  attrsync catalog import --file catalog.yaml`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Catalog YAML document (required)")
	_ = importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, args []string) error {
	doc, err := store.ReadDocument(importFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.Engine.Store.Import(ctx, doc); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d resources, %d schemas and %d policies from %s\n",
		len(doc.Resources), doc.Schemas.Len(), len(doc.Policies), importFile)
	return nil
}
