package catalog

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/internal/cli/output"
)

var exportFile string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the database catalog as YAML",
	Long: `Export the catalog stored in the database as a YAML document that
catalog import, or a file catalog source, can read back.

Examples:
  attrsync catalog export > catalog.yaml
  attrsync catalog export --file catalog.yaml`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "Output file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	doc, err := s.Engine.Store.Export(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := output.PrintYAML(&buf, doc); err != nil {
		return err
	}
	if exportFile == "" {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(exportFile, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportFile, err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Catalog written to %s\n", exportFile)
	return nil
}
