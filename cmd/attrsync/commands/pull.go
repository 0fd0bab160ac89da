package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/internal/cli/output"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/inbound"
)

var (
	pullAnyType  string
	pullTemplate string
	pullOriginal string
)

var pullCmd = &cobra.Command{
	Use:   "pull <resource> <account-id>",
	Short: "Fetch an object from a resource and translate it",
	Long: `Fetch the object identified by account id from a configured connector
and translate it into an internal entity.

With --original the object is diffed against an existing entity and the
resulting patch is printed instead.

Examples:
  # Pull a user from the ldap resource
  attrsync pull ldap rossini

  # Compute the patch for an existing user
  attrsync pull ldap rossini --original rossini-entity.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: runPull,
}

func init() {
	pullCmd.Flags().StringVar(&pullAnyType, "any-type", entity.AnyTypeUser, "Any type of the pulled entity")
	pullCmd.Flags().StringVar(&pullTemplate, "template", "", "Entity template YAML file")
	pullCmd.Flags().StringVar(&pullOriginal, "original", "", "Existing entity YAML file to diff against")
}

func runPull(cmd *cobra.Command, args []string) error {
	resourceKey, accountID := args[0], args[1]

	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	tmpl, err := readEntity(pullTemplate)
	if err != nil {
		return err
	}
	original, err := readEntity(pullOriginal)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := cmdutil.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if original != nil {
		res, err := s.Engine.PullUpdate(ctx, resourceKey, accountID, original, tmpl)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			printer.Warning(w.String())
		}
		if res.Patch.IsEmpty() {
			printer.Success("No changes")
			return nil
		}
		if printer.Format() == output.FormatTable {
			return output.PrintYAML(printer.Writer(), res.Patch)
		}
		return printer.Print(res.Patch)
	}

	res, err := s.Engine.Pull(ctx, resourceKey, pullAnyType, accountID, tmpl)
	if err != nil {
		return err
	}
	return printTranslation(printer, res)
}

func printTranslation(printer *output.Printer, res *inbound.Result) error {
	if err := printer.Print(newEntityView(res.Entity)); err != nil {
		return err
	}
	for _, w := range res.Warnings {
		printer.Warning(w.String())
	}
	return nil
}
