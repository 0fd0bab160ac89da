package catalog

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/internal/cli/prompt"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <resource>",
	Short: "Delete a resource and its provisions",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteForce, "force", false, "Skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	key := args[0]

	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete resource %q and all its mapping items", key), deleteForce)
	if err != nil {
		if prompt.IsAborted(err) {
			return nil
		}
		return err
	}
	if !ok {
		return nil
	}

	ctx := cmd.Context()
	s, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := s.Engine.Store.DeleteResource(ctx, key); err != nil {
		return err
	}

	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("Resource %s deleted", key))
	return nil
}
