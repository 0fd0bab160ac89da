package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/pkg/outbound"
)

var (
	prepareResource       string
	prepareEntity         string
	preparePassword       string
	prepareChangePassword bool
	prepareEnable         bool
	preparePush           bool
	prepareVirtual        string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Prepare the outbound attributes of an entity",
	Long: `Compute the account id, name and connector attributes an entity would
be propagated with to a resource.

With --push the attributes are sent to the configured connector.

Examples:
  # Show what would be sent to ldap
  attrsync prepare --resource ldap --entity verdi.yaml

  # Propagate with a new password and enable the account
  attrsync prepare --resource ldap --entity verdi.yaml --change-password --password S3cret! --enable --push

  # Propagate only explicit virtual attribute changes
  attrsync prepare --resource ldap --entity verdi.yaml --virtual changes.yaml --push`,
	RunE: runPrepare,
}

func init() {
	prepareCmd.Flags().StringVarP(&prepareResource, "resource", "r", "", "Resource key (required)")
	prepareCmd.Flags().StringVar(&prepareEntity, "entity", "", "Entity YAML file (required)")
	prepareCmd.Flags().StringVar(&preparePassword, "password", "", "Clear-text password to propagate")
	prepareCmd.Flags().BoolVar(&prepareChangePassword, "change-password", false, "Keep the password attribute")
	prepareCmd.Flags().BoolVar(&prepareEnable, "enable", false, "Attach the enable flag (use --enable=false to disable)")
	prepareCmd.Flags().BoolVar(&preparePush, "push", false, "Push the attributes to the resource")
	prepareCmd.Flags().StringVar(&prepareVirtual, "virtual", "", "YAML file with to_update/to_remove virtual changes")
	_ = prepareCmd.MarkFlagRequired("resource")
	_ = prepareCmd.MarkFlagRequired("entity")
}

func runPrepare(cmd *cobra.Command, args []string) error {
	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	ent, err := readEntity(prepareEntity)
	if err != nil {
		return err
	}

	opts := outbound.Options{
		Password:       preparePassword,
		ChangePassword: prepareChangePassword,
	}
	if cmd.Flags().Changed("enable") {
		enable := prepareEnable
		opts.Enable = &enable
	}
	if prepareVirtual != "" {
		var override outbound.VirtualOverride
		if err := cmdutil.ReadYAML(prepareVirtual, &override); err != nil {
			return err
		}
		opts.Virtual = &override
	}

	ctx := cmd.Context()
	s, err := cmdutil.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var res *outbound.Result
	if preparePush {
		res, err = s.Engine.Propagate(ctx, ent, prepareResource, opts)
	} else {
		res, err = s.Engine.Prepare(ctx, ent, prepareResource, opts)
	}
	if err != nil {
		return err
	}

	view := newAttributesView(res.AccountID, res.Name, res.Attributes)
	view.Warnings = warningStrings(res.Warnings)
	if err := printer.Print(view); err != nil {
		return err
	}
	if preparePush {
		printer.Success(fmt.Sprintf("Pushed %s to %s", res.AccountID, prepareResource))
	}
	return nil
}
