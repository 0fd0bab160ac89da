package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/mapping"
)

var (
	translateResource string
	translateAnyType  string
	translateObject   string
	translateTemplate string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a connector object file into an entity",
	Long: `Translate a connector object read from a YAML file into an internal
entity, using the synchronization items of the resource provision.

The object file lists the object class, uid, name and attributes:

  object_class: __ACCOUNT__
  uid: rossini
  attributes:
    uid: [rossini]
    mail: [rossini@example.com]

Examples:
  # Translate a user
  attrsync translate --resource ldap --object rossini.yaml

  # Apply a template to the translated group
  attrsync translate --resource ldap --any-type GROUP --object staff.yaml --template group.yaml`,
	RunE: runTranslate,
}

func init() {
	translateCmd.Flags().StringVarP(&translateResource, "resource", "r", "", "Resource key (required)")
	translateCmd.Flags().StringVar(&translateAnyType, "any-type", entity.AnyTypeUser, "Any type of the translated entity")
	translateCmd.Flags().StringVar(&translateObject, "object", "", "Connector object YAML file (required)")
	translateCmd.Flags().StringVar(&translateTemplate, "template", "", "Entity template YAML file")
	_ = translateCmd.MarkFlagRequired("resource")
	_ = translateCmd.MarkFlagRequired("object")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	obj, err := readObject(translateObject)
	if err != nil {
		return err
	}
	tmpl, err := readEntity(translateTemplate)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := cmdutil.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	items, err := s.Engine.Catalog.ItemsFor(translateResource, translateAnyType, mapping.PurposeSynchronization)
	if err != nil {
		return err
	}
	res, err := s.Engine.Translator.Translate(ctx, obj, items, translateAnyType, tmpl)
	if err != nil {
		return err
	}
	res.Entity.AddResource(translateResource)
	return printTranslation(printer, res)
}
