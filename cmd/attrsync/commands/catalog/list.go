package catalog

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/pkg/mapping"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources and their provisions",
	RunE:  runList,
}

type provisionRow struct {
	Resource       string `json:"resource" yaml:"resource"`
	AnyType        string `json:"any_type" yaml:"any_type"`
	ObjectClass    string `json:"object_class" yaml:"object_class"`
	Items          int    `json:"items" yaml:"items"`
	AccountID      string `json:"account_id" yaml:"account_id"`
	PasswordPolicy string `json:"password_policy,omitempty" yaml:"password_policy,omitempty"`
}

type provisionList []provisionRow

func (l provisionList) Headers() []string {
	return []string{"Resource", "Any Type", "Object Class", "Items", "Account ID", "Password Policy"}
}

func (l provisionList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{p.Resource, p.AnyType, p.ObjectClass, strconv.Itoa(p.Items), p.AccountID, p.PasswordPolicy})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	s, err := cmdutil.Open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var out provisionList
	for _, r := range s.Engine.Catalog.Resources() {
		for i := range r.Provisions {
			p := &r.Provisions[i]
			row := provisionRow{
				Resource:       r.Key,
				AnyType:        p.AnyType,
				ObjectClass:    p.ObjectClassFor(),
				Items:          len(p.Items),
				PasswordPolicy: r.PasswordPolicy,
			}
			if item, err := mapping.AccountIDItem(p.Items); err == nil && item != nil {
				row.AccountID = item.IntAttrName + " -> " + item.ExtAttrName
			}
			out = append(out, row)
		}
	}
	if len(out) == 0 {
		printer.Println("No resources configured")
		return nil
	}
	return printer.Print(out)
}
