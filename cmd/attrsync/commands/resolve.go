package commands

import (
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
)

var (
	resolveEntity  string
	resolveSchemas []string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve virtual attributes of an entity",
	Long: `Resolve virtual attribute values from every resource of an entity
that declares them, through the virtual attribute cache.

Without --schema every virtual attribute listed in the entity file is
resolved.

Examples:
  # Resolve one attribute
  attrsync resolve --entity rossini.yaml --schema phone

  # Resolve every virtual attribute of the entity
  attrsync resolve --entity rossini.yaml`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveEntity, "entity", "", "Owner entity YAML file (required)")
	resolveCmd.Flags().StringSliceVar(&resolveSchemas, "schema", nil, "Virtual schema to resolve (repeatable)")
	_ = resolveCmd.MarkFlagRequired("entity")
}

type resolution struct {
	Schema   string   `json:"schema" yaml:"schema"`
	Values   []string `json:"values" yaml:"values"`
	Cached   bool     `json:"cached" yaml:"cached"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type resolutionList []resolution

func (l resolutionList) Headers() []string { return []string{"Schema", "Values", "Cached", "Warnings"} }

func (l resolutionList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{r.Schema, strings.Join(r.Values, ", "), strconv.FormatBool(r.Cached), strings.Join(r.Warnings, "; ")})
	}
	return rows
}

func runResolve(cmd *cobra.Command, args []string) error {
	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}
	owner, err := readEntity(resolveEntity)
	if err != nil {
		return err
	}

	schemas := resolveSchemas
	if len(schemas) == 0 {
		for name := range owner.Virtual {
			schemas = append(schemas, name)
		}
		slices.Sort(schemas)
	}

	ctx := cmd.Context()
	s, err := cmdutil.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	out := make(resolutionList, 0, len(schemas))
	for _, schema := range schemas {
		res, err := s.Engine.Resolver.Resolve(ctx, owner, schema)
		if err != nil {
			return err
		}
		out = append(out, resolution{
			Schema:   schema,
			Values:   res.Values,
			Cached:   res.Hit,
			Warnings: warningStrings(res.Warnings),
		})
	}
	return printer.Print(out)
}
