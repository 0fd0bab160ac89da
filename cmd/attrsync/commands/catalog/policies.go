package catalog

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/pkg/policy"
)

var policiesCmd = &cobra.Command{
	Use:   "policies",
	Short: "List password policies and realm assignments",
	RunE:  runPolicies,
}

var setRealmCmd = &cobra.Command{
	Use:   "set-realm <realm> <policy>",
	Short: "Assign a password policy to a realm",
	Long: `Assign a password policy to a realm. Entities of the realm and of its
sub-realms are checked against it.

Examples:
  attrsync catalog set-realm /engineering strong`,
	Args: cobra.ExactArgs(2),
	RunE: runSetRealm,
}

type policyRow struct {
	Name   string       `json:"name" yaml:"name"`
	Realms []string     `json:"realms,omitempty" yaml:"realms,omitempty"`
	Rules  policy.Rules `json:"rules" yaml:"rules"`
}

type policyList []policyRow

func (l policyList) Headers() []string {
	return []string{"Name", "Min", "Max", "Realms"}
}

func (l policyList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{p.Name, strconv.Itoa(p.Rules.MinLength), strconv.Itoa(p.Rules.MaxLength), fmt.Sprint(p.Realms)})
	}
	return rows
}

func runPolicies(cmd *cobra.Command, args []string) error {
	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	policies, err := s.Engine.Store.ListPolicies(ctx)
	if err != nil {
		return err
	}
	realms, err := s.Engine.Store.RealmPolicies(ctx)
	if err != nil {
		return err
	}

	out := make(policyList, 0, len(policies))
	for _, name := range slices.Sorted(maps.Keys(policies)) {
		row := policyRow{Name: name, Rules: policies[name]}
		for _, realm := range slices.Sorted(maps.Keys(realms)) {
			if realms[realm] == name {
				row.Realms = append(row.Realms, realm)
			}
		}
		out = append(out, row)
	}
	return printer.Print(out)
}

func runSetRealm(cmd *cobra.Command, args []string) error {
	realm, name := args[0], args[1]

	ctx := cmd.Context()
	s, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if _, err := s.Engine.Store.GetPolicy(ctx, name); err != nil {
		return fmt.Errorf("policy %s: %w", name, err)
	}
	if err := s.Engine.Store.SetRealmPolicy(ctx, realm, name); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Realm %s now uses policy %s\n", realm, name)
	return nil
}
