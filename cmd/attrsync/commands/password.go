package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/pkg/entity"
	"github.com/marmos91/attrsync/pkg/policy"
)

var (
	passwordRealm     string
	passwordResources []string
)

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Generate and check passwords against policies",
	Long: `Generate or check passwords against the policies of a realm, its
parent realms and a set of resources.

Examples:
  # Generate a password for a user of /engineering assigned to ldap
  attrsync password generate --realm /engineering --resource ldap

  # Check a password
  attrsync password check 'S3cret!pass' --realm /engineering`,
}

var passwordGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a policy-compliant password",
	Args:  cobra.NoArgs,
	RunE:  runPasswordGenerate,
}

var passwordCheckCmd = &cobra.Command{
	Use:   "check <password>",
	Short: "Check a password against the merged policies",
	Args:  cobra.ExactArgs(1),
	RunE:  runPasswordCheck,
}

func init() {
	for _, c := range []*cobra.Command{passwordGenerateCmd, passwordCheckCmd} {
		c.Flags().StringVar(&passwordRealm, "realm", "/", "Realm path")
		c.Flags().StringSliceVar(&passwordResources, "resource", nil, "Resource key (repeatable)")
	}
	passwordCmd.AddCommand(passwordGenerateCmd)
	passwordCmd.AddCommand(passwordCheckCmd)
}

func runPasswordGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := cmdutil.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}

	u := entity.NewUser("", "")
	u.Realm = passwordRealm
	u.Resources = passwordResources

	pw, err := s.Engine.Policies.Generate(ctx, u)
	if errors.Is(err, policy.ErrUnsatisfiablePolicy) {
		printer.Warning(fmt.Sprintf("Random password used: %v", err))
		pw, err = policy.RandomPassword(s.Config.Password.FallbackLength), nil
	}
	if err != nil {
		return err
	}
	printer.Println(pw)
	return nil
}

func runPasswordCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := cmdutil.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	printer, err := cmdutil.Printer()
	if err != nil {
		return err
	}

	rules, err := s.Engine.Policies.Collect(ctx, passwordRealm, passwordResources)
	if err != nil {
		return err
	}
	if err := policy.Check(args[0], policy.Merge(rules...)); err != nil {
		return fmt.Errorf("password rejected: %w", err)
	}
	printer.Success("Password accepted")
	return nil
}
