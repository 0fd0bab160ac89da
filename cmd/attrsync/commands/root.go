// Package commands implements the attrsync command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/cmd/attrsync/commands/catalog"
	"github.com/marmos91/attrsync/cmd/attrsync/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "attrsync",
	Short: "attrsync - identity attribute mapping engine",
	Long: `attrsync maps identity attributes between an internal store and
external resources such as LDAP directories.

It translates connector objects into users, groups and any objects,
prepares outbound payloads, resolves virtual attributes through a cache
and generates passwords from realm and resource policies.

Use "attrsync [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Version = Version
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cmdutil.Flags.ConfigFile, "config", "", "config file (default: $XDG_CONFIG_HOME/attrsync/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&cmdutil.Flags.Output, "output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().BoolVar(&cmdutil.Flags.NoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(passwordCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(catalog.Cmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
