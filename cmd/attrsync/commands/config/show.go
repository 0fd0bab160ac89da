package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/internal/cli/output"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the current attrsync configuration with defaults applied.

By default outputs YAML format. Use --output json for JSON.

Examples:
  # Show the default config
  attrsync config show

  # Show a specific config file as JSON
  attrsync config show --config /etc/attrsync/config.yaml --output json`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(cmdutil.Flags.Output)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}
	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}
