package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample attrsync configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/attrsync/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  attrsync config init

  # Initialize with custom path
  attrsync config init --config /etc/attrsync/config.yaml

  # Force overwrite existing config
  attrsync config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var configPath string
	var err error

	if cmdutil.Flags.ConfigFile != "" {
		configPath = cmdutil.Flags.ConfigFile
		err = config.InitConfigToPath(configPath, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to declare your connectors")
	_, _ = fmt.Fprintln(out, "  2. Import a mapping catalog with: attrsync catalog import --file catalog.yaml")
	_, _ = fmt.Fprintf(out, "  3. Check it with: attrsync config validate --config %s\n", configPath)
	return nil
}
