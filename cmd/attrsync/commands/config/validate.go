package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/attrsync/cmd/attrsync/cmdutil"
	"github.com/marmos91/attrsync/internal/cli/output"
	"github.com/marmos91/attrsync/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the attrsync configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  attrsync config validate

  # Validate specific config file
  attrsync config validate --config /etc/attrsync/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(cmdutil.Flags.ConfigFile)
	if err != nil {
		return err
	}

	displayPath := cmdutil.Flags.ConfigFile
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if len(cfg.Connectors) == 0 {
		warnings = append(warnings, "No connectors configured - pull and push will fail")
	}
	if cfg.Cache.Backend == config.CacheBackendBadger && cfg.Cache.Path == "" {
		warnings = append(warnings, "Badger cache path not configured")
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")
	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.SimpleTable(out, [][2]string{
		{"Catalog source", cfg.Catalog.Source},
		{"Database type", string(cfg.Database.Type)},
		{"Cache backend", cfg.Cache.Backend},
		{"Cache TTL", cfg.Cache.TTL.String()},
		{"Connectors", fmt.Sprintf("%d", len(cfg.Connectors))},
		{"Log level", cfg.Logging.Level},
	})
}
