package minirag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwiater/minirag/internal/appconfig"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

// configInitCmd writes a config file populated with the defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		path, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")

		format = strings.ToLower(format)
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unsupported format %q (use json or yaml)", format)
		}
		if path == "" {
			path = filepath.Join("config", "config."+format)
		}
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := appconfig.Save(path, appconfig.Default()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successText("Wrote"), path)
		return nil
	},
}

// configValidateCmd checks one config file on its own, without flags or
// MINIRAG_* overrides applied.
var configValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check a config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if len(args) == 1 {
			path = args[0]
		}
		cfg, err := appconfig.Load(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (reranker %s, embedding %s)\n",
			successText("Valid:"), cfg.ConfigPath, cfg.Reranker, cfg.Embedding.Provider)
		return nil
	},
}

func init() {
	configInitCmd.Flags().String("format", "json", "file format: json or yaml")
	configInitCmd.Flags().String("path", "", "output path (defaults to config/config.<format>)")
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
