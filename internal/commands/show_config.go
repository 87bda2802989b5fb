package minirag

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/minirag/internal/appconfig"
)

// showCmd groups read-only inspection commands.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show runtime information",
}

// showConfigCmd implements the 'show config' command, which displays the current configuration settings.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the config file is loaded properly and overridden by flags and MINIRAG_* variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			_, _ = pp.Fprintln(cmd.OutOrStdout(), GetConfig())
			return
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), GetConfig())
	},
}

func init() {
	showConfigCmd.Flags().Bool("raw", false, "dump the resolved config struct")
	showCmd.AddCommand(showConfigCmd)
	rootCmd.AddCommand(showCmd)
}
