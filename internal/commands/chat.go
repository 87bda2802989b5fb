package minirag

import (
	"github.com/spf13/cobra"

	"github.com/mwiater/minirag/internal/logging"
	"github.com/mwiater/minirag/internal/tui"
)

// startTUI is swapped out in tests.
var startTUI = tui.Start

// chatCmd represents the 'chat' command, which starts an interactive question session.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question session",
	Long:  `The 'chat' command opens a terminal UI that answers questions against the loaded index.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		// The alt screen owns stdout; keep log lines in the file only.
		if err := logging.InitFileOnly(cfg.LogFilePath()); err != nil {
			return err
		}

		s, err := openSession(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		return startTUI(cmd.Context(), s.pipeline, tui.Info{
			Reranker: cfg.Reranker,
			Chunks:   s.artifacts.Table.Len(),
			Tokens:   s.artifacts.Index.Len(),
			Debug:    cfg.Debug,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
