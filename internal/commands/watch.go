package minirag

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiater/minirag/internal/appconfig"
	"github.com/mwiater/minirag/internal/logging"
	"github.com/mwiater/minirag/internal/rag"
	"github.com/mwiater/minirag/internal/watch"
)

// watchCmd keeps the index in sync with the corpus directory.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the index whenever the corpus changes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		debounce, _ := cmd.Flags().GetDuration("debounce")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		rebuild := func(ctx context.Context) error {
			report, err := rebuildIndex(ctx, cfg)
			if err != nil {
				fmt.Fprintf(out, "%s %v\n", failedText("Rebuild failed:"), err)
				return err
			}
			fmt.Fprintf(out, "%s %d chunks from %d files in %s\n", successText("Indexed"), report.Chunks, report.Files, report.Elapsed.Round(time.Millisecond))
			return nil
		}
		if err := rebuild(ctx); err != nil {
			return err
		}

		w, err := watch.New(cfg.CorpusPath, cfg.AllowedExtensions, debounce, rebuild)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s (ctrl+c to stop)\n", labelText("Watching"), cfg.CorpusPath)
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func rebuildIndex(ctx context.Context, cfg *appconfig.Config) (rag.BuildReport, error) {
	embedder, err := rag.NewEmbedder(cfg)
	if err != nil {
		return rag.BuildReport{}, err
	}
	report, err := rag.BuildIndex(ctx, cfg, embedder)
	if err != nil {
		return report, err
	}
	for _, skipped := range report.SkippedFiles {
		logging.LogEvent("[INDEX] skipped %s", skipped)
	}
	return report, nil
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a rebuild")
	rootCmd.AddCommand(watchCmd)
}
