package minirag

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiater/minirag/internal/batch"
)

// batchCmd answers a JSON Lines file of questions.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Answer a JSON Lines file of questions",
	Long: `Read {"id": ..., "question": ...} rows from --in, answer them with a bounded
worker pool and write one result row per input row to --out, in input order.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		in, _ := cmd.Flags().GetString("in")
		outPath, _ := cmd.Flags().GetString("out")
		workers, _ := cmd.Flags().GetInt("workers")
		if workers <= 0 {
			workers = cfg.Workers
		}

		s, err := openSession(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := batch.ProcessFile(cmd.Context(), s.pipeline, in, outPath, workers)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %d rows to %s in %s\n", successText("Wrote"), summary.Rows, outPath, summary.Elapsed.Round(time.Millisecond))
		if summary.Invalid > 0 {
			fmt.Fprintf(out, "  %s %d invalid rows\n", failedText("rejected:"), summary.Invalid)
		}
		if summary.Degraded > 0 {
			fmt.Fprintf(out, "  %s %d rows answered through a fallback\n", dimText("degraded:"), summary.Degraded)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().String("in", "", "questions file (JSON Lines)")
	batchCmd.Flags().String("out", "", "answers file (JSON Lines)")
	batchCmd.Flags().Int("workers", 0, "concurrent pipeline runs (defaults to config workers)")
	_ = batchCmd.MarkFlagRequired("in")
	_ = batchCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(batchCmd)
}
