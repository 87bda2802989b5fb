package minirag

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/minirag/internal/batch"
	"github.com/mwiater/minirag/internal/evaluation"
)

// evalCmd scores predictions against a gold set.
var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate answers against a gold set",
	Long: `Compute coverage@k, top-1 accuracy, chunk accuracy and latency statistics.
Predictions come from --pred (batch output); without it the gold questions are
answered with the current pipeline first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		predPath, _ := cmd.Flags().GetString("pred")
		goldPath, _ := cmd.Flags().GetString("gold")
		k, _ := cmd.Flags().GetInt("k")
		outPath, _ := cmd.Flags().GetString("out")

		gold, err := evaluation.LoadGold(goldPath)
		if err != nil {
			return fmt.Errorf("load gold: %w", err)
		}

		var preds map[string]batch.Row
		if predPath != "" {
			preds, err = evaluation.LoadPredictions(predPath)
			if err != nil {
				return fmt.Errorf("load predictions: %w", err)
			}
		} else {
			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close()
			preds, err = evaluation.Predict(cmd.Context(), s.pipeline, gold, cfg.Workers)
			if err != nil {
				return err
			}
		}

		report := evaluation.Evaluate(preds, gold, k)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %d questions (%d answered)\n", labelText("Evaluated"), report.Total, report.Answered)
		fmt.Fprintf(out, "  coverage@%d:     %s\n", report.K, percent(report.CoverageAtK))
		fmt.Fprintf(out, "  top-1 accuracy:  %s\n", percent(report.Accuracy))
		if report.ChunkTotal > 0 {
			fmt.Fprintf(out, "  chunk accuracy:  %s (%d labelled)\n", percent(report.ChunkAccuracy), report.ChunkTotal)
		}
		fmt.Fprintf(out, "  latency ms:      mean %.1f, p95 %.1f, max %.1f\n", report.Latency.Mean, report.Latency.P95, report.Latency.Max)
		if len(report.Missing) > 0 {
			fmt.Fprintf(out, "  %s %v\n", failedText("unanswered:"), report.Missing)
		}

		if outPath != "" {
			if err := evaluation.WriteReport(outPath, report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(out, "%s %s\n", successText("Report written to"), outPath)
		}
		return nil
	},
}

func percent(v float64) string {
	s := fmt.Sprintf("%.1f%%", v*100)
	switch {
	case v >= 0.8:
		return successText(s)
	case v < 0.5:
		return failedText(s)
	}
	return s
}

func init() {
	evalCmd.Flags().String("pred", "", "predictions file produced by the batch command")
	evalCmd.Flags().String("gold", "", "gold file with expected_docIds (JSON Lines)")
	evalCmd.Flags().Int("k", evaluation.DefaultK, "coverage cutoff")
	evalCmd.Flags().String("out", "", "write the JSON report to this path")
	_ = evalCmd.MarkFlagRequired("gold")
	rootCmd.AddCommand(evalCmd)
}
