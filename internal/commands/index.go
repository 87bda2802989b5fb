package minirag

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// indexCmd builds the chunk table and inverted index from the corpus.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the chunk table and keyword index",
	Long: `Chunk every corpus file, build the inverted keyword index and write both
artifacts to the data directory. A successful build purges the query cache.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if corpus, _ := cmd.Flags().GetString("corpus"); corpus != "" {
			cfg.CorpusPath = corpus
		}
		report, err := rebuildIndex(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %d files, %d chunks, %d tokens in %s\n",
			successText("Indexed"), report.Files, report.Chunks, report.Tokens, report.Elapsed.Round(time.Millisecond))
		fmt.Fprintf(out, "  %s %s\n", labelText("chunks:"), report.ChunksPath)
		fmt.Fprintf(out, "  %s %s\n", labelText("index: "), report.IndexPath)
		for _, skipped := range report.SkippedFiles {
			fmt.Fprintf(out, "  %s %s\n", failedText("skipped:"), skipped)
		}
		if report.CachePurged {
			fmt.Fprintf(out, "  %s\n", dimText("query cache purged"))
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().String("corpus", "", "corpus directory (overrides corpusPath)")
	rootCmd.AddCommand(indexCmd)
}
