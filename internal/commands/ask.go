package minirag

import (
	"fmt"
	"strings"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"

	"github.com/mwiater/minirag/internal/rag"
	"github.com/mwiater/minirag/internal/util"
)

// askCmd answers one question.
var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Long: `Run one question through intent detection, query writing, retrieval,
reranking and answer synthesis, then print the answer with its citation.
With --debug every stage output and the ranked hits are printed as well.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		question := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		s, err := openSession(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		if cfg.Debug {
			res, err := rag.Preview(cmd.Context(), out, cfg, s.pipeline, question, cfg.TopK)
			if err != nil {
				return err
			}
			hits := res.Hits
			if len(hits) > cfg.TopK {
				hits = hits[:cfg.TopK]
			}
			_, _ = pp.Fprintln(out, hits)
			return nil
		}

		res := s.pipeline.Run(cmd.Context(), question)
		printAnswer(cmd, res)
		return nil
	},
}

const answerWidth = 100

func printAnswer(cmd *cobra.Command, res rag.Result) {
	out := cmd.OutOrStdout()
	text := util.WrapToWidth(res.Answer.FinalText, answerWidth)
	if len(res.Answer.Citations) == 0 {
		fmt.Fprintln(out, failedText(text))
	} else {
		fmt.Fprintln(out, text)
	}
	parts := make([]string, 0, len(res.Answer.Citations))
	for _, c := range res.Answer.Citations {
		parts = append(parts, "["+c.String()+"]")
	}
	fmt.Fprintf(out, "%s %s\n", labelText("Sources:"), strings.Join(parts, " "))
	if res.Cached {
		fmt.Fprintln(out, dimText("(cached)"))
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
}
