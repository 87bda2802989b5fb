package rag

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mwiater/minirag/internal/appconfig"
	"github.com/mwiater/minirag/internal/util"
)

// previewTextRunes caps the chunk text printed per hit.
const previewTextRunes = 160

// Preview runs one question and writes every intermediate stage output.
func Preview(ctx context.Context, out io.Writer, cfg *appconfig.Config, p *Pipeline, question string, topK int) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}
	if p == nil {
		return Result{}, fmt.Errorf("pipeline is nil")
	}

	status := func(format string, args ...any) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	if cfg != nil {
		status("[RAG] reranker: %s", cfg.Reranker)
		status("[RAG] chunks: %s", cfg.ChunksFile())
		status("[RAG] index: %s", cfg.IndexFile())
		status("[RAG] embedding provider: %s", cfg.Embedding.Provider)
	}
	status("[RAG] Preview query: %s", question)

	res := p.Run(ctx, question)
	status("[RAG] run: %s", res.RunID)
	status("[RAG] intent: %s", res.Intent)
	status("[RAG] terms: %s", strings.Join(res.Terms, ", "))
	status("[RAG] hits: %d", len(res.Hits))
	if res.Cached {
		status("[RAG] answer served from cache")
	}

	shown := res.Hits
	if topK > 0 && len(shown) > topK {
		shown = shown[:topK]
	}
	if lines, docs := hitLines(shown); len(lines) > 0 {
		status("[RAG] documents: %d", docs)
		for _, line := range lines {
			status("%s", line)
		}
	}
	for _, f := range res.Fallbacks {
		status("[RAG] fallback: %v", f)
	}
	status("[RAG] answer:\n%s", res.Answer.String())
	return res, nil
}

// hitLines renders one line per hit with its rank key, score, citation
// section and a whitespace-collapsed excerpt. Hits without text are skipped.
// It also returns the number of distinct documents shown.
func hitLines(hits []ScoredCandidate) ([]string, int) {
	var lines []string
	docs := make(map[string]struct{})
	for _, hit := range hits {
		text := strings.Join(strings.Fields(hit.Text), " ")
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s#%d score=%.2f %s] %s",
			hit.DocID, hit.ChunkID, hit.Score, SectionIDFor(hit.ChunkID), util.TruncateRunes(text, previewTextRunes)))
		docs[hit.DocID] = struct{}{}
	}
	return lines, len(docs)
}
