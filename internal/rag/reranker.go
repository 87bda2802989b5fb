package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwiater/minirag/internal/appconfig"
)

// ErrChunkNotFound marks a candidate whose chunk is absent from the table.
var ErrChunkNotFound = errors.New("chunk not found")

// HitError records a per-candidate failure. The candidate keeps its
// incoming score.
type HitError struct {
	Key ChunkKey
	Err error
}

func (e HitError) Error() string { return fmt.Sprintf("%s: %v", e.Key, e.Err) }

func (e HitError) Unwrap() error { return e.Err }

// RerankResult carries reranked hits plus the candidates that could not be
// rescored. QueryErr is set when the query itself could not be prepared.
type RerankResult struct {
	Hits     []ScoredCandidate
	Skipped  []HitError
	QueryErr error
}

// Err folds the per-hit failures into a single error, or nil.
func (r RerankResult) Err() error {
	errs := make([]error, 0, len(r.Skipped)+1)
	if r.QueryErr != nil {
		errs = append(errs, r.QueryErr)
	}
	for _, s := range r.Skipped {
		errs = append(errs, s)
	}
	return errors.Join(errs...)
}

// Reranker rescores retrieval candidates.
type Reranker interface {
	Rerank(ctx context.Context, terms []string, candidates []Candidate) RerankResult
	Name() string
}

// NewReranker selects the strategy named in configuration.
func NewReranker(kind string, table *ChunkTable, embedder Embedder) (Reranker, error) {
	switch kind {
	case appconfig.RerankerSimple, "":
		return NewLexicalReranker(table), nil
	case appconfig.RerankerCosine:
		if embedder == nil {
			embedder = InertEmbedder{}
		}
		return NewCosineReranker(table, embedder), nil
	}
	return nil, fmt.Errorf("unknown reranker %q", kind)
}

// carryOver converts a candidate without rescoring it.
func carryOver(c Candidate, text string) ScoredCandidate {
	return ScoredCandidate{DocID: c.DocID, ChunkID: c.ChunkID, Score: c.Score, Text: text}
}
