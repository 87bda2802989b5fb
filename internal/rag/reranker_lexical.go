package rag

import (
	"context"
	"sort"
	"strings"
)

const (
	lexicalTFWeight   = 10
	proximityWindow   = 15
	proximityBonus    = 5
	titleBoost        = 3
	silverBulletBoost = 200
)

// LexicalReranker scores candidates by term frequency, term proximity,
// document-name matches and exact matches of digit-bearing terms.
type LexicalReranker struct {
	table *ChunkTable
}

func NewLexicalReranker(table *ChunkTable) *LexicalReranker {
	return &LexicalReranker{table: table}
}

func (r *LexicalReranker) Name() string { return "simple" }

func (r *LexicalReranker) Rerank(_ context.Context, terms []string, candidates []Candidate) RerankResult {
	folded := foldTerms(terms)
	result := RerankResult{Hits: make([]ScoredCandidate, 0, len(candidates))}
	for _, c := range candidates {
		chunk, ok := r.table.Lookup(c.DocID, c.ChunkID)
		if !ok {
			result.Hits = append(result.Hits, carryOver(c, ""))
			result.Skipped = append(result.Skipped, HitError{Key: ChunkKey{DocID: c.DocID, ChunkID: c.ChunkID}, Err: ErrChunkNotFound})
			continue
		}
		hit := carryOver(c, chunk.RawText)
		hit.Score = LexicalScore(folded, chunk.DocID, chunk.RawText)
		result.Hits = append(result.Hits, hit)
	}
	SortScored(result.Hits)
	return result
}

// LexicalScore computes tfSum*10 + proximity + title + silver bullet for
// folded terms against a chunk.
func LexicalScore(terms []string, docID, text string) float64 {
	body := Fold(text)
	doc := Fold(docID)

	tfSum := 0
	var positions []int
	for _, t := range terms {
		tfSum += strings.Count(body, t)
		if pos := runeIndex(body, t); pos >= 0 {
			positions = append(positions, pos)
		}
	}

	score := tfSum * lexicalTFWeight
	if len(positions) >= 2 {
		sort.Ints(positions)
		for i := 0; i+1 < len(positions); i++ {
			if positions[i+1]-positions[i] <= proximityWindow {
				score += proximityBonus
				break
			}
		}
	}
	for _, t := range terms {
		if strings.Contains(doc, t) {
			score += titleBoost
			break
		}
	}
	for _, t := range terms {
		if hasDigit(t) && strings.Contains(body, t) {
			score += silverBulletBoost
			break
		}
	}
	return float64(score)
}

// foldTerms folds terms and drops empty ones.
func foldTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = Fold(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}
