package rag

import (
	"context"
	"regexp"
	"strings"
	"sync"
)

var queryCourseCode = regexp.MustCompile(`\b([A-Z]{3,4}\s?\d{3,4})\b`)

const (
	cosineWeight      = 100.0
	courseCodeBoost   = 300.0
	docIDTermBoost    = 50.0
	textTermBoost     = 10.0
	topicMatchBoost   = 300.0
	singleCourseBoost = 500.0
	topicConflict     = -200.0
)

// CosineReranker scores candidates by embedding similarity to the query plus
// fixed domain boosts. Embeddings computed on demand are memoized per
// reranker so the shared chunk table is never written.
type CosineReranker struct {
	table    *ChunkTable
	embedder Embedder

	mu      sync.RWMutex
	vectors map[ChunkKey][]float64
}

func NewCosineReranker(table *ChunkTable, embedder Embedder) *CosineReranker {
	return &CosineReranker{
		table:    table,
		embedder: embedder,
		vectors:  make(map[ChunkKey][]float64),
	}
}

func (r *CosineReranker) Name() string { return "cosine" }

type cosineQuery struct {
	vec        []float64
	critical   []string
	courseCode string
	topic      topic
}

type topic int

const (
	topicNone topic = iota
	topicSingleCourse
	topicDoubleMajor
	topicLateralTransfer
)

func (r *CosineReranker) Rerank(ctx context.Context, terms []string, candidates []Candidate) RerankResult {
	result := RerankResult{Hits: make([]ScoredCandidate, 0, len(candidates))}
	q := r.prepare(ctx, terms, &result)

	for _, c := range candidates {
		key := ChunkKey{DocID: c.DocID, ChunkID: c.ChunkID}
		chunk, ok := r.table.Lookup(c.DocID, c.ChunkID)
		if !ok {
			result.Hits = append(result.Hits, carryOver(c, ""))
			result.Skipped = append(result.Skipped, HitError{Key: key, Err: ErrChunkNotFound})
			continue
		}
		vec, err := r.vectorFor(ctx, chunk)
		if err != nil {
			result.Hits = append(result.Hits, carryOver(c, chunk.RawText))
			result.Skipped = append(result.Skipped, HitError{Key: key, Err: err})
			continue
		}
		hit := carryOver(c, chunk.RawText)
		hit.Embedding = vec
		hit.Score = q.score(chunk, vec)
		result.Hits = append(result.Hits, hit)
	}
	SortScored(result.Hits)
	return result
}

func (r *CosineReranker) prepare(ctx context.Context, terms []string, result *RerankResult) cosineQuery {
	joined := strings.Join(terms, " ")
	var q cosineQuery

	vec, err := r.embedder.Embed(ctx, joined)
	if err != nil {
		result.QueryErr = err
	} else {
		q.vec = vec
	}

	for _, t := range foldTerms(terms) {
		if runeLen(t) > 3 || hasDigit(t) {
			q.critical = append(q.critical, t)
		}
	}
	if m := queryCourseCode.FindStringSubmatch(strings.ToUpper(joined)); m != nil {
		q.courseCode = strings.ReplaceAll(m[1], " ", "")
	}

	folded := Fold(joined)
	switch {
	case strings.Contains(folded, "tek ders"):
		q.topic = topicSingleCourse
	case strings.Contains(folded, "çap") || strings.Contains(folded, "çift anadal"):
		q.topic = topicDoubleMajor
	case strings.Contains(folded, "yatay geçiş"):
		q.topic = topicLateralTransfer
	}
	return q
}

func (q cosineQuery) score(chunk Chunk, vec []float64) float64 {
	score := 0.0
	if q.vec != nil {
		score = CosineSimilarity(q.vec, vec) * cosineWeight
	}

	text := Fold(chunk.RawText)
	doc := Fold(chunk.DocID)

	if q.courseCode != "" {
		firstLine := strings.TrimSpace(chunk.RawText)
		if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
			firstLine = firstLine[:i]
		}
		if strings.HasPrefix(strings.ReplaceAll(strings.ToUpper(firstLine), " ", ""), q.courseCode) {
			score += courseCodeBoost
		}
	}
	for _, t := range q.critical {
		if strings.Contains(doc, t) {
			score += docIDTermBoost
			break
		}
	}
	for _, t := range q.critical {
		if strings.Contains(text, t) {
			score += textTermBoost
		}
	}

	switch q.topic {
	case topicSingleCourse:
		if strings.Contains(doc, "tek") && strings.Contains(doc, "ders") {
			score += singleCourseBoost
		} else if strings.Contains(doc, "çap") || strings.Contains(doc, "yatay") {
			score += topicConflict
		}
	case topicDoubleMajor:
		if strings.Contains(doc, "çap") || strings.Contains(doc, "anadal") {
			score += topicMatchBoost
		} else if strings.Contains(doc, "yatay") {
			score += topicConflict
		}
	case topicLateralTransfer:
		if strings.Contains(doc, "yatay") {
			score += topicMatchBoost
		} else if strings.Contains(doc, "çap") || strings.Contains(doc, "anadal") {
			score += topicConflict
		}
	}
	return score
}

// vectorFor returns the stored embedding, a memoized one, or a fresh one.
func (r *CosineReranker) vectorFor(ctx context.Context, chunk Chunk) ([]float64, error) {
	if n := len(chunk.Embedding); n > 0 {
		if dim := r.embedder.Dimension(); dim <= 0 || dim == n {
			return chunk.Embedding, nil
		}
	}
	key := chunk.Key()
	r.mu.RLock()
	vec, ok := r.vectors[key]
	r.mu.RUnlock()
	if ok {
		return vec, nil
	}

	vec, err := r.embedder.Embed(ctx, chunk.RawText)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.vectors[key] = vec
	r.mu.Unlock()
	return vec, nil
}
