package rag

import (
	"fmt"
	"sort"
	"strings"
)

// Chunk is one bounded segment of a source document. Chunks are created once
// at index-build time and are read-only afterwards.
type Chunk struct {
	DocID       string    `json:"docId"`
	ChunkID     int       `json:"chunkId"`
	RawText     string    `json:"rawText"`
	StartOffset int       `json:"startOffset"`
	EndOffset   int       `json:"endOffset"`
	SectionID   string    `json:"sectionId,omitempty"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// Key returns the chunk's table key.
func (c Chunk) Key() ChunkKey { return ChunkKey{DocID: c.DocID, ChunkID: c.ChunkID} }

// ChunkKey identifies a chunk across the corpus.
type ChunkKey struct {
	DocID   string
	ChunkID int
}

func (k ChunkKey) String() string { return fmt.Sprintf("%s::%d", k.DocID, k.ChunkID) }

// IndexEntry is a single posting: token presence (TF) within one chunk.
type IndexEntry struct {
	DocID   string `json:"docId"`
	ChunkID int    `json:"chunkId"`
	TF      int    `json:"tf"`
}

// KeywordIndex maps a token to its postings. A (DocID, ChunkID) pair appears
// at most once per token.
type KeywordIndex struct {
	Postings map[string][]IndexEntry `json:"indexMap"`
}

// NewKeywordIndex returns an empty index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{Postings: make(map[string][]IndexEntry)}
}

// Lookup returns the postings for a token.
func (ix *KeywordIndex) Lookup(token string) []IndexEntry {
	if ix == nil {
		return nil
	}
	return ix.Postings[token]
}

// Len returns the number of distinct tokens.
func (ix *KeywordIndex) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.Postings)
}

// Candidate is a retrieval result before reranking.
type Candidate struct {
	DocID   string
	ChunkID int
	Score   float64
}

// ScoredCandidate is a reranked result carrying the chunk text and embedding
// that produced its score.
type ScoredCandidate struct {
	DocID     string    `json:"docId"`
	ChunkID   int       `json:"chunkId"`
	Score     float64   `json:"score"`
	Text      string    `json:"text,omitempty"`
	Embedding []float64 `json:"-"`
}

func (s ScoredCandidate) Key() ChunkKey { return ChunkKey{DocID: s.DocID, ChunkID: s.ChunkID} }

// rankBefore is the total order shared by every hit collection: score
// descending, then DocID ascending, then ChunkID ascending.
func rankBefore(scoreA float64, docA string, chunkA int, scoreB float64, docB string, chunkB int) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	if docA != docB {
		return docA < docB
	}
	return chunkA < chunkB
}

// SortCandidates orders candidates by the total ranking order.
func SortCandidates(hits []Candidate) {
	sort.SliceStable(hits, func(i, j int) bool {
		return rankBefore(hits[i].Score, hits[i].DocID, hits[i].ChunkID, hits[j].Score, hits[j].DocID, hits[j].ChunkID)
	})
}

// SortScored orders scored candidates by the total ranking order.
func SortScored(hits []ScoredCandidate) {
	sort.SliceStable(hits, func(i, j int) bool {
		return rankBefore(hits[i].Score, hits[i].DocID, hits[i].ChunkID, hits[j].Score, hits[j].DocID, hits[j].ChunkID)
	})
}

// Citation points an answer back into the corpus.
type Citation struct {
	DocID       string `json:"docId"`
	SectionID   string `json:"sectionId"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
}

// SectionIDFor formats the chunk-granularity section id used in citations.
func SectionIDFor(chunkID int) string { return fmt.Sprintf("Chunk%d", chunkID) }

func (c Citation) String() string {
	sec := c.SectionID
	if sec == "" {
		sec = "General"
	}
	return fmt.Sprintf("%s:%s:%d-%d", c.DocID, sec, c.StartOffset, c.EndOffset)
}

// Answer is the final response for one question.
type Answer struct {
	FinalText string     `json:"finalText"`
	Citations []Citation `json:"citations"`
}

func (a Answer) String() string {
	parts := make([]string, 0, len(a.Citations))
	for _, c := range a.Citations {
		parts = append(parts, "["+c.String()+"]")
	}
	return a.FinalText + "\nSources: " + strings.Join(parts, " ")
}

// Intent is the coarse category of a question.
type Intent string

const (
	IntentStaffLookup  Intent = "STAFF_LOOKUP"
	IntentCourseInfo   Intent = "COURSE_INFO"
	IntentPolicyFAQ    Intent = "POLICY_FAQ"
	IntentRegistration Intent = "REGISTRATION"
	IntentUnknown      Intent = "UNKNOWN"
)

// ParseIntent converts a label into an Intent, rejecting labels outside the
// closed set.
func ParseIntent(label string) (Intent, error) {
	switch Intent(strings.ToUpper(strings.TrimSpace(label))) {
	case IntentStaffLookup:
		return IntentStaffLookup, nil
	case IntentCourseInfo:
		return IntentCourseInfo, nil
	case IntentPolicyFAQ:
		return IntentPolicyFAQ, nil
	case IntentRegistration:
		return IntentRegistration, nil
	case IntentUnknown:
		return IntentUnknown, nil
	}
	return IntentUnknown, fmt.Errorf("unknown intent %q", label)
}
