package rag

// Retriever scores chunks by coordinate match over the inverted index.
type Retriever struct{}

// Retrieve returns every chunk matching at least one term, scored as
// distinctMatchedTerms*1000 + sum(tf). The multiplier keeps any chunk matching
// more distinct terms ahead of one matching fewer, whatever its frequencies.
func (Retriever) Retrieve(terms []string, index *KeywordIndex) []Candidate {
	if len(terms) == 0 || index.Len() == 0 {
		return []Candidate{}
	}

	type accum struct {
		tfSum    int
		distinct int
	}
	scores := make(map[ChunkKey]*accum)
	var order []ChunkKey
	seenTerm := make(map[string]struct{}, len(terms))

	for _, term := range terms {
		if _, dup := seenTerm[term]; dup {
			continue
		}
		seenTerm[term] = struct{}{}

		matched := make(map[ChunkKey]struct{})
		for _, entry := range index.Lookup(term) {
			if !validPosting(entry) {
				continue
			}
			key := ChunkKey{DocID: entry.DocID, ChunkID: entry.ChunkID}
			acc, ok := scores[key]
			if !ok {
				acc = &accum{}
				scores[key] = acc
				order = append(order, key)
			}
			acc.tfSum += entry.TF
			if _, counted := matched[key]; !counted {
				matched[key] = struct{}{}
				acc.distinct++
			}
		}
	}

	hits := make([]Candidate, 0, len(order))
	for _, key := range order {
		acc := scores[key]
		hits = append(hits, Candidate{
			DocID:   key.DocID,
			ChunkID: key.ChunkID,
			Score:   float64(acc.distinct)*1000 + float64(acc.tfSum),
		})
	}
	SortCandidates(hits)
	return hits
}
