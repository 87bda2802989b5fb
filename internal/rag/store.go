package rag

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxReportedProblems caps how many skipped-record descriptions a LoadReport keeps.
const maxReportedProblems = 20

// LoadReport summarizes an artifact load. Malformed records are skipped and
// counted rather than failing the load.
type LoadReport struct {
	Path     string
	Loaded   int
	Skipped  int
	Merged   int
	Problems []string
}

func (r *LoadReport) skip(format string, args ...any) {
	r.Skipped++
	if len(r.Problems) < maxReportedProblems {
		r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
	}
}

// ChunkTable is the read-only chunk lookup shared by rerankers and agents.
type ChunkTable struct {
	byKey map[ChunkKey]Chunk
	order []ChunkKey
}

// NewChunkTable indexes chunks by (DocID, ChunkID). Later duplicates are ignored.
func NewChunkTable(chunks []Chunk) *ChunkTable {
	t := &ChunkTable{byKey: make(map[ChunkKey]Chunk, len(chunks))}
	for _, c := range chunks {
		t.add(c)
	}
	return t
}

func (t *ChunkTable) add(c Chunk) bool {
	key := c.Key()
	if _, exists := t.byKey[key]; exists {
		return false
	}
	t.byKey[key] = c
	t.order = append(t.order, key)
	return true
}

// Lookup returns the chunk for a key.
func (t *ChunkTable) Lookup(docID string, chunkID int) (Chunk, bool) {
	if t == nil {
		return Chunk{}, false
	}
	c, ok := t.byKey[ChunkKey{DocID: docID, ChunkID: chunkID}]
	return c, ok
}

// Len returns the number of chunks.
func (t *ChunkTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// All returns the chunks in load order.
func (t *ChunkTable) All() []Chunk {
	if t == nil {
		return nil
	}
	out := make([]Chunk, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.byKey[key])
	}
	return out
}

// SaveArtifacts writes the chunk table as JSON Lines and the index as a JSON
// object. Each file is written to a temp file and renamed into place.
func SaveArtifacts(chunksPath, indexPath string, chunks []Chunk, index *KeywordIndex) error {
	if err := writeAtomic(chunksPath, func(w *bufio.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		for _, c := range chunks {
			if err := encoder.Encode(c); err != nil {
				return fmt.Errorf("write chunk %s: %w", c.Key(), err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("save chunk table: %w", err)
	}

	if index == nil {
		index = NewKeywordIndex()
	}
	if err := writeAtomic(indexPath, func(w *bufio.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		return encoder.Encode(index)
	}); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

func writeAtomic(path string, write func(*bufio.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadChunks reads a JSON Lines chunk table.
func LoadChunks(path string) (*ChunkTable, LoadReport, error) {
	report := LoadReport{Path: path}
	file, err := os.Open(path)
	if err != nil {
		return nil, report, fmt.Errorf("open chunk table: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	table := &ChunkTable{byKey: make(map[ChunkKey]Chunk)}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var c Chunk
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			report.skip("line %d: %v", lineNo, err)
			continue
		}
		if strings.TrimSpace(c.DocID) == "" || c.ChunkID < 0 {
			report.skip("line %d: missing docId or negative chunkId", lineNo)
			continue
		}
		if !table.add(c) {
			report.skip("line %d: duplicate chunk %s", lineNo, c.Key())
			continue
		}
		report.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return nil, report, fmt.Errorf("read chunk table: %w", err)
	}
	return table, report, nil
}

// LoadIndex reads the inverted index. Postings that fail to decode or carry
// an empty docId, a negative chunkId or tf < 1 are skipped. Repeated postings
// for the same token and chunk are merged by summing tf.
func LoadIndex(path string) (*KeywordIndex, LoadReport, error) {
	report := LoadReport{Path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, report, fmt.Errorf("open index: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, report, fmt.Errorf("parse index: %w", err)
	}
	source := top
	if nested, ok := top["indexMap"]; ok {
		source = nil
		if err := json.Unmarshal(nested, &source); err != nil {
			return nil, report, fmt.Errorf("parse indexMap: %w", err)
		}
	}

	tokens := make([]string, 0, len(source))
	for token := range source {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	index := NewKeywordIndex()
	for _, token := range tokens {
		var entries []json.RawMessage
		if err := json.Unmarshal(source[token], &entries); err != nil {
			report.skip("token %q: %v", token, err)
			continue
		}
		positions := make(map[ChunkKey]int)
		for i, rawEntry := range entries {
			var entry IndexEntry
			if err := json.Unmarshal(rawEntry, &entry); err != nil {
				report.skip("token %q posting %d: %v", token, i, err)
				continue
			}
			if !validPosting(entry) {
				report.skip("token %q posting %d: invalid posting", token, i)
				continue
			}
			key := ChunkKey{DocID: entry.DocID, ChunkID: entry.ChunkID}
			if pos, seen := positions[key]; seen {
				index.Postings[token][pos].TF += entry.TF
				report.Merged++
				continue
			}
			positions[key] = len(index.Postings[token])
			index.Postings[token] = append(index.Postings[token], entry)
			report.Loaded++
		}
	}
	return index, report, nil
}

func validPosting(e IndexEntry) bool {
	return strings.TrimSpace(e.DocID) != "" && e.ChunkID >= 0 && e.TF >= 1
}
