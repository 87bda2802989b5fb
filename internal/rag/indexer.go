package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwiater/minirag/internal/appconfig"
)

// ErrCorpusNotFound is returned when the corpus directory does not exist.
var ErrCorpusNotFound = errors.New("corpus directory not found")

// BuildReport describes one index build.
type BuildReport struct {
	Files        int
	SkippedFiles []string
	Chunks       int
	Tokens       int
	ChunksPath   string
	IndexPath    string
	CachePurged  bool
	Elapsed      time.Duration
}

// IndexChunks builds the inverted index. Each distinct token of a chunk gets
// one posting with tf=1.
func IndexChunks(chunks []Chunk) *KeywordIndex {
	index := NewKeywordIndex()
	for _, c := range chunks {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(c.RawText) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			index.Postings[tok] = append(index.Postings[tok], IndexEntry{DocID: c.DocID, ChunkID: c.ChunkID, TF: 1})
		}
	}
	return index
}

// DocIDFor derives a document id from a corpus file name.
func DocIDFor(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BuildIndex chunks and indexes the configured corpus and writes the chunk
// table and inverted index. A successful build purges the query cache file.
func BuildIndex(ctx context.Context, cfg *appconfig.Config, embedder Embedder) (BuildReport, error) {
	var report BuildReport
	if cfg == nil {
		return report, fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.CorpusPath) == "" {
		return report, fmt.Errorf("corpusPath is required")
	}
	info, err := os.Stat(cfg.CorpusPath)
	if err != nil || !info.IsDir() {
		return report, fmt.Errorf("%w: %s", ErrCorpusNotFound, cfg.CorpusPath)
	}

	start := time.Now()
	status := func(format string, args ...any) {
		elapsed := time.Since(start).Truncate(time.Millisecond)
		log.Printf("[%s] %s", elapsed, fmt.Sprintf(format, args...))
	}
	report.ChunksPath = cfg.ChunksFile()
	report.IndexPath = cfg.IndexFile()
	embedderName := "none"
	if embedder != nil {
		embedderName = embedder.Name()
	}
	status("[RAG] Indexing corpus: %s", cfg.CorpusPath)
	status("[RAG] Chunk table: %s, index: %s", report.ChunksPath, report.IndexPath)
	status("[RAG] Embedder: %s", embedderName)
	status("[RAG] Max chunk: %d chars, overlap: %d chars", cfg.Chunking.MaxChars, cfg.Chunking.OverlapChars)

	files, err := discoverCorpusFiles(cfg.CorpusPath, cfg.AllowedExtensions, cfg.ExcludeGlobs)
	if err != nil {
		return report, fmt.Errorf("scan corpus: %w", err)
	}
	status("[RAG] Discovered %d corpus files", len(files))

	chunker := NewChunker(cfg.Chunking.MaxChars, cfg.Chunking.OverlapChars, embedder)
	seenDocs := make(map[string]string)
	var all []Chunk
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		docID := DocIDFor(path)
		if prev, dup := seenDocs[docID]; dup {
			status("[RAG] Skipping %s: doc id %q already used by %s", path, docID, prev)
			report.SkippedFiles = append(report.SkippedFiles, path)
			continue
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			status("[RAG] Skipping unreadable file %s: %v", path, err)
			report.SkippedFiles = append(report.SkippedFiles, path)
			continue
		}
		seenDocs[docID] = path
		chunks := chunker.Chunk(ctx, docID, path, string(raw))
		status("[RAG] Chunked %s (%s) into %d chunks", docID, DetectCategory(path), len(chunks))
		all = append(all, chunks...)
		report.Files++
	}

	index := IndexChunks(all)
	if err := SaveArtifacts(report.ChunksPath, report.IndexPath, all, index); err != nil {
		return report, err
	}
	report.Chunks = len(all)
	report.Tokens = index.Len()

	if cfg.CacheFile() != "" {
		if err := os.Remove(cfg.CacheFile()); err == nil {
			report.CachePurged = true
			status("[RAG] Purged stale query cache: %s", cfg.CacheFile())
		} else if !errors.Is(err, fs.ErrNotExist) {
			status("[RAG] Could not purge query cache %s: %v", cfg.CacheFile(), err)
		}
	}

	report.Elapsed = time.Since(start)
	status("[RAG] Index complete: %d chunks, %d tokens", report.Chunks, report.Tokens)
	return report, nil
}

func discoverCorpusFiles(root string, allowed []string, exclude []string) ([]string, error) {
	var files []string
	allowedMap := make(map[string]struct{}, len(allowed))
	for _, ext := range allowed {
		allowedMap[strings.ToLower(ext)] = struct{}{}
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if shouldExclude(path, exclude) && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldExclude(path, exclude) {
			return nil
		}

		if len(allowedMap) > 0 {
			ext := strings.ToLower(filepath.Ext(path))
			if _, ok := allowedMap[ext]; !ok {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func shouldExclude(path string, patterns []string) bool {
	normalized := filepath.ToSlash(path)
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		pattern = filepath.ToSlash(pattern)
		if strings.Contains(pattern, "**") {
			trimmed := strings.ReplaceAll(pattern, "**", "")
			if trimmed != "" && strings.Contains(normalized, trimmed) {
				return true
			}
		}
		if ok, _ := filepath.Match(pattern, normalized); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(normalized)); ok {
			return true
		}
	}
	return false
}
