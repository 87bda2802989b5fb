package rag

import (
	"fmt"

	"github.com/mwiater/minirag/internal/appconfig"
	"github.com/mwiater/minirag/internal/logging"
)

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithCache sets the answer cache consulted before and filled after a run.
func WithCache(cache AnswerCache) Option {
	return func(p *Pipeline) { p.cache = cache }
}

// WithTraceSink sets the stage event sink.
func WithTraceSink(sink TraceSink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithIntentRules replaces the configured intent rules.
func WithIntentRules(rules []IntentRule) Option {
	return func(p *Pipeline) { p.detector = NewIntentDetector(rules) }
}

// NewPipeline wires the reranker and answer agent pair named by
// cfg.Reranker: "simple" uses the lexical reranker with the keyword agent,
// "cosine" the cosine reranker with the vector agent.
func NewPipeline(cfg *appconfig.Config, table *ChunkTable, index *KeywordIndex, embedder Embedder, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if index == nil {
		index = NewKeywordIndex()
	}
	if table == nil {
		table = NewChunkTable(nil)
	}
	if embedder == nil {
		embedder = InertEmbedder{Dim: cfg.Embedding.Dimension}
	}

	rules, err := IntentRulesFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	reranker, err := NewReranker(cfg.Reranker, table, embedder)
	if err != nil {
		return nil, err
	}

	var agent AnswerAgent = KeywordAnswerAgent{}
	if cfg.Reranker == appconfig.RerankerCosine {
		agent = VectorAnswerAgent{Embedder: embedder}
	}

	p := &Pipeline{
		detector: NewIntentDetector(rules),
		reranker: reranker,
		agent:    agent,
		index:    index,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Artifacts holds the loaded chunk table and index with their load reports.
type Artifacts struct {
	Table       *ChunkTable
	Index       *KeywordIndex
	ChunkReport LoadReport
	IndexReport LoadReport
}

// LoadArtifacts reads the chunk table and index named by the configuration.
func LoadArtifacts(cfg *appconfig.Config) (Artifacts, error) {
	var a Artifacts
	table, chunkReport, err := LoadChunks(cfg.ChunksFile())
	if err != nil {
		return a, err
	}
	index, indexReport, err := LoadIndex(cfg.IndexFile())
	if err != nil {
		return a, err
	}
	for _, r := range []LoadReport{chunkReport, indexReport} {
		if r.Skipped > 0 {
			logging.LogEvent("[RAG] %s: skipped %d malformed records", r.Path, r.Skipped)
			for _, p := range r.Problems {
				logging.Debugf("%s: %s", r.Path, p)
			}
		}
	}
	a = Artifacts{Table: table, Index: index, ChunkReport: chunkReport, IndexReport: indexReport}
	return a, nil
}

// Open loads the artifacts and builds a pipeline from the configuration.
func Open(cfg *appconfig.Config, opts ...Option) (*Pipeline, Artifacts, error) {
	if cfg == nil {
		return nil, Artifacts{}, fmt.Errorf("config is nil")
	}
	artifacts, err := LoadArtifacts(cfg)
	if err != nil {
		return nil, artifacts, fmt.Errorf("load artifacts (run the index command first): %w", err)
	}
	embedder, err := NewEmbedder(cfg)
	if err != nil {
		return nil, artifacts, err
	}
	p, err := NewPipeline(cfg, artifacts.Table, artifacts.Index, embedder, opts...)
	if err != nil {
		return nil, artifacts, err
	}
	return p, artifacts, nil
}
