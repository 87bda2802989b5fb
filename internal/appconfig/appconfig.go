// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRequestTimeout is the default timeout for embedding requests.
	defaultRequestTimeout = 30 * time.Second
	// defaultMaxChars is the maximum chunk length in characters.
	defaultMaxChars = 1000
	// defaultOverlapChars is the character overlap between consecutive sub-chunks.
	defaultOverlapChars = 150
	// defaultDimension matches the vector size of the MiniLM family of embedding models.
	defaultDimension = 384
	// defaultTopK is how many ranked documents are reported per answer.
	defaultTopK = 5
)

// Reranker strategy names.
const (
	RerankerSimple = "simple"
	RerankerCosine = "cosine"
)

// Embedding provider names.
const (
	EmbeddingNone    = "none"
	EmbeddingHashing = "hashing"
	EmbeddingOllama  = "ollama"
)

// Config represents the top-level application configuration.
type Config struct {
	CorpusPath        string          `json:"corpusPath" yaml:"corpusPath" mapstructure:"corpusPath"`
	DataDir           string          `json:"dataDir" yaml:"dataDir" mapstructure:"dataDir"`
	ChunksPath        string          `json:"chunksPath,omitempty" yaml:"chunksPath,omitempty" mapstructure:"chunksPath"`
	IndexPath         string          `json:"indexPath,omitempty" yaml:"indexPath,omitempty" mapstructure:"indexPath"`
	CachePath         string          `json:"cachePath,omitempty" yaml:"cachePath,omitempty" mapstructure:"cachePath"`
	CacheEnabled      bool            `json:"cacheEnabled" yaml:"cacheEnabled" mapstructure:"cacheEnabled"`
	TraceDir          string          `json:"traceDir,omitempty" yaml:"traceDir,omitempty" mapstructure:"traceDir"`
	LogFile           string          `json:"logFile,omitempty" yaml:"logFile,omitempty" mapstructure:"logFile"`
	Debug             bool            `json:"debug" yaml:"debug" mapstructure:"debug"`
	Reranker          string          `json:"reranker" yaml:"reranker" mapstructure:"reranker"`
	Workers           int             `json:"workers,omitempty" yaml:"workers,omitempty" mapstructure:"workers"`
	TopK              int             `json:"topK,omitempty" yaml:"topK,omitempty" mapstructure:"topK"`
	AllowedExtensions []string        `json:"allowedExtensions,omitempty" yaml:"allowedExtensions,omitempty" mapstructure:"allowedExtensions"`
	ExcludeGlobs      []string        `json:"excludeGlobs,omitempty" yaml:"excludeGlobs,omitempty" mapstructure:"excludeGlobs"`
	Chunking          ChunkingConfig  `json:"chunking" yaml:"chunking" mapstructure:"chunking"`
	Embedding         EmbeddingConfig `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	IntentRules       []IntentRule    `json:"intentRules,omitempty" yaml:"intentRules,omitempty" mapstructure:"intentRules"`
	ConfigPath        string          `json:"-" yaml:"-" mapstructure:"-"`
}

// ChunkingConfig bounds the sliding window applied to oversized segments.
type ChunkingConfig struct {
	MaxChars     int `json:"maxChars" yaml:"maxChars" mapstructure:"maxChars"`
	OverlapChars int `json:"overlapChars" yaml:"overlapChars" mapstructure:"overlapChars"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider       string `json:"provider" yaml:"provider" mapstructure:"provider"`
	URL            string `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	Model          string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	Dimension      int    `json:"dimension,omitempty" yaml:"dimension,omitempty" mapstructure:"dimension"`
	TimeoutSeconds int    `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// IntentRule maps an intent label to the keywords that trigger it. Rules are
// evaluated in slice order, so the first matching rule wins.
type IntentRule struct {
	Intent   string   `json:"intent" yaml:"intent" mapstructure:"intent"`
	Keywords []string `json:"keywords" yaml:"keywords" mapstructure:"keywords"`
}

// Default returns a configuration populated with every default value.
func Default() Config {
	cfg := Config{
		CorpusPath:   "data/corpus",
		DataDir:      "data",
		CacheEnabled: true,
		TraceDir:     "logs",
		Reranker:     RerankerSimple,
		Embedding:    EmbeddingConfig{Provider: EmbeddingHashing},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "data"
	}
	if strings.TrimSpace(c.Reranker) == "" {
		c.Reranker = RerankerSimple
	}
	c.Reranker = strings.ToLower(strings.TrimSpace(c.Reranker))
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.TopK <= 0 {
		c.TopK = defaultTopK
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{".txt"}
	}
	if c.Chunking.MaxChars <= 0 {
		c.Chunking.MaxChars = defaultMaxChars
		if c.Chunking.OverlapChars <= 0 {
			c.Chunking.OverlapChars = defaultOverlapChars
		}
	}
	if c.Chunking.OverlapChars < 0 {
		c.Chunking.OverlapChars = 0
	}
	if strings.TrimSpace(c.Embedding.Provider) == "" {
		c.Embedding.Provider = EmbeddingHashing
	}
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = defaultDimension
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
	if c.Embedding.Provider == EmbeddingOllama {
		if strings.TrimSpace(c.Embedding.URL) == "" {
			c.Embedding.URL = "http://localhost:11434"
		}
		if strings.TrimSpace(c.Embedding.Model) == "" {
			c.Embedding.Model = "all-minilm"
		}
	}
}

// Validate reports configuration values that cannot be repaired by defaults.
func (c Config) Validate() error {
	switch c.Reranker {
	case RerankerSimple, RerankerCosine:
	default:
		return fmt.Errorf("reranker must be %q or %q, got %q", RerankerSimple, RerankerCosine, c.Reranker)
	}
	switch c.Embedding.Provider {
	case EmbeddingNone, EmbeddingHashing, EmbeddingOllama:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Chunking.OverlapChars >= c.Chunking.MaxChars {
		return fmt.Errorf("chunking.overlapChars must be smaller than chunking.maxChars")
	}
	for i, rule := range c.IntentRules {
		if strings.TrimSpace(rule.Intent) == "" {
			return fmt.Errorf("intentRules[%d]: intent is required", i)
		}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("intentRules[%d]: at least one keyword is required", i)
		}
	}
	return nil
}

// RequestTimeout returns the timeout for embedding requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.Embedding.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.Embedding.TimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "minirag.log"
}

// ChunksFile returns the chunk table artifact path.
func (c Config) ChunksFile() string {
	if p := strings.TrimSpace(c.ChunksPath); p != "" {
		return p
	}
	return filepath.Join(c.DataDir, "chunks.jsonl")
}

// IndexFile returns the inverted index artifact path.
func (c Config) IndexFile() string {
	if p := strings.TrimSpace(c.IndexPath); p != "" {
		return p
	}
	return filepath.Join(c.DataDir, "index.json")
}

// CacheFile returns the query cache database path.
func (c Config) CacheFile() string {
	if p := strings.TrimSpace(c.CachePath); p != "" {
		return p
	}
	return filepath.Join(c.DataDir, "query_cache.db")
}
