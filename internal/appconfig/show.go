package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		defaults := Default()
		cfg = &defaults
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Debug:             %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Corpus Path:       %s\n", cfg.CorpusPath)
	fmt.Fprintf(out, "  Chunks File:       %s\n", cfg.ChunksFile())
	fmt.Fprintf(out, "  Index File:        %s\n", cfg.IndexFile())
	fmt.Fprintf(out, "  Cache Enabled:     %v\n", cfg.CacheEnabled)
	if cfg.CacheEnabled {
		fmt.Fprintf(out, "  Cache File:        %s\n", cfg.CacheFile())
	}
	fmt.Fprintf(out, "  Trace Dir:         %s\n", cfg.TraceDir)
	fmt.Fprintf(out, "  Log File:          %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Reranker:          %s\n", cfg.Reranker)
	fmt.Fprintf(out, "  Workers:           %d\n", cfg.Workers)
	fmt.Fprintf(out, "  Top K:             %d\n", cfg.TopK)
	fmt.Fprintf(out, "  Chunk Max Chars:   %d\n", cfg.Chunking.MaxChars)
	fmt.Fprintf(out, "  Chunk Overlap:     %d\n", cfg.Chunking.OverlapChars)
	fmt.Fprintf(out, "  Allowed Extensions: %v\n", cfg.AllowedExtensions)
	fmt.Fprintf(out, "  Exclude Globs:     %v\n", cfg.ExcludeGlobs)
	fmt.Fprintf(out, "  Embedding:         %s (dim %d)\n", cfg.Embedding.Provider, cfg.Embedding.Dimension)
	if cfg.Embedding.Provider == EmbeddingOllama {
		fmt.Fprintf(out, "  Embedding URL:     %s\n", cfg.Embedding.URL)
		fmt.Fprintf(out, "  Embedding Model:   %s\n", cfg.Embedding.Model)
		fmt.Fprintf(out, "  Embedding Timeout: %s\n", cfg.RequestTimeout())
	}
	if len(cfg.IntentRules) == 0 {
		fmt.Fprintln(out, "  Intent Rules:      built-in")
		return
	}
	fmt.Fprintln(out, "  Intent Rules:")
	for _, rule := range cfg.IntentRules {
		fmt.Fprintf(out, "    %-13s %v\n", rule.Intent, rule.Keywords)
	}
}
