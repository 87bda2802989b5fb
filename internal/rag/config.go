package rag

import (
	"fmt"

	"github.com/mwiater/minirag/internal/appconfig"
)

// NewEmbedder builds the embedder selected by the configuration.
func NewEmbedder(cfg *appconfig.Config) (Embedder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	switch cfg.Embedding.Provider {
	case appconfig.EmbeddingNone:
		return InertEmbedder{Dim: cfg.Embedding.Dimension}, nil
	case appconfig.EmbeddingHashing, "":
		return HashingEmbedder{Dim: cfg.Embedding.Dimension}, nil
	case appconfig.EmbeddingOllama:
		return NewOllamaEmbedder(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.RequestTimeout()), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
}

// IntentRulesFromConfig converts configured rules, falling back to the
// built-in table when none are set.
func IntentRulesFromConfig(cfg *appconfig.Config) ([]IntentRule, error) {
	if cfg == nil || len(cfg.IntentRules) == 0 {
		return DefaultIntentRules(), nil
	}
	rules := make([]IntentRule, 0, len(cfg.IntentRules))
	for i, r := range cfg.IntentRules {
		intent, err := ParseIntent(r.Intent)
		if err != nil {
			return nil, fmt.Errorf("intentRules[%d]: %w", i, err)
		}
		rules = append(rules, IntentRule{Intent: intent, Keywords: r.Keywords})
	}
	return rules, nil
}
