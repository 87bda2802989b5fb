package rag

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwiater/minirag/internal/appconfig"
)

func TestInertEmbedderReturnsZeroVector(t *testing.T) {
	vec, err := InertEmbedder{}.Embed(context.Background(), "herhangi bir metin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 384 {
		t.Fatalf("expected 384 dims, got %d", len(vec))
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector")
		}
	}
	if s := CosineSimilarity(vec, vec); s != 0 {
		t.Fatalf("cosine against zero vector should be 0, got %v", s)
	}
}

func TestHashingEmbedderDeterministicAndNormalized(t *testing.T) {
	e := HashingEmbedder{Dim: 64}
	a, _ := e.Embed(context.Background(), "Çift anadal başvurusu")
	b, _ := e.Embed(context.Background(), "çift ANADAL başvurusu")
	if CosineSimilarity(a, b) < 0.999 {
		t.Fatalf("folded texts should embed identically")
	}
	if n := vectorNorm(a); math.Abs(n-1) > 1e-9 {
		t.Fatalf("expected unit norm, got %v", n)
	}
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	if s := CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}); s != 0 {
		t.Fatalf("mismatched lengths should score 0, got %v", s)
	}
	if s := CosineSimilarity([]float64{1, 0}, []float64{1, 0}); math.Abs(s-1) > 1e-9 {
		t.Fatalf("identical vectors should score 1, got %v", s)
	}
	if s := CosineSimilarity([]float64{1, 0}, []float64{0, 1}); s != 0 {
		t.Fatalf("orthogonal vectors should score 0, got %v", s)
	}
}

func TestOllamaEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "all-minilm" || req["prompt"] != "merhaba" {
			t.Errorf("unexpected request %#v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL+"/", "all-minilm", 3, time.Second)
	vec, err := e.Embed(context.Background(), "merhaba")
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Fatalf("unexpected vector %#v", vec)
	}
}

func TestOllamaEmbedderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("case") {
		default:
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	e := NewOllamaEmbedder(server.URL, "all-minilm", 3, time.Second)
	if _, err := e.Embed(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected status error, got %v", err)
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer empty.Close()
	if _, err := NewOllamaEmbedder(empty.URL, "all-minilm", 0, time.Second).Embed(context.Background(), "x"); err == nil {
		t.Fatalf("expected empty vector error")
	}

	if _, err := NewOllamaEmbedder(empty.URL, "", 0, time.Second).Embed(context.Background(), "x"); err == nil {
		t.Fatalf("expected missing model error")
	}
}

func TestNewEmbedderFromConfig(t *testing.T) {
	cfg := appconfig.Default()
	cases := map[string]string{
		appconfig.EmbeddingNone:    "none",
		appconfig.EmbeddingHashing: "hashing",
		appconfig.EmbeddingOllama:  "ollama:all-minilm",
	}
	for provider, want := range cases {
		cfg.Embedding.Provider = provider
		cfg.Embedding.Model = "all-minilm"
		e, err := NewEmbedder(&cfg)
		if err != nil {
			t.Fatalf("NewEmbedder(%s) error: %v", provider, err)
		}
		if e.Name() != want {
			t.Fatalf("NewEmbedder(%s) name = %s, want %s", provider, e.Name(), want)
		}
	}
	cfg.Embedding.Provider = "openai"
	if _, err := NewEmbedder(&cfg); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}
