package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/minirag/internal/logging"
)

// Embedder maps text to a fixed-size vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Dimension() int
	Name() string
}

// InertEmbedder returns zero vectors. With it every cosine score is zero and
// the cosine reranker degrades to the retriever's order.
type InertEmbedder struct {
	Dim int
}

func (e InertEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return make([]float64, e.Dimension()), nil
}

func (e InertEmbedder) Dimension() int {
	if e.Dim <= 0 {
		return 384
	}
	return e.Dim
}

func (InertEmbedder) Name() string { return "none" }

// HashingEmbedder projects folded tokens into a fixed number of buckets with
// FNV-1a and L2-normalizes the result. It needs no model and no network.
type HashingEmbedder struct {
	Dim int
}

func (e HashingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	dim := e.Dimension()
	vec := make([]float64, dim)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		idx := int(sum % uint32(dim))
		if sum&(1<<31) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	normalize(vec)
	return vec, nil
}

func (e HashingEmbedder) Dimension() int {
	if e.Dim <= 0 {
		return 384
	}
	return e.Dim
}

func (HashingEmbedder) Name() string { return "hashing" }

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// OllamaEmbedder requests vectors from an Ollama-compatible /api/embeddings
// endpoint.
type OllamaEmbedder struct {
	BaseURL string
	Model   string
	Dim     int
	Timeout time.Duration
	Client  *http.Client
}

// NewOllamaEmbedder returns an embedder for the given server and model.
func NewOllamaEmbedder(baseURL, model string, dim int, timeout time.Duration) *OllamaEmbedder {
	return &OllamaEmbedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Dim:     dim,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Embed requests an embedding vector from the configured embedding model.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(e.Model) == "" {
		return nil, fmt.Errorf("embedding model is empty")
	}
	payload := map[string]any{
		"model":  e.Model,
		"prompt": text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	endpoint := e.BaseURL + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if logging.DebugEnabled() {
		logging.LogRequest("out", endpoint, e.Model, map[string]any{"chars": len(text)})
	}

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("embedding response returned empty vector")
	}
	if e.Dim > 0 && len(parsed.Embedding) != e.Dim {
		return nil, fmt.Errorf("embedding dimension %d does not match configured %d", len(parsed.Embedding), e.Dim)
	}

	return parsed.Embedding, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.Dim }

func (e *OllamaEmbedder) Name() string { return "ollama:" + e.Model }

// CosineSimilarity returns the cosine of the angle between a and b. Vectors
// of different length or with zero magnitude score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	normA := vectorNorm(a)
	normB := vectorNorm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (normA * normB)
}

func vectorNorm(v []float64) float64 {
	sum := 0.0
	for _, val := range v {
		sum += val * val
	}
	return math.Sqrt(sum)
}

func normalize(v []float64) {
	n := vectorNorm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}
