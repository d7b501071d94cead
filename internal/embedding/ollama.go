package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"shlrec/internal/config"
	shlrecErrors "shlrec/internal/errors"
)

// OllamaEmbedder implements Embedder against a local Ollama server
type OllamaEmbedder struct {
	host           string
	model          string
	httpClient     *http.Client
	circuitBreaker *EmbeddingCircuitBreaker
	logger         *shlrecErrors.Logger
}

// Ensure OllamaEmbedder implements Embedder
var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates a new Ollama embedding provider
func NewOllamaEmbedder(cfg *config.EmbeddingConfig, logger *shlrecErrors.Logger) (*OllamaEmbedder, error) {
	return &OllamaEmbedder{
		host:  strings.TrimRight(cfg.OllamaHost, "/"),
		model: cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewEmbeddingCircuitBreaker("ollama", cfg, logger),
		logger:         logger,
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for a single text
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns embedding vectors for a batch of texts, in input order.
// The Ollama embeddings endpoint is single-prompt, so the batch is issued
// sequentially behind one circuit breaker execution.
func (o *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := o.circuitBreaker.Execute(func() ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			vector, err := o.embedOne(ctx, text)
			if err != nil {
				return nil, err
			}
			out[i] = vector
		}
		return out, nil
	})
	if err != nil {
		return nil, shlrecErrors.NewEmbeddingError(shlrecErrors.ErrCodeEmbeddingFailed,
			"Failed to embed content", err)
	}
	return vectors, nil
}

func (o *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embedding request returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for model %s", o.model)
	}

	return result.Embedding, nil
}

// GetModelInfo checks whether the Ollama server is reachable
func (o *OllamaEmbedder) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      o.model,
		Available: false,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.host+"/api/tags", nil)
	if err != nil {
		modelInfo.Error = err.Error()
		return modelInfo
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Ollama server unreachable: %v", err)
		o.logger.Warn("Model availability check failed",
			"model", o.model,
			"provider", "ollama",
			"error", err.Error())
		return modelInfo
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	modelInfo.Available = resp.StatusCode == http.StatusOK
	if !modelInfo.Available {
		modelInfo.Error = fmt.Sprintf("Ollama server returned status %d", resp.StatusCode)
	}
	return modelInfo
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (o *OllamaEmbedder) GetCircuitBreakerStats() map[string]any {
	stats := map[string]any{
		"embedding_operations": o.circuitBreaker.GetStats(),
	}
	stats["overall_healthy"] = o.circuitBreaker.IsHealthy()
	return stats
}

// Close implements Embedder
func (o *OllamaEmbedder) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
