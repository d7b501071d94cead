package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shlrec/internal/config"
	"shlrec/internal/errors"
)

func newTestLogger() *errors.Logger {
	logger, _ := errors.New("error")
	return logger
}

func newOllamaTestConfig(host string) *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Provider:   "ollama",
		Model:      "nomic-embed-text",
		Timeout:    5 * time.Second,
		OllamaHost: host,
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled: false,
		},
	}
}

func TestOllamaEmbedBatch(t *testing.T) {
	var requests []ollamaEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		requests = append(requests, req)
		// Return a vector keyed off the prompt length for determinism
		resp := ollamaEmbedResponse{Embedding: []float32{float32(len(req.Prompt)), 1, 2}}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("Failed to encode response: %v", err)
		}
	}))
	defer server.Close()

	embedder, err := NewOllamaEmbedder(newOllamaTestConfig(server.URL), newTestLogger())
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	vectors, err := embedder.EmbedBatch(context.Background(), []string{"ab", "abcd"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}

	if len(vectors) != 2 {
		t.Fatalf("Expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 2 || vectors[1][0] != 4 {
		t.Errorf("Vectors out of input order: %v", vectors)
	}
	if len(requests) != 2 {
		t.Errorf("Expected 2 upstream requests, got %d", len(requests))
	}
	for _, req := range requests {
		if req.Model != "nomic-embed-text" {
			t.Errorf("Unexpected model in request: %s", req.Model)
		}
	}
}

func TestOllamaEmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	embedder, err := NewOllamaEmbedder(newOllamaTestConfig(server.URL), newTestLogger())
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	_, err = embedder.Embed(context.Background(), "some text")
	if err == nil {
		t.Fatal("Expected error from failing server")
	}

	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Type != errors.ErrorTypeEmbedding {
		t.Errorf("Expected embedding error type, got %s", appErr.Type)
	}
}

func TestOllamaEmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{}})
	}))
	defer server.Close()

	embedder, err := NewOllamaEmbedder(newOllamaTestConfig(server.URL), newTestLogger())
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	_, err = embedder.Embed(context.Background(), "text")
	if err == nil {
		t.Fatal("Expected error for empty embedding")
	}
}

func TestOllamaGetModelInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	embedder, err := NewOllamaEmbedder(newOllamaTestConfig(server.URL), newTestLogger())
	if err != nil {
		t.Fatalf("Failed to create embedder: %v", err)
	}

	info := embedder.GetModelInfo(context.Background())
	if !info.Available {
		t.Errorf("Expected model to be available, got error: %s", info.Error)
	}
	if info.Name != "nomic-embed-text" {
		t.Errorf("Unexpected model name: %s", info.Name)
	}
}
