package embedding

import (
	"testing"
	"time"

	"shlrec/internal/config"
)

func TestCircuitBreakerStats(t *testing.T) {
	cfg := &config.EmbeddingConfig{
		Provider: "gemini",
		Model:    "text-embedding-004",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			MinRequests:      3,
			FailureThreshold: 0.6,
		},
	}

	cb := NewEmbeddingCircuitBreaker("gemini", cfg, nil)
	if cb == nil {
		t.Fatal("Circuit breaker should not be nil when enabled")
	}

	stats := cb.GetStats()

	name, ok := stats["name"].(string)
	if !ok {
		t.Fatal("Circuit breaker name not found")
	}
	expectedName := "Embedding-gemini"
	if name != expectedName {
		t.Errorf("Expected circuit breaker name '%s', got '%s'", expectedName, name)
	}

	// Verify it's in closed state initially
	state, ok := stats["state"].(string)
	if !ok {
		t.Fatal("Circuit breaker state not found")
	}
	if state != "closed" {
		t.Errorf("Expected initial state 'closed', got '%s'", state)
	}

	enabled, ok := stats["enabled"].(bool)
	if !ok {
		t.Fatal("Circuit breaker enabled status not found")
	}
	if !enabled {
		t.Error("Circuit breaker should be enabled")
	}

	if !cb.IsHealthy() {
		t.Error("Circuit breaker should be healthy initially")
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	disabledCfg := &config.EmbeddingConfig{
		Provider: "gemini",
		Model:    "text-embedding-004",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled: false, // Disabled
		},
	}

	cb := NewEmbeddingCircuitBreaker("gemini", disabledCfg, nil)

	// Should return nil when disabled
	if cb != nil {
		t.Fatal("Circuit breaker should be nil when disabled")
	}

	// A nil breaker still executes the wrapped function directly
	vectors, err := cb.Execute(func() ([][]float32, error) {
		return [][]float32{{1, 2, 3}}, nil
	})
	if err != nil {
		t.Fatalf("Execute on disabled breaker should pass through, got error: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 {
		t.Errorf("Unexpected passthrough result: %v", vectors)
	}

	stats := cb.GetStats()
	if enabled, _ := stats["enabled"].(bool); enabled {
		t.Error("Disabled breaker stats should report enabled=false")
	}

	if !cb.IsHealthy() {
		t.Error("Disabled breaker should be considered healthy")
	}
}

func TestCircuitBreakerIndependentInstances(t *testing.T) {
	cfg := &config.EmbeddingConfig{
		Provider: "gemini",
		Model:    "text-embedding-004",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			MinRequests:      3,
			FailureThreshold: 0.6,
		},
	}

	geminiCB := NewEmbeddingCircuitBreaker("gemini", cfg, nil)
	ollamaCB := NewEmbeddingCircuitBreaker("ollama", cfg, nil)

	if geminiCB == ollamaCB {
		t.Error("Providers should get independent circuit breaker instances")
	}

	geminiName, _ := geminiCB.GetStats()["name"].(string)
	ollamaName, _ := ollamaCB.GetStats()["name"].(string)
	if geminiName == ollamaName {
		t.Errorf("Breaker names should differ, both were '%s'", geminiName)
	}
}

func TestModelCircuitBreakerDisabled(t *testing.T) {
	disabledCfg := &config.EmbeddingConfig{
		Provider: "gemini",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled: false,
		},
	}

	cb := NewModelCircuitBreaker("gemini", disabledCfg, nil)
	if cb != nil {
		t.Fatal("Model circuit breaker should be nil when disabled")
	}
	if !cb.IsModelHealthy() {
		t.Error("Disabled model breaker should be considered healthy")
	}
}
