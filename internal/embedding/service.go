package embedding

import (
	"context"
	"fmt"

	"shlrec/internal/config"
	"shlrec/internal/errors"
)

// Service handles text embedding for recommendation lookups
type Service struct {
	Provider Embedder // Exported for access from server package
	config   *config.EmbeddingConfig
	logger   *errors.Logger
}

// NewService creates a new embedding service instance from configuration
func NewService(cfg *config.EmbeddingConfig, logger *errors.Logger) (*Service, error) {
	var provider Embedder
	var err error

	logger.Debug("Initializing embedding service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries)

	switch cfg.Provider {
	case "gemini":
		provider, err = NewGeminiEmbedder(cfg, logger)
	case "ollama":
		provider, err = NewOllamaEmbedder(cfg, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported embedding provider: %s", cfg.Provider), nil)
	}

	if err != nil {
		return nil, errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed,
			"Failed to create embedding provider", err)
	}

	return &Service{
		Provider: provider,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Embed returns the embedding vector for a single text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.Provider.Embed(ctx, text)
}

// EmbedBatch returns embedding vectors for a batch of texts, in input order
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return s.Provider.EmbedBatch(ctx, texts)
}

// GetModelInfo returns information about the embedding model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Close releases provider resources
func (s *Service) Close() error {
	return s.Provider.Close()
}
