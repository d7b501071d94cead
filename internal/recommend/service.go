package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"shlrec/internal/catalog"
	"shlrec/internal/config"
	"shlrec/internal/errors"
	"shlrec/internal/index"
	"shlrec/internal/types"
)

// Embedder is the subset of the embedding service the recommender needs
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Service ranks catalog assessments against free-form query text
type Service struct {
	embedder Embedder
	model    string
	cfg      *config.Config
	logger   *errors.Logger

	mu      sync.RWMutex
	catalog *catalog.Catalog
	index   *index.Index

	lastReload time.Time
	reloads    int64
}

// Stats describes the current state of the recommender
type Stats struct {
	Ready       bool      `json:"ready"`
	CatalogSize int       `json:"catalogSize"`
	IndexSize   int       `json:"indexSize"`
	Dimension   int       `json:"dimension"`
	Model       string    `json:"model"`
	LastReload  time.Time `json:"lastReload,omitempty"`
	Reloads     int64     `json:"reloads"`
}

// NewService creates a recommendation service. Call LoadAndIndex before
// serving queries.
func NewService(embedder Embedder, model string, cfg *config.Config, logger *errors.Logger) *Service {
	return &Service{
		embedder: embedder,
		model:    model,
		cfg:      cfg,
		logger:   logger,
	}
}

// LoadAndIndex loads the assessment catalog, embeds its documents and builds
// the similarity index. Vectors from a previous run are reused when the model
// and document text are unchanged.
func (s *Service) LoadAndIndex(ctx context.Context) error {
	cat, err := catalog.Load(s.cfg.Catalog.DataFile)
	if err != nil {
		return err
	}

	snap, err := index.LoadSnapshot(s.cfg.Catalog.SnapshotFile)
	if err != nil {
		// A corrupt snapshot is recoverable, everything gets re-embedded
		s.logger.Warn("Ignoring unreadable embedding snapshot",
			"file", s.cfg.Catalog.SnapshotFile,
			"error", err.Error())
		snap = nil
	}

	assessments := cat.Assessments()
	documents := make(map[string]string, len(assessments))
	vectors := make(map[string][]float32, len(assessments))

	var missingIDs []string
	var missingDocs []string
	for _, a := range assessments {
		doc := catalog.DocumentText(a)
		documents[a.ID] = doc
		if vector, ok := snap.Vector(s.model, a.ID, doc); ok {
			vectors[a.ID] = vector
			continue
		}
		missingIDs = append(missingIDs, a.ID)
		missingDocs = append(missingDocs, doc)
	}

	if len(missingDocs) > 0 {
		s.logger.Info("Embedding catalog documents",
			"total", len(assessments),
			"cached", len(assessments)-len(missingDocs),
			"to_embed", len(missingDocs),
			"model", s.model)

		embedded, err := s.embedder.EmbedBatch(ctx, missingDocs)
		if err != nil {
			return err
		}
		if len(embedded) != len(missingIDs) {
			return errors.NewEmbeddingError(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("Expected %d embeddings, got %d", len(missingIDs), len(embedded)), nil)
		}
		for i, id := range missingIDs {
			vectors[id] = embedded[i]
		}
	}

	entries := make([]index.Entry, 0, len(assessments))
	for _, a := range assessments {
		entries = append(entries, index.Entry{ID: a.ID, Vector: vectors[a.ID]})
	}

	ix := index.New()
	if err := ix.Rebuild(entries); err != nil {
		return errors.NewInternalError(errors.ErrCodeCatalogUnavailable,
			"Failed to build similarity index", err)
	}

	if len(missingDocs) > 0 {
		newSnap := &index.Snapshot{
			Model:     s.model,
			Dimension: ix.Dimension(),
			Documents: documents,
			Vectors:   vectors,
		}
		if err := index.SaveSnapshot(s.cfg.Catalog.SnapshotFile, newSnap); err != nil {
			// Snapshot is an optimization, serving continues without it
			s.logger.Warn("Failed to save embedding snapshot",
				"file", s.cfg.Catalog.SnapshotFile,
				"error", err.Error())
		}
	}

	s.mu.Lock()
	s.catalog = cat
	s.index = ix
	s.lastReload = time.Now()
	s.reloads++
	s.mu.Unlock()

	s.logger.Info("Catalog indexed",
		"assessments", cat.Len(),
		"dimension", ix.Dimension(),
		"model", s.model)
	return nil
}

// Reload rebuilds the catalog and index, keeping the old state on failure
func (s *Service) Reload(ctx context.Context) error {
	if err := s.LoadAndIndex(ctx); err != nil {
		s.logger.LogError(err, "Catalog reload failed, keeping previous index")
		return err
	}
	return nil
}

// Recommend embeds the query text and returns the best-matching assessments,
// sorted by similarity score in descending order.
func (s *Service) Recommend(ctx context.Context, input types.RecommendInput) (*types.RecommendOutput, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Query text must not be empty", nil)
	}

	s.mu.RLock()
	cat := s.catalog
	ix := s.index
	s.mu.RUnlock()

	if cat == nil || ix == nil {
		return nil, errors.NewInternalError(errors.ErrCodeCatalogUnavailable,
			"Assessment catalog is not loaded", nil)
	}

	queryVector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Score the whole index, filters below may discard arbitrary prefixes
	matches, err := ix.Search(queryVector, ix.Len())
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeCatalogUnavailable,
			"Similarity search failed", err)
	}

	limit := input.MaxResults
	if limit <= 0 {
		limit = s.cfg.Recommend.TopK
	}
	// maxResults is client-supplied, cap it at the index size before allocating
	if limit > ix.Len() {
		limit = ix.Len()
	}

	recommendations := make([]types.Recommendation, 0, limit)
	for _, match := range matches {
		if match.Score < s.cfg.Recommend.MinScore {
			break
		}
		a, ok := cat.Get(match.ID)
		if !ok {
			continue
		}
		if !withinDuration(a.Duration, input.MaxDuration) {
			continue
		}
		recommendations = append(recommendations, types.Recommendation{
			ID:              a.ID,
			Name:            a.Name,
			URL:             a.URL,
			RemoteTesting:   a.RemoteTesting,
			AdaptiveSupport: a.AdaptiveSupport,
			Duration:        a.Duration,
			TestType:        a.TestType,
			Score:           match.Score,
		})
		if len(recommendations) == limit {
			break
		}
	}

	if len(recommendations) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeNoMatches,
			"No assessments matched the query", nil)
	}

	return &types.RecommendOutput{Recommendations: recommendations}, nil
}

// withinDuration applies the optional duration cap. Assessments with no
// parseable duration are kept, their length is unknown rather than too long.
func withinDuration(duration string, maxDuration int) bool {
	if maxDuration <= 0 {
		return true
	}
	minutes, ok := catalog.ParseDurationMinutes(duration)
	if !ok {
		return true
	}
	return minutes <= maxDuration
}

// Ready reports whether the service can answer queries
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog != nil && s.index != nil
}

// Stats returns a point-in-time view of the service state
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Ready:   s.catalog != nil && s.index != nil,
		Model:   s.model,
		Reloads: s.reloads,
	}
	if s.catalog != nil {
		stats.CatalogSize = s.catalog.Len()
	}
	if s.index != nil {
		stats.IndexSize = s.index.Len()
		stats.Dimension = s.index.Dimension()
	}
	if !s.lastReload.IsZero() {
		stats.LastReload = s.lastReload
	}
	return stats
}
