package index

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Entry is a single vector keyed by its catalog identifier
type Entry struct {
	ID     string
	Vector []float32
}

// Match is a search result with its cosine similarity score
type Match struct {
	ID    string
	Score float64
}

// Index is an in-memory brute-force cosine similarity index.
// Rebuild swaps the whole entry set atomically, so searches during a
// catalog reload see either the old or the new index, never a mix.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries []Entry
}

// New creates an empty index
func New() *Index {
	return &Index{}
}

// Rebuild replaces the index contents. All vectors must share one dimension.
func (ix *Index) Rebuild(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("cannot build index from zero entries")
	}

	dim := len(entries[0].Vector)
	if dim == 0 {
		return fmt.Errorf("entry %q has an empty vector", entries[0].ID)
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if len(e.Vector) != dim {
			return fmt.Errorf("entry %q has dimension %d, expected %d", e.ID, len(e.Vector), dim)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("duplicate entry id %q", e.ID)
		}
		seen[e.ID] = struct{}{}
	}

	copied := make([]Entry, len(entries))
	copy(copied, entries)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.dim = dim
	ix.entries = copied
	return nil
}

// Len returns the number of indexed entries
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dimension returns the vector dimension, or 0 for an empty index
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Search returns up to k entries ranked by cosine similarity to the query,
// best match first. Ties are broken by id so results are deterministic.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return nil, fmt.Errorf("index is empty")
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), ix.dim)
	}

	matches := make([]Match, 0, len(ix.entries))
	for _, e := range ix.entries {
		matches = append(matches, Match{
			ID:    e.ID,
			Score: CosineSimilarity(query, e.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
