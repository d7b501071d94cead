package index

import (
	"math"
	"path/filepath"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1.0,
		},
		{
			name:     "zero vector",
			a:        []float32{0, 0},
			b:        []float32{1, 1},
			expected: 0.0,
		},
		{
			name:     "mismatched dimensions",
			a:        []float32{1, 2},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestCosineSimilarityScaleInvariance(t *testing.T) {
	a := []float32{0.5, 1.5, -2.0}
	scaled := []float32{1.5, 4.5, -6.0}

	got := CosineSimilarity(a, scaled)
	if math.Abs(got-1.0) > 1e-6 {
		t.Errorf("Expected similarity 1.0 for scaled vector, got %v", got)
	}
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	ix := New()
	err := ix.Rebuild([]Entry{
		{ID: "a", Vector: []float32{1, 0, 0}},
		{ID: "b", Vector: []float32{0.9, 0.1, 0}},
		{ID: "c", Vector: []float32{0, 1, 0}},
		{ID: "d", Vector: []float32{0, 0, 1}},
	})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	return ix
}

func TestSearchRanking(t *testing.T) {
	ix := buildTestIndex(t)

	matches, err := ix.Search([]float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(matches) != 3 {
		t.Fatalf("Expected 3 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" {
		t.Errorf("Expected best match 'a', got '%s'", matches[0].ID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("Scores not in non-increasing order: %v", matches)
		}
	}
}

func TestSearchCapsAtK(t *testing.T) {
	ix := buildTestIndex(t)

	matches, err := ix.Search([]float32{1, 1, 1}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("Expected 2 matches, got %d", len(matches))
	}

	// k larger than the index is fine
	matches, err = ix.Search([]float32{1, 1, 1}, 100)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 4 {
		t.Errorf("Expected all 4 matches, got %d", len(matches))
	}
}

func TestSearchDeterminism(t *testing.T) {
	ix := buildTestIndex(t)
	query := []float32{0.7, 0.2, 0.1}

	first, err := ix.Search(query, 4)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	for range 10 {
		again, err := ix.Search(query, 4)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		for i := range first {
			if again[i] != first[i] {
				t.Fatalf("Search not deterministic: %v vs %v", first, again)
			}
		}
	}
}

func TestSearchTieBreakByID(t *testing.T) {
	ix := New()
	err := ix.Rebuild([]Entry{
		{ID: "z", Vector: []float32{1, 0}},
		{ID: "a", Vector: []float32{1, 0}},
		{ID: "m", Vector: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	matches, err := ix.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	expected := []string{"a", "m", "z"}
	for i, id := range expected {
		if matches[i].ID != id {
			t.Errorf("Expected tie-broken order %v, got %v", expected, matches)
			break
		}
	}
}

func TestRebuildValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{
			name:    "empty entries",
			entries: nil,
		},
		{
			name: "mismatched dimensions",
			entries: []Entry{
				{ID: "a", Vector: []float32{1, 2}},
				{ID: "b", Vector: []float32{1, 2, 3}},
			},
		},
		{
			name: "duplicate ids",
			entries: []Entry{
				{ID: "a", Vector: []float32{1, 2}},
				{ID: "a", Vector: []float32{3, 4}},
			},
		},
		{
			name: "empty vector",
			entries: []Entry{
				{ID: "a", Vector: []float32{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := New()
			if err := ix.Rebuild(tt.entries); err == nil {
				t.Error("Expected Rebuild to fail")
			}
		})
	}
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	ix := buildTestIndex(t)

	if _, err := ix.Search([]float32{1, 0}, 3); err == nil {
		t.Error("Expected error for query with wrong dimension")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "embeddings.json")

	snap := &Snapshot{
		Model:     "text-embedding-004",
		Dimension: 3,
		Documents: map[string]string{"a": "doc a"},
		Vectors:   map[string][]float32{"a": {1, 2, 3}},
	}
	if err := SaveSnapshot(path, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected snapshot, got nil")
	}

	vector, ok := loaded.Vector("text-embedding-004", "a", "doc a")
	if !ok {
		t.Fatal("Expected cached vector for matching model and document")
	}
	if len(vector) != 3 || vector[0] != 1 {
		t.Errorf("Unexpected vector: %v", vector)
	}

	// Model mismatch invalidates the cache
	if _, ok := loaded.Vector("other-model", "a", "doc a"); ok {
		t.Error("Vector should not match a different model")
	}
	// Document change invalidates the cache
	if _, ok := loaded.Vector("text-embedding-004", "a", "doc a v2"); ok {
		t.Error("Vector should not match a changed document")
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	snap, err := LoadSnapshot(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Missing snapshot should not be an error, got: %v", err)
	}
	if snap != nil {
		t.Error("Expected nil snapshot for missing file")
	}
}
