package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot holds precomputed catalog embeddings so the server can start
// without re-embedding an unchanged catalog.
type Snapshot struct {
	Model     string               `json:"model"`
	Dimension int                  `json:"dimension"`
	Documents map[string]string    `json:"documents"` // id -> embedded document text
	Vectors   map[string][]float32 `json:"vectors"`   // id -> embedding
}

// LoadSnapshot reads a snapshot file. A missing file is not an error and
// returns (nil, nil).
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}

	if snap.Vectors == nil {
		snap.Vectors = map[string][]float32{}
	}
	if snap.Documents == nil {
		snap.Documents = map[string]string{}
	}
	return &snap, nil
}

// SaveSnapshot writes a snapshot file, creating the parent directory if needed
func SaveSnapshot(path string, snap *Snapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create snapshot directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	return nil
}

// Vector returns the cached vector for id when the snapshot was produced by
// the same model for the same document text.
func (s *Snapshot) Vector(model, id, document string) ([]float32, bool) {
	if s == nil || s.Model != model {
		return nil, false
	}
	if doc, ok := s.Documents[id]; !ok || doc != document {
		return nil, false
	}
	vector, ok := s.Vectors[id]
	return vector, ok
}
