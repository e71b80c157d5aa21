// Package ann implements the three interchangeable approximate-nearest-
// neighbor backends spec §4.4 defines over an IndexStore's primary matrix:
// Flat-IP (exact), Graph (HNSW-style), and Tree (angular random-projection
// forest). Each is optional; availability is advertised at runtime via
// Status, and the Search layer always re-ranks candidates exactly against
// the primary matrix before returning results to a caller.
package ann

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aman-oss/photoidx/internal/npy"
)

// Backend is implemented by each of Flat, Graph, and Tree.
type Backend interface {
	// Name identifies the backend for config/status reporting ("flat", "graph", "tree").
	Name() string

	// Build (re)indexes embeddings, replacing any prior contents.
	Build(ctx context.Context, embeddings *npy.Matrix, snapshot int64) error

	// Status reports whether a usable index is currently loaded.
	Status() Status

	// Search returns up to min(k, size) candidates ordered by descending
	// raw_score, where raw_score is the backend-native similarity (spec §4.4's
	// conversion rules apply per backend, not here — callers re-rank exactly).
	// Tree differs: it returns its whole candidate union unscored (RawScore
	// 0), ordered by row and not cut to k.
	Search(ctx context.Context, query []float32, k int) ([]Candidate, error)

	// Save persists the backend's index files under dir.
	Save(dir string) error

	// Load reads previously persisted index files from dir, if present.
	// A missing index is not an error; Status().Exists reports false.
	Load(dir string) error

	// Close releases any backend resources.
	Close() error
}

// Candidate is one ANN search result: a row into the primary matrix plus
// the backend-native similarity/score (not yet exact-re-ranked).
type Candidate struct {
	Row      int
	RawScore float32
}

// Status describes a backend's current readiness (spec §4.4).
type Status struct {
	Exists   bool
	Dim      int
	Size     int
	Snapshot int64
	Params   map[string]any
}

// sidecar is the persisted metadata spec §4.4 requires alongside each
// backend's binary index: dimension, row count, and a snapshot counter used
// to detect staleness against the primary matrix (spec §4.4 Invalidation).
type sidecar struct {
	Dim      int            `json:"dim"`
	Size     int            `json:"size"`
	Snapshot int64          `json:"snapshot"`
	Params   map[string]any `json:"backend_params"`
}

func sidecarPath(dir, indexFile string) string {
	return filepath.Join(dir, indexFile+".meta.json")
}

func writeSidecar(dir, indexFile string, sc sidecar) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return err
	}
	path := sidecarPath(dir, indexFile)
	tmp, err := os.CreateTemp(dir, ".sidecar-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readSidecar(dir, indexFile string) (sidecar, bool, error) {
	data, err := os.ReadFile(sidecarPath(dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return sidecar{}, false, nil
		}
		return sidecar{}, false, err
	}
	var sc sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return sidecar{}, false, err
	}
	return sc, true, nil
}

// Stale reports whether a loaded backend's sidecar no longer matches the
// IndexStore's current snapshot counter (spec §4.4 Invalidation).
func (s Status) Stale(currentSnapshot int64) bool {
	return !s.Exists || s.Snapshot != currentSnapshot
}
