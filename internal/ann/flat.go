package ann

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aman-oss/photoidx/internal/npy"
)

const flatIndexFile = "flat.index"

// Flat is the exact dense backend: Search computes the inner product
// against every stored row. Since both the index and queries carry
// L2-normalized vectors, raw_score is already cosine similarity — no
// conversion is needed before Search & Fusion's exact re-rank (which is a
// no-op for this backend, but kept uniform with Graph/Tree).
type Flat struct {
	mu       sync.RWMutex
	matrix   *npy.Matrix
	snapshot int64
	loaded   bool
}

// NewFlat constructs an empty Flat backend.
func NewFlat() *Flat {
	return &Flat{}
}

func (f *Flat) Name() string { return "flat" }

func (f *Flat) Build(_ context.Context, embeddings *npy.Matrix, snapshot int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cloned := npy.NewMatrix(embeddings.Rows, embeddings.Cols)
	copy(cloned.Data, embeddings.Data)
	f.matrix = cloned
	f.snapshot = snapshot
	f.loaded = true
	return nil
}

func (f *Flat) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.loaded {
		return Status{}
	}
	return Status{
		Exists:   true,
		Dim:      f.matrix.Cols,
		Size:     f.matrix.Rows,
		Snapshot: f.snapshot,
		Params:   map[string]any{},
	}
}

func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Candidate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.loaded || f.matrix.Rows == 0 || k <= 0 {
		return nil, nil
	}

	candidates := make([]Candidate, f.matrix.Rows)
	for row := 0; row < f.matrix.Rows; row++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		candidates[row] = Candidate{Row: row, RawScore: dot(query, f.matrix.Row(row))}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].RawScore > candidates[j].RawScore })
	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

func dot(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func (f *Flat) Save(dir string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.loaded {
		return nil
	}
	if err := npy.Write(filepath.Join(dir, flatIndexFile), f.matrix); err != nil {
		return err
	}
	return writeSidecar(dir, flatIndexFile, sidecar{
		Dim:      f.matrix.Cols,
		Size:     f.matrix.Rows,
		Snapshot: f.snapshot,
		Params:   map[string]any{},
	})
}

func (f *Flat) Load(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sc, ok, err := readSidecar(dir, flatIndexFile)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if _, statErr := os.Stat(filepath.Join(dir, flatIndexFile)); statErr != nil {
		return nil
	}

	matrix, err := npy.Read(filepath.Join(dir, flatIndexFile))
	if err != nil {
		return err
	}
	f.matrix = matrix
	f.snapshot = sc.Snapshot
	f.loaded = true
	return nil
}

func (f *Flat) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matrix = nil
	f.loaded = false
	return nil
}

var _ Backend = (*Flat)(nil)
