package ann

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/aman-oss/photoidx/internal/npy"
)

const (
	graphIndexFile      = "graph.index"
	defaultGraphM       = 32
	defaultEfConstruct  = 128
	defaultGraphEfSearch = 64
)

// GraphTuning holds the HNSW build/query parameters spec §4.4 names for the
// Graph backend (configured via internal/config's ANNTuningConfig).
type GraphTuning struct {
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultGraphTuning matches internal/config's defaults.
func DefaultGraphTuning() GraphTuning {
	return GraphTuning{M: defaultGraphM, EfConstruction: defaultEfConstruct, EfSearch: defaultGraphEfSearch}
}

// Graph is the HNSW-style backend, built on github.com/coder/hnsw (a pure
// Go implementation, avoiding a CGO dependency for the index used on every
// search path). Rows are keyed directly by their primary-matrix row index.
type Graph struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[uint64]
	tuning   GraphTuning
	dim      int
	size     int
	snapshot int64
	loaded   bool
}

// NewGraph constructs a Graph backend with the given tuning (zero value
// uses DefaultGraphTuning).
func NewGraph(tuning GraphTuning) *Graph {
	if tuning.M == 0 {
		tuning.M = defaultGraphM
	}
	if tuning.EfConstruction == 0 {
		tuning.EfConstruction = defaultEfConstruct
	}
	if tuning.EfSearch == 0 {
		tuning.EfSearch = defaultGraphEfSearch
	}
	return &Graph{tuning: tuning}
}

func (g *Graph) Name() string { return "graph" }

func newHNSWGraph(tuning GraphTuning) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = tuning.M
	graph.EfSearch = tuning.EfSearch
	graph.Ml = 0.25
	return graph
}

// Build replaces the graph wholesale. coder/hnsw has no bulk-load API, so
// rows are inserted one at a time in row order, which also fixes the key
// assignment used by Search (key == row).
func (g *Graph) Build(ctx context.Context, embeddings *npy.Matrix, snapshot int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	graph := newHNSWGraph(g.tuning)
	for row := 0; row < embeddings.Rows; row++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		vec := make([]float32, embeddings.Cols)
		copy(vec, embeddings.Row(row))
		graph.Add(hnsw.MakeNode(uint64(row), vec))
	}

	g.graph = graph
	g.dim = embeddings.Cols
	g.size = embeddings.Rows
	g.snapshot = snapshot
	g.loaded = true
	return nil
}

func (g *Graph) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.loaded {
		return Status{}
	}
	return Status{
		Exists:   true,
		Dim:      g.dim,
		Size:     g.size,
		Snapshot: g.snapshot,
		Params: map[string]any{
			"M":               g.tuning.M,
			"ef_construction": g.tuning.EfConstruction,
			"ef_search":       g.tuning.EfSearch,
		},
	}
}

// Search returns candidates with raw_score = 1 - cosine_distance, per spec
// §4.4's graph conversion rule.
func (g *Graph) Search(_ context.Context, query []float32, k int) ([]Candidate, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.loaded || g.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if k > g.size {
		k = g.size
	}

	nodes := g.graph.Search(query, k)
	candidates := make([]Candidate, 0, len(nodes))
	for _, node := range nodes {
		distance := g.graph.Distance(query, node.Value)
		candidates = append(candidates, Candidate{Row: int(node.Key), RawScore: 1 - distance})
	}
	return candidates, nil
}

func (g *Graph) Save(dir string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.loaded {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, graphIndexFile)
	tmp, err := os.CreateTemp(dir, ".graph-*.tmp")
	if err != nil {
		return err
	}
	if err := g.graph.Export(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("export graph: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return writeSidecar(dir, graphIndexFile, sidecar{
		Dim:      g.dim,
		Size:     g.size,
		Snapshot: g.snapshot,
		Params: map[string]any{
			"M":               g.tuning.M,
			"ef_construction": g.tuning.EfConstruction,
			"ef_search":       g.tuning.EfSearch,
		},
	})
}

func (g *Graph) Load(dir string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sc, ok, err := readSidecar(dir, graphIndexFile)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	file, err := os.Open(filepath.Join(dir, graphIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	graph := newHNSWGraph(g.tuning)
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	g.graph = graph
	g.dim = sc.Dim
	g.size = sc.Size
	g.snapshot = sc.Snapshot
	g.loaded = true
	return nil
}

func (g *Graph) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.graph = nil
	g.loaded = false
	return nil
}

var _ Backend = (*Graph)(nil)
