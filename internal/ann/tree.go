package ann

import (
	"context"
	"encoding/gob"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aman-oss/photoidx/internal/npy"
)

const (
	treeIndexFile     = "tree.index"
	defaultTreeCount  = 10
	treeLeafSize      = 16
	treeSearchFanOut  = 2 // |margin| below which both children of a split are explored
)

// treeNode is one node of a random-projection binary tree (Annoy-style).
// Leaves carry row indices directly; internal nodes carry a splitting
// hyperplane (normal + offset) separating their two children.
type treeNode struct {
	Leaf     bool
	Rows     []int
	Normal   []float32
	Offset   float32
	Children [2]*treeNode
}

// Tree is the angular random-projection forest backend. It has no
// counterpart library in the available dependency set (no pack example
// vendors an Annoy/random-projection-forest implementation), so it is
// hand-rolled: build trees by recursively splitting the row set on a
// random hyperplane through two sampled points, then search by descending
// every tree from the root, exploring both children near the boundary, and
// taking the union of visited leaves as the candidate set.
type Tree struct {
	mu       sync.RWMutex
	trees    []*treeNode
	count    int
	dim      int
	size     int
	snapshot int64
	loaded   bool
	rng      *rand.Rand
}

// NewTree constructs a Tree backend that builds `count` trees (0 or
// negative uses defaultTreeCount).
func NewTree(count int) *Tree {
	if count <= 0 {
		count = defaultTreeCount
	}
	return &Tree{count: count, rng: rand.New(rand.NewSource(1))}
}

func (t *Tree) Name() string { return "tree" }

func (t *Tree) Build(ctx context.Context, embeddings *npy.Matrix, snapshot int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]int, embeddings.Rows)
	for i := range rows {
		rows[i] = i
	}

	trees := make([]*treeNode, t.count)
	for i := 0; i < t.count; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		trees[i] = t.buildNode(embeddings, rows)
	}

	t.trees = trees
	t.dim = embeddings.Cols
	t.size = embeddings.Rows
	t.snapshot = snapshot
	t.loaded = true
	return nil
}

func (t *Tree) buildNode(m *npy.Matrix, rows []int) *treeNode {
	if len(rows) <= treeLeafSize {
		leaf := make([]int, len(rows))
		copy(leaf, rows)
		return &treeNode{Leaf: true, Rows: leaf}
	}

	a := rows[t.rng.Intn(len(rows))]
	b := rows[t.rng.Intn(len(rows))]
	for b == a && len(rows) > 1 {
		b = rows[t.rng.Intn(len(rows))]
	}

	normal := make([]float32, m.Cols)
	midpoint := make([]float32, m.Cols)
	va, vb := m.Row(a), m.Row(b)
	for i := range normal {
		normal[i] = va[i] - vb[i]
		midpoint[i] = (va[i] + vb[i]) / 2
	}
	var offset float32
	for i := range normal {
		offset += normal[i] * midpoint[i]
	}

	var left, right []int
	for _, row := range rows {
		if side(normal, offset, m.Row(row)) {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	// Degenerate split (all points on one side, e.g. duplicate vectors):
	// fall back to a leaf rather than recursing forever.
	if len(left) == 0 || len(right) == 0 {
		leaf := make([]int, len(rows))
		copy(leaf, rows)
		return &treeNode{Leaf: true, Rows: leaf}
	}

	return &treeNode{
		Normal:   normal,
		Offset:   offset,
		Children: [2]*treeNode{t.buildNode(m, left), t.buildNode(m, right)},
	}
}

func side(normal []float32, offset float32, v []float32) bool {
	var sum float32
	for i := range normal {
		sum += normal[i] * v[i]
	}
	return sum-offset >= 0
}

func (t *Tree) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.loaded {
		return Status{}
	}
	return Status{
		Exists:   true,
		Dim:      t.dim,
		Size:     t.size,
		Snapshot: t.snapshot,
		Params:   map[string]any{"trees": t.count},
	}
}

// Search descends every tree, collecting the rows of every leaf it reaches
// (both children of a split where |margin| < treeSearchFanOut), and returns
// that union ordered by row. It does not score the candidates (RawScore is
// 0) and does not cut the result to k; k <= 0 returns nil.
func (t *Tree) Search(ctx context.Context, query []float32, k int) ([]Candidate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.loaded || t.size == 0 || k <= 0 {
		return nil, nil
	}

	seen := make(map[int]bool)
	for _, root := range t.trees {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		collectLeaves(root, query, seen)
	}

	// The tree backend stores split hyperplanes, not the source vectors, so
	// it cannot itself compute an exact raw_score per candidate; Search &
	// Fusion always re-ranks candidates exactly against the primary matrix
	// (spec §4.4), so RawScore is left zero here and the full candidate
	// union is returned uncut — the caller applies the top-k cut after
	// re-ranking, which is where k is actually enforced.
	candidates := make([]Candidate, 0, len(seen))
	for row := range seen {
		candidates = append(candidates, Candidate{Row: row})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Row < candidates[j].Row })
	return candidates, nil
}

func collectLeaves(node *treeNode, query []float32, seen map[int]bool) {
	if node == nil {
		return
	}
	if node.Leaf {
		for _, row := range node.Rows {
			seen[row] = true
		}
		return
	}

	var proj float32
	for i := range node.Normal {
		proj += node.Normal[i] * query[i]
	}
	margin := proj - node.Offset

	primary, secondary := node.Children[1], node.Children[0]
	if margin >= 0 {
		primary, secondary = node.Children[0], node.Children[1]
	}
	collectLeaves(primary, query, seen)

	// Explore the far side too when the query sits near the boundary, so a
	// point just across a random hyperplane is not permanently lost.
	if math.Abs(float64(margin)) < treeSearchFanOut {
		collectLeaves(secondary, query, seen)
	}
}

type treeSnapshot struct {
	Trees    []*treeNode
	Dim      int
	Size     int
	Snapshot int64
	Count    int
}

func (t *Tree) Save(dir string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.loaded {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, treeIndexFile)
	tmp, err := os.CreateTemp(dir, ".tree-*.tmp")
	if err != nil {
		return err
	}
	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(treeSnapshot{Trees: t.trees, Dim: t.dim, Size: t.size, Snapshot: t.snapshot, Count: t.count}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return writeSidecar(dir, treeIndexFile, sidecar{
		Dim: t.dim, Size: t.size, Snapshot: t.snapshot,
		Params: map[string]any{"trees": t.count},
	})
}

func (t *Tree) Load(dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sc, ok, err := readSidecar(dir, treeIndexFile)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	file, err := os.Open(filepath.Join(dir, treeIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var snap treeSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return err
	}

	t.trees = snap.Trees
	t.dim = sc.Dim
	t.size = sc.Size
	t.snapshot = sc.Snapshot
	t.count = snap.Count
	t.loaded = true
	return nil
}

func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trees = nil
	t.loaded = false
	return nil
}

var _ Backend = (*Tree)(nil)
