// Package phash implements the perceptual-hash look-alike index
// (spec §4.5.4): a 64-bit hash per path, cached, with union-find grouping
// of paths within a Hamming-distance threshold.
package phash

import (
	"encoding/json"
	"image"
	"math/bits"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/aman-oss/photoidx/internal/embed"
	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

const (
	hashFileName  = "phash.json"
	resolvedName  = "dupes_resolved.json"
)

// Hasher is the external perceptual-hashing capability.
type Hasher func(path string) (uint64, error)

// DefaultHasher computes a difference hash (dHash): downscale to a 9x8
// grayscale grid and set one bit per adjacent horizontal pixel pair that
// increases in brightness, giving a 64-bit fingerprint that is stable
// under resizing, re-encoding, and minor color correction (spec §4.5.4).
// It reuses embed.DecodeImage so the hasher and the CLIP preprocessor
// accept exactly the same image formats.
func DefaultHasher(path string) (uint64, error) {
	img, err := embed.DecodeImage(path)
	if err != nil {
		return 0, err
	}
	gray := downscaleGray(img, 9, 8)

	var hash uint64
	bit := uint(0)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if gray[y][x] < gray[y][x+1] {
				hash |= 1 << bit
			}
			bit++
		}
	}
	return hash, nil
}

// downscaleGray nearest-neighbor-samples img to a w x h grid of luma
// values. dHash only compares relative brightness between adjacent
// samples, so a cheap sampling resize is sufficient.
func downscaleGray(img image.Image, w, h int) [][]float64 {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	grid := make([][]float64, h)
	for y := range grid {
		grid[y] = make([]float64, w)
	}
	if srcW == 0 || srcH == 0 {
		return grid
	}
	for y := 0; y < h; y++ {
		sy := bounds.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			sx := bounds.Min.X + x*srcW/w
			r, g, b, _ := img.At(sx, sy).RGBA()
			grid[y][x] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		}
	}
	return grid
}

// Index caches a 64-bit perceptual hash per path and the set of group ids
// the user has acknowledged ("resolved").
type Index struct {
	dir      string
	hashes   map[string]uint64
	resolved map[string]bool
}

// Open loads the phash cache for a store directory.
func Open(dir string) (*Index, error) {
	idx := &Index{dir: dir, hashes: map[string]uint64{}, resolved: map[string]bool{}}

	if raw, err := os.ReadFile(filepath.Join(dir, hashFileName)); err == nil {
		var asHex map[string]string
		if err := json.Unmarshal(raw, &asHex); err == nil {
			for p, hexStr := range asHex {
				if v, err := strconv.ParseUint(hexStr, 16, 64); err == nil {
					idx.hashes[p] = v
				}
			}
		}
	}

	if raw, err := os.ReadFile(filepath.Join(dir, resolvedName)); err == nil {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err == nil {
			for _, id := range ids {
				idx.resolved[id] = true
			}
		}
	}
	return idx, nil
}

// Build computes a hash for every path missing from the cache. Returns the
// updated-count.
func (idx *Index) Build(paths []string, hash Hasher) (int, error) {
	updated := 0
	for _, p := range paths {
		if _, ok := idx.hashes[p]; ok {
			continue
		}
		h, err := hash(p)
		if err != nil {
			continue
		}
		idx.hashes[p] = h
		updated++
	}
	return updated, idx.persistHashes()
}

// Remove drops cached hashes for paths no longer present.
func (idx *Index) Remove(present map[string]bool) error {
	for p := range idx.hashes {
		if !present[p] {
			delete(idx.hashes, p)
		}
	}
	return idx.persistHashes()
}

// FindLookalikes groups cached paths whose pairwise Hamming distance is at
// most maxHammingDistance, using union-find over all pairs. Groups of size
// 1 are dropped. Each group is sorted for determinism.
func (idx *Index) FindLookalikes(maxHammingDistance int) [][]string {
	paths := make([]string, 0, len(idx.hashes))
	for p := range idx.hashes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	uf := newUnionFind(len(paths))
	for i := 0; i < len(paths); i++ {
		for j := i + 1; j < len(paths); j++ {
			if hamming(idx.hashes[paths[i]], idx.hashes[paths[j]]) <= maxHammingDistance {
				uf.union(i, j)
			}
		}
	}

	groups := map[int][]string{}
	for i, p := range paths {
		root := uf.find(i)
		groups[root] = append(groups[root], p)
	}

	var result [][]string
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		sort.Strings(g)
		result = append(result, g)
	}
	sort.Slice(result, func(i, j int) bool { return result[i][0] < result[j][0] })
	return result
}

// GroupID is a deterministic id for a sorted path list: the group's own
// first path, joined with the count, which is stable across rebuilds as
// long as membership doesn't change (spec §4.5.4).
func GroupID(sortedPaths []string) string {
	if len(sortedPaths) == 0 {
		return ""
	}
	return sortedPaths[0] + "#" + strconv.Itoa(len(sortedPaths))
}

// Resolve records groupID as acknowledged by the user.
func (idx *Index) Resolve(groupID string) error {
	idx.resolved[groupID] = true
	return idx.persistResolved()
}

// IsResolved reports whether groupID has been acknowledged.
func (idx *Index) IsResolved(groupID string) bool { return idx.resolved[groupID] }

func hamming(a, b uint64) int { return bits.OnesCount64(a ^ b) }

func (idx *Index) persistHashes() error {
	asHex := make(map[string]string, len(idx.hashes))
	for p, h := range idx.hashes {
		asHex[p] = strconv.FormatUint(h, 16)
	}
	data, err := json.MarshalIndent(asHex, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(idx.dir, hashFileName), data)
}

func (idx *Index) persistResolved() error {
	ids := make([]string, 0, len(idx.resolved))
	for id := range idx.resolved {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(idx.dir, resolvedName), data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return photoerrors.IOError("write "+filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

type unionFind struct{ parent, rank []int }

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	if uf.parent[x] != x {
		uf.parent[x] = uf.find(uf.parent[x])
	}
	return uf.parent[x]
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}
