// Package store implements IndexStore (spec §4.3): the durable, single-
// writer-per-directory home for a photo index's primary embedding matrix,
// path list, and modification times, plus the incremental upsert protocol
// that reconciles it against a mutating filesystem.
package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aman-oss/photoidx/internal/embed"
	photoerrors "github.com/aman-oss/photoidx/internal/errors"
	"github.com/aman-oss/photoidx/internal/npy"
	"github.com/aman-oss/photoidx/internal/pipeline"
	"github.com/aman-oss/photoidx/internal/scanner"
)

const embeddingsFileName = "embeddings.npy"

// mtimeEpsilon is the tolerance above which a photo's mtime is considered
// to have changed since it was last embedded (spec §4.3).
const mtimeEpsilon = 1e-6

// Embedder is the embedding backend Upsert drives through the
// EmbeddingPipeline; any embed.Embedder implementation satisfies it.
type Embedder = embed.Embedder

// Photo is the scan input to Upsert: a path plus its filesystem mtime.
type Photo struct {
	Path  string
	MTime float64
}

// FromFileInfo converts scanner results into Upsert's Photo input.
func FromFileInfo(files []scanner.FileInfo) []Photo {
	photos := make([]Photo, len(files))
	for i, f := range files {
		photos[i] = Photo{Path: f.Path, MTime: f.MTimeSeconds()}
	}
	return photos
}

// Snapshot is a read-only view of the store's current contents (spec §4.3).
type Snapshot struct {
	Paths      []string
	MTimes     []float64
	Embeddings *npy.Matrix // nil if the store is empty
}

// Store is a single index directory's primary embedding store.
type Store struct {
	mu sync.RWMutex

	dir  string
	dim  int
	lock *WriterLock

	paths      []string
	mtimes     []float64
	embeddings *npy.Matrix // rows aligned with paths; nil when empty

	snapshotCounter int64
}

// Open creates dir if absent and loads any existing snapshot. If a loaded
// matrix's row count disagrees with the paths list, the store is treated as
// empty and a recovery event is logged (spec §4.3) rather than erroring.
func Open(dir string, dim int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, photoerrors.IOError("create store directory", err).WithDetail("dir", dir)
	}

	s := &Store{dir: dir, dim: dim, lock: NewWriterLock(dir)}

	pf, ok, err := readPathsFile(dir)
	if err != nil {
		return nil, photoerrors.IndexCorrupt("read paths.json", err)
	}
	if !ok {
		return s, nil
	}

	embeddingsPath := filepath.Join(dir, embeddingsFileName)
	if _, err := os.Stat(embeddingsPath); os.IsNotExist(err) {
		if len(pf.Paths) > 0 {
			slog.Warn("store recovery: paths.json present without embeddings.npy, treating as empty", slog.String("dir", dir))
		}
		return s, nil
	}

	matrix, err := npy.Read(embeddingsPath)
	if err != nil {
		slog.Warn("store recovery: embeddings.npy unreadable, treating as empty", slog.String("dir", dir), slog.String("error", err.Error()))
		return s, nil
	}

	if matrix.Rows != len(pf.Paths) || len(pf.Paths) != len(pf.MTimes) {
		slog.Warn("store recovery: matrix/paths shape mismatch, treating as empty",
			slog.String("dir", dir), slog.Int("matrix_rows", matrix.Rows), slog.Int("paths", len(pf.Paths)))
		return s, nil
	}

	s.paths = pf.Paths
	s.mtimes = pf.MTimes
	s.embeddings = matrix
	s.dim = matrix.Cols
	return s, nil
}

// Snapshot returns a read-only view of the current contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, len(s.paths))
	copy(paths, s.paths)
	mtimes := make([]float64, len(s.mtimes))
	copy(mtimes, s.mtimes)

	var embeddings *npy.Matrix
	if s.embeddings != nil {
		embeddings = npy.NewMatrix(s.embeddings.Rows, s.embeddings.Cols)
		copy(embeddings.Data, s.embeddings.Data)
	}

	return Snapshot{Paths: paths, MTimes: mtimes, Embeddings: embeddings}
}

// Dimensions returns the embedder dimension this store was opened with.
func (s *Store) Dimensions() int { return s.dim }

// SnapshotCounter returns the monotonically increasing counter bumped on
// every successful write, used by ANN backends to detect staleness.
func (s *Store) SnapshotCounter() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotCounter
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// Upsert reconciles photos against the stored paths: new photos are
// embedded and appended, modified photos (mtime advanced beyond tolerance)
// are re-embedded in place, and any stored path absent from photos is
// pruned. Returns counts of newly added and updated rows (spec §4.3).
func (s *Store) Upsert(ctx context.Context, embedder Embedder, photos []Photo, batchSize int, progress embed.ProgressFunc) (newCount, updatedCount int, err error) {
	if err := s.lock.Lock(); err != nil {
		return 0, 0, photoerrors.IOError("acquire writer lock", err)
	}
	defer s.lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	newCount, updatedCount, err = s.applyDiff(ctx, embedder, photos, batchSize, progress)
	if err != nil {
		return newCount, updatedCount, err
	}

	s.prune(photoPathSet(photos))

	if err := s.persist(); err != nil {
		return newCount, updatedCount, err
	}
	s.snapshotCounter++
	return newCount, updatedCount, nil
}

// UpsertPaths behaves like Upsert but is restricted to subset and never
// prunes rows outside it (spec §4.3).
func (s *Store) UpsertPaths(ctx context.Context, embedder Embedder, subset []Photo, batchSize int, progress embed.ProgressFunc) (newCount, updatedCount int, err error) {
	if err := s.lock.Lock(); err != nil {
		return 0, 0, photoerrors.IOError("acquire writer lock", err)
	}
	defer s.lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	newCount, updatedCount, err = s.applyDiff(ctx, embedder, subset, batchSize, progress)
	if err != nil {
		return newCount, updatedCount, err
	}

	if err := s.persist(); err != nil {
		return newCount, updatedCount, err
	}
	s.snapshotCounter++
	return newCount, updatedCount, nil
}

// applyDiff partitions photos into new/modified sets against the current
// rows, re-embeds each set through the EmbeddingPipeline, and writes the
// resulting vectors in place (modified) or appended (new). Callers must
// hold s.mu and the writer lock.
func (s *Store) applyDiff(ctx context.Context, embedder Embedder, photos []Photo, batchSize int, progress embed.ProgressFunc) (newCount, updatedCount int, err error) {
	existing := make(map[string]int, len(s.paths))
	for i, p := range s.paths {
		existing[p] = i
	}

	var newPhotos, modifiedPhotos []Photo
	for _, photo := range photos {
		row, ok := existing[photo.Path]
		if !ok {
			newPhotos = append(newPhotos, photo)
			continue
		}
		if photo.MTime > s.mtimes[row]+mtimeEpsilon {
			modifiedPhotos = append(modifiedPhotos, photo)
		}
	}

	if len(modifiedPhotos) > 0 {
		rows, valid, embedErr := s.embedPhotos(ctx, embedder, modifiedPhotos, batchSize, progress)
		if embedErr != nil {
			return 0, 0, photoerrors.EmbedderUnavailable("re-embed modified photos", embedErr)
		}
		for i, photo := range modifiedPhotos {
			row := existing[photo.Path]
			// A decode/embed failure on a modified photo leaves its prior row
			// and mtime untouched so the next upsert retries it; the primary
			// matrix never holds a zero row (spec §8 boundary behaviors).
			if !valid[i] {
				continue
			}
			copy(s.embeddings.Row(row), rows[i])
			s.mtimes[row] = photo.MTime
			updatedCount++
		}
	}

	if len(newPhotos) > 0 {
		rows, valid, embedErr := s.embedPhotos(ctx, embedder, newPhotos, batchSize, progress)
		if embedErr != nil {
			return 0, updatedCount, photoerrors.EmbedderUnavailable("embed new photos", embedErr)
		}
		if s.embeddings == nil {
			s.embeddings = npy.NewMatrix(0, s.dim)
		}
		// A decode/embed failure on a new photo means it is never inserted at
		// all (row absent), rather than appended as a zero row.
		var addedPaths []string
		var addedMTimes []float64
		var addedData []float32
		for i, photo := range newPhotos {
			if !valid[i] {
				continue
			}
			addedPaths = append(addedPaths, photo.Path)
			addedMTimes = append(addedMTimes, photo.MTime)
			addedData = append(addedData, rows[i]...)
		}
		if len(addedPaths) > 0 {
			grown := npy.NewMatrix(s.embeddings.Rows+len(addedPaths), s.dim)
			copy(grown.Data, s.embeddings.Data)
			copy(grown.Data[len(s.embeddings.Data):], addedData)
			s.embeddings = grown
			s.paths = append(s.paths, addedPaths...)
			s.mtimes = append(s.mtimes, addedMTimes...)
		}
		newCount = len(addedPaths)
	}

	return newCount, updatedCount, nil
}

// embedPhotos drives the EmbeddingPipeline over photos' paths and
// materializes the non-compact form (one row per input, zero row on
// failure), aligned 1:1 with photos.
func (s *Store) embedPhotos(ctx context.Context, embedder Embedder, photos []Photo, batchSize int, progress embed.ProgressFunc) ([][]float32, []bool, error) {
	results, err := pipeline.Run(ctx, embedder, photoPaths(photos), batchSize, progress)
	if err != nil {
		return nil, nil, err
	}
	if len(results) != len(photos) {
		return nil, nil, photoerrors.Cancelled("embedding run interrupted before completing this batch")
	}
	rows, valid := pipeline.Matrix(results, s.dim)
	return rows, valid, nil
}

// ReplaceRow overrides a single row's vector directly, used by auxiliary
// index maintainers that compute vectors out-of-band (spec §4.3).
func (s *Store) ReplaceRow(row int, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddings == nil || row < 0 || row >= s.embeddings.Rows {
		return photoerrors.ValidationError("replace_row: row out of range", nil).WithDetail("row", itoa(row))
	}
	copy(s.embeddings.Row(row), vector)
	if err := s.persist(); err != nil {
		return err
	}
	s.snapshotCounter++
	return nil
}

// Nuke deletes the store's entire directory tree.
func (s *Store) Nuke() error {
	if err := s.lock.Lock(); err != nil {
		return photoerrors.IOError("acquire writer lock", err)
	}
	defer s.lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.paths = nil
	s.mtimes = nil
	s.embeddings = nil
	return os.RemoveAll(s.dir)
}

// prune drops any stored path not present in the given set, preserving the
// relative order of kept rows (stable compaction, spec §4.3).
func (s *Store) prune(present map[string]bool) {
	if s.embeddings == nil {
		return
	}

	keptPaths := s.paths[:0:0]
	keptMTimes := s.mtimes[:0:0]
	var keptData []float32

	for i, p := range s.paths {
		if !present[p] {
			continue
		}
		keptPaths = append(keptPaths, p)
		keptMTimes = append(keptMTimes, s.mtimes[i])
		keptData = append(keptData, s.embeddings.Row(i)...)
	}

	kept := npy.NewMatrix(len(keptPaths), s.dim)
	copy(kept.Data, keptData)

	s.paths = keptPaths
	s.mtimes = keptMTimes
	s.embeddings = kept
}

// persist atomically writes paths.json and embeddings.npy. Callers must
// hold s.mu and the writer lock.
func (s *Store) persist() error {
	if err := writePathsFile(s.dir, pathsFile{Paths: s.paths, MTimes: s.mtimes}); err != nil {
		return photoerrors.New(photoerrors.ErrCodeSnapshotWrite, "write paths.json", err)
	}
	if s.embeddings == nil {
		s.embeddings = npy.NewMatrix(0, s.dim)
	}
	if err := npy.Write(filepath.Join(s.dir, embeddingsFileName), s.embeddings); err != nil {
		return photoerrors.New(photoerrors.ErrCodeSnapshotWrite, "write embeddings.npy", err)
	}
	return nil
}

func photoPaths(photos []Photo) []string {
	paths := make([]string, len(photos))
	for i, p := range photos {
		paths[i] = p.Path
	}
	return paths
}

func photoPathSet(photos []Photo) map[string]bool {
	set := make(map[string]bool, len(photos))
	for _, p := range photos {
		set[p.Path] = true
	}
	return set
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

