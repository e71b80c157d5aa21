// Package photoindex is the public, embeddable API for photoidx (spec
// §6.2): a single Store type wrapping IndexStore, the three ANN backends,
// the auxiliary indexes, Filter, and Search into the operations a CLI, an
// MCP tool, or a Go program embeds directly.
package photoindex

import (
	"context"
	"path/filepath"

	"github.com/aman-oss/photoidx/internal/ann"
	"github.com/aman-oss/photoidx/internal/aux/caption"
	"github.com/aman-oss/photoidx/internal/aux/exif"
	"github.com/aman-oss/photoidx/internal/aux/faces"
	"github.com/aman-oss/photoidx/internal/aux/ocr"
	"github.com/aman-oss/photoidx/internal/aux/phash"
	"github.com/aman-oss/photoidx/internal/embed"
	photoerrors "github.com/aman-oss/photoidx/internal/errors"
	"github.com/aman-oss/photoidx/internal/favorites"
	"github.com/aman-oss/photoidx/internal/filter"
	"github.com/aman-oss/photoidx/internal/progress"
	"github.com/aman-oss/photoidx/internal/scanner"
	"github.com/aman-oss/photoidx/internal/search"
	"github.com/aman-oss/photoidx/internal/store"
	"github.com/aman-oss/photoidx/internal/validation"
)

const (
	ocrDirName     = "ocr"
	captionDirName = "captions"
	exifDirName    = "exif"
	phashDirName   = "phash"
	facesDirName   = "faces"
	annDirName     = "ann"
)

// Store is the facade over one index directory, matching spec §6.2's
// surface. Zero value is not usable; construct with Open.
type Store struct {
	dir      string
	embedder embed.Embedder
	core     *store.Store

	ann ann.Backend // nil until BuildANN is called at least once

	ocrIdx     *ocr.Index
	captionIdx *caption.Index
	exifTable  *exif.Table
	phashIdx   *phash.Index
	facesIdx   *faces.Index
	favorites  *favorites.Set
}

// Open creates dir (and IndexKey subdirectory) if absent, loading any
// existing snapshot (spec §3's storage layout, §6.2's open_store).
func Open(root string, embedder embed.Embedder) (*Store, error) {
	if err := validation.Root(root); err != nil {
		return nil, err
	}
	dir := filepath.Join(root, ".photo_index", embedder.IndexID())
	core, err := store.Open(dir, embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, embedder: embedder, core: core}, nil
}

// Dir returns the underlying store directory.
func (s *Store) Dir() string { return s.dir }

// Upsert scans root and reconciles the store against the filesystem (spec
// §4.1/§4.3), reporting progress through a Reporter the caller can poll or
// discard.
func (s *Store) Upsert(ctx context.Context, root string, opts scanner.ScanOptions, batchSize int, reporter *progress.Reporter) (newCount, updatedCount int, err error) {
	if err := validation.BatchSize(batchSize); err != nil {
		return 0, 0, err
	}
	opts.Root = root
	files, _, err := scanner.ScanAll(ctx, opts)
	if err != nil {
		return 0, 0, err
	}
	photos := store.FromFileInfo(files)

	var progressFn embed.ProgressFunc
	if reporter != nil {
		progressFn = func(p embed.Progress) {
			reporter.Update(len(photos), p.Done, p.Total, 0, 0)
			reporter.CheckPause()
		}
	}

	newCount, updatedCount, err = s.core.Upsert(ctx, s.embedder, photos, batchSize, progressFn)
	if reporter != nil {
		if err != nil {
			reporter.Fail(err.Error())
		} else {
			reporter.Finish()
		}
	}
	return newCount, updatedCount, err
}

// UpsertPaths re-embeds a specific subset without pruning (spec §4.3,
// used by the watcher and by targeted re-index requests).
func (s *Store) UpsertPaths(ctx context.Context, photos []store.Photo, batchSize int) (newCount, updatedCount int, err error) {
	if err := validation.BatchSize(batchSize); err != nil {
		return 0, 0, err
	}
	return s.core.UpsertPaths(ctx, s.embedder, photos, batchSize, nil)
}

// Nuke deletes every file under the store directory, including the
// embedding matrix, snapshot, ANN sidecars, and auxiliary indexes.
func (s *Store) Nuke() error {
	return s.core.Nuke()
}

// Search performs modes 1/2 of spec §4.6: embed query text, then rank.
func (s *Store) Search(ctx context.Context, query string, topK int, opts search.Options) ([]search.Result, error) {
	if err := validation.Query(query); err != nil {
		return nil, err
	}
	snap := s.core.Snapshot()
	topK = validation.TopK(topK, len(snap.Paths))
	opts.TopK = topK
	if opts.ANN == nil {
		opts.ANN = s.ann
	}

	var queryVec []float32
	if query != "" {
		v, err := s.embedder.EmbedText(ctx, query)
		if err != nil {
			return nil, err
		}
		queryVec = v
	}

	engine := &search.Engine{Paths: snap.Paths, Primary: snap.Embeddings}
	return engine.SearchVector(ctx, queryVec, opts)
}

// SearchLike performs mode 3 of spec §4.6: query by a photo already in the
// store, using its own stored row as the query vector.
func (s *Store) SearchLike(ctx context.Context, path string, topK int, opts search.Options) ([]search.Result, error) {
	snap := s.core.Snapshot()
	row := -1
	for i, p := range snap.Paths {
		if p == path {
			row = i
			break
		}
	}
	if row < 0 {
		return nil, photoerrors.ValidationError("path not found in store: "+path, nil)
	}
	topK = validation.TopK(topK, len(snap.Paths))
	opts.TopK = topK
	if opts.ANN == nil {
		opts.ANN = s.ann
	}
	engine := &search.Engine{Paths: snap.Paths, Primary: snap.Embeddings}
	return engine.SearchVector(ctx, snap.Embeddings.Row(row), opts)
}

// FilterPaths narrows the store's current paths through the boolean
// predicate/query language (spec §4.7), before or instead of a vector
// search pass.
func (s *Store) FilterPaths(query string, f filter.Filters, evalCtx filter.EvalContext) ([]string, error) {
	if err := validation.Query(query); err != nil {
		return nil, err
	}
	snap := s.core.Snapshot()
	if evalCtx.MTime == nil {
		evalCtx.MTime = snapshotMTime(snap.Paths, snap.MTimes)
	}
	paths := filter.Apply(snap.Paths, f, photoContextFromEval(evalCtx))
	if query == "" {
		return paths, nil
	}
	rpn, err := filter.Compile(query)
	if err != nil {
		return nil, err
	}
	out := paths[:0:0]
	for _, p := range paths {
		if filter.Evaluate(rpn, p, &evalCtx) {
			out = append(out, p)
		}
	}
	return out, nil
}

func photoContextFromEval(ctx filter.EvalContext) filter.PhotoContext {
	return filter.PhotoContext{
		Favorites:  ctx.Favorites,
		Tags:       ctx.Tags,
		Persons:    ctx.Persons,
		EXIF:       ctx.EXIF,
		MTime:      ctx.MTime,
		Sharpness:  ctx.Sharpness,
		Brightness: ctx.Brightness,
		HasOCRText: func(path string) bool {
			if ctx.OCRTexts == nil {
				return false
			}
			t, ok := ctx.OCRTexts[path]
			return ok && t != ""
		},
		Place: ctx.Place,
	}
}

// FilterEvalContext builds the EvalContext a CLI or MCP caller needs to
// drive FilterPaths against this store's own lazily-opened auxiliary
// indexes (favorites, EXIF, OCR text, captions). An auxiliary index that
// fails to open leaves its field nil, and one not built yet opens with no
// entries; the Filter layer treats either as "unconstrained" for predicates that
// don't reference them, and "fails the constraint" for ones that do.
func (s *Store) FilterEvalContext() filter.EvalContext {
	snap := s.core.Snapshot()
	ctx := filter.EvalContext{MTime: snapshotMTime(snap.Paths, snap.MTimes)}

	if favs, err := s.ensureFavorites(); err == nil {
		ctx.Favorites = favs.AsMap()
	}
	if table, err := s.ensureEXIF(); err == nil {
		ctx.EXIF = table.Lookup
	}
	if idx, err := s.ensureOCR(); err == nil {
		ctx.OCRTexts = textMap(snap.Paths, idx.TextFor)
	}
	if idx, err := s.ensureCaptions(); err == nil {
		ctx.Captions = textMap(snap.Paths, idx.TextFor)
	}
	return ctx
}

func textMap(paths []string, lookup func(string) (string, bool)) map[string]string {
	m := make(map[string]string, len(paths))
	for _, p := range paths {
		if t, ok := lookup(p); ok {
			m[p] = t
		}
	}
	return m
}

func snapshotMTime(paths []string, mtimes []float64) func(string) (float64, bool) {
	m := make(map[string]float64, len(paths))
	for i, p := range paths {
		m[p] = mtimes[i]
	}
	return func(path string) (float64, bool) {
		v, ok := m[path]
		return v, ok
	}
}

// RowsForPaths maps a filtered path list back to the primary matrix's row
// indices, for use as search.Options.Subset (spec §4.6's filter-first
// flows).
func (s *Store) RowsForPaths(paths []string) []int {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	snap := s.core.Snapshot()
	rows := make([]int, 0, len(paths))
	for i, p := range snap.Paths {
		if want[p] {
			rows = append(rows, i)
		}
	}
	return rows
}

// SetFavorite marks or unmarks path as a favorite (spec §4.7's Collections
// row: the one Favorites set the filter table tests against).
func (s *Store) SetFavorite(path string, favorite bool) error {
	favs, err := s.ensureFavorites()
	if err != nil {
		return err
	}
	if favorite {
		return favs.Add(path)
	}
	return favs.Remove(path)
}

// Favorites returns every currently favorited path, sorted.
func (s *Store) Favorites() ([]string, error) {
	favs, err := s.ensureFavorites()
	if err != nil {
		return nil, err
	}
	return favs.Paths(), nil
}

// BuildANN (re)builds the requested ANN backend over the current primary
// matrix (spec §4.4) and makes it the store's active backend for Search.
func (s *Store) BuildANN(ctx context.Context, backend ann.Backend) error {
	snap := s.core.Snapshot()
	if snap.Embeddings == nil {
		return photoerrors.ValidationError("cannot build ANN over an empty store", nil)
	}
	if err := backend.Build(ctx, snap.Embeddings, s.core.SnapshotCounter()); err != nil {
		return err
	}
	if err := backend.Save(filepath.Join(s.dir, annDirName, backend.Name())); err != nil {
		return err
	}
	s.ann = backend
	return nil
}

// ANNStatus reports the active ANN backend's readiness, or a zero Status
// with Exists=false if none has been built/loaded.
func (s *Store) ANNStatus() ann.Status {
	if s.ann == nil {
		return ann.Status{}
	}
	status := s.ann.Status()
	if status.Snapshot != s.core.SnapshotCounter() {
		return ann.Status{Exists: false}
	}
	return status
}

// LoadANN loads a previously built backend's sidecar from disk, if present.
func (s *Store) LoadANN(backend ann.Backend) error {
	if err := backend.Load(filepath.Join(s.dir, annDirName, backend.Name())); err != nil {
		return err
	}
	s.ann = backend
	return nil
}

// BuildOCR extracts and embeds OCR text over paths currently in the store
// (spec §4.5.1).
func (s *Store) BuildOCR(ctx context.Context, languages []string, recognizer ocr.Recognizer, reporter *progress.Reporter) (int, error) {
	idx, err := s.ensureOCR()
	if err != nil {
		return 0, err
	}
	var progressFn embed.ProgressFunc
	if reporter != nil {
		progressFn = func(p embed.Progress) { reporter.Update(0, p.Done, p.Total, 0, 0) }
	}
	n, err := idx.Build(ctx, s.embedder, s.core.Snapshot().Paths, languages, recognizer, progressFn)
	if reporter != nil {
		if err != nil {
			reporter.Fail(err.Error())
		} else {
			reporter.Finish()
		}
	}
	return n, err
}

// BuildCaptions generates and embeds captions over paths in the store
// (spec §4.5.2).
func (s *Store) BuildCaptions(ctx context.Context, captioner caption.Captioner, reporter *progress.Reporter) (int, error) {
	idx, err := s.ensureCaptions()
	if err != nil {
		return 0, err
	}
	var progressFn embed.ProgressFunc
	if reporter != nil {
		progressFn = func(p embed.Progress) { reporter.Update(0, p.Done, p.Total, 0, 0) }
	}
	n, err := idx.Build(ctx, s.embedder, s.core.Snapshot().Paths, captioner, progressFn)
	if reporter != nil {
		if err != nil {
			reporter.Fail(err.Error())
		} else {
			reporter.Finish()
		}
	}
	return n, err
}

// BuildEXIF extracts EXIF metadata for paths in the store (spec §4.5.3). A
// nil extractor uses exif.DefaultExtractor, the store's deterministic
// default reader.
func (s *Store) BuildEXIF(extractor exif.Extractor) (int, error) {
	if extractor == nil {
		extractor = exif.DefaultExtractor
	}
	table, err := s.ensureEXIF()
	if err != nil {
		return 0, err
	}
	return table.Build(s.core.Snapshot().Paths, extractor)
}

// LookupEXIF returns a single photo's EXIF record, if indexed.
func (s *Store) LookupEXIF(path string) (exif.Record, bool) {
	if s.exifTable == nil {
		return exif.Record{}, false
	}
	return s.exifTable.Lookup(path)
}

// BuildHashes computes perceptual hashes for paths in the store (spec
// §4.5.4). A nil hasher uses phash.DefaultHasher, the store's deterministic
// dHash default.
func (s *Store) BuildHashes(hasher phash.Hasher) (int, error) {
	if hasher == nil {
		hasher = phash.DefaultHasher
	}
	idx, err := s.ensurePhash()
	if err != nil {
		return 0, err
	}
	return idx.Build(s.core.Snapshot().Paths, hasher)
}

// Lookalikes groups paths whose perceptual hashes are within distance of
// each other (spec §4.5.4).
func (s *Store) Lookalikes(maxHammingDistance int) ([][]string, error) {
	if err := validation.HammingDistance(maxHammingDistance); err != nil {
		return nil, err
	}
	idx, err := s.ensurePhash()
	if err != nil {
		return nil, err
	}
	return idx.FindLookalikes(maxHammingDistance), nil
}

// BuildFaces detects and clusters faces across paths in the store (spec
// §4.5.5).
func (s *Store) BuildFaces(detector faces.Detector, params faces.BuildParams) (faces.BuildResult, error) {
	idx, err := s.ensureFaces()
	if err != nil {
		return faces.BuildResult{}, err
	}
	return idx.Build(s.core.Snapshot().Paths, detector, params)
}

// FacesFor returns the face references recorded for a single path.
func (s *Store) FacesFor(path string) []faces.FaceRef {
	if s.facesIdx == nil {
		return nil
	}
	return s.facesIdx.FacesFor(path)
}

func (s *Store) ensureOCR() (*ocr.Index, error) {
	if s.ocrIdx == nil {
		idx, err := ocr.Open(filepath.Join(s.dir, ocrDirName), s.embedder.Dimensions())
		if err != nil {
			return nil, err
		}
		s.ocrIdx = idx
	}
	return s.ocrIdx, nil
}

func (s *Store) ensureCaptions() (*caption.Index, error) {
	if s.captionIdx == nil {
		idx, err := caption.Open(filepath.Join(s.dir, captionDirName), s.embedder.Dimensions())
		if err != nil {
			return nil, err
		}
		s.captionIdx = idx
	}
	return s.captionIdx, nil
}

func (s *Store) ensureEXIF() (*exif.Table, error) {
	if s.exifTable == nil {
		table, err := exif.Open(filepath.Join(s.dir, exifDirName))
		if err != nil {
			return nil, err
		}
		s.exifTable = table
	}
	return s.exifTable, nil
}

func (s *Store) ensurePhash() (*phash.Index, error) {
	if s.phashIdx == nil {
		idx, err := phash.Open(filepath.Join(s.dir, phashDirName))
		if err != nil {
			return nil, err
		}
		s.phashIdx = idx
	}
	return s.phashIdx, nil
}

func (s *Store) ensureFaces() (*faces.Index, error) {
	if s.facesIdx == nil {
		idx, err := faces.Open(filepath.Join(s.dir, facesDirName), s.embedder.Dimensions())
		if err != nil {
			return nil, err
		}
		s.facesIdx = idx
	}
	return s.facesIdx, nil
}

func (s *Store) ensureFavorites() (*favorites.Set, error) {
	if s.favorites == nil {
		favs, err := favorites.Open(s.dir)
		if err != nil {
			return nil, err
		}
		s.favorites = favs
	}
	return s.favorites, nil
}
