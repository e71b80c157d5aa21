// Package textindex implements the shared on-disk shape and fusion scoring
// used by both OCR (spec §4.5.1) and Captions (spec §4.5.2): a JSON
// path-aligned text cache plus a float32 embedding matrix kept in lockstep
// with the primary store's path order. OCR and Captions differ only in
// which external capability produces the text and which file names they
// use — this package factors out everything else.
package textindex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/aman-oss/photoidx/internal/embed"
	photoerrors "github.com/aman-oss/photoidx/internal/errors"
	"github.com/aman-oss/photoidx/internal/npy"
)

// textFile is the on-disk shape of ocr_texts.json / cap_texts.json.
type textFile struct {
	Paths []string `json:"paths"`
	Texts []string `json:"texts"`
}

// Index holds cached text and its embedding matrix, aligned by position to
// a path list.
type Index struct {
	dir        string
	textName   string
	matrixName string

	paths  []string
	texts  []string
	matrix *npy.Matrix
}

// Open loads (or initializes empty) the text cache and embedding matrix
// named textName/matrixName under dir.
func Open(dir, textName, matrixName string, dim int) (*Index, error) {
	idx := &Index{dir: dir, textName: textName, matrixName: matrixName}

	tf, err := readTextFile(filepath.Join(dir, textName))
	if err != nil {
		return nil, photoerrors.IndexCorrupt("read "+textName, err)
	}
	idx.paths = tf.Paths
	idx.texts = tf.Texts

	matrixPath := filepath.Join(dir, matrixName)
	if _, statErr := os.Stat(matrixPath); statErr == nil {
		m, err := npy.Read(matrixPath)
		if err != nil || m.Rows != len(idx.paths) || m.Cols != dim {
			idx.paths = nil
			idx.texts = nil
			idx.matrix = npy.NewMatrix(0, dim)
			return idx, nil
		}
		idx.matrix = m
	} else {
		idx.matrix = npy.NewMatrix(0, dim)
	}
	return idx, nil
}

// Paths returns the cached path order.
func (idx *Index) Paths() []string { return idx.paths }

// Matrix returns the embedding matrix, aligned by row to Paths().
func (idx *Index) Matrix() *npy.Matrix { return idx.matrix }

// TextFor returns the cached text for path, and whether it was present.
func (idx *Index) TextFor(path string) (string, bool) {
	for i, p := range idx.paths {
		if p == path {
			return idx.texts[i], true
		}
	}
	return "", false
}

// Extractor produces raw text for a path (OCR recognition, caption
// generation); an empty string is a legitimate "nothing detected" result.
type Extractor func(ctx context.Context, path string) (string, error)

// Build extracts text for every path missing from the cache via extract,
// text-embeds each result (an empty string embeds to a zero row per spec
// §4.5.1), and persists the realigned text file + matrix. Returns the
// number of paths updated. Progress reports phase "extract" once per path,
// then phase "embed" once per non-empty text that embeds without error.
func Build(ctx context.Context, idx *Index, embedder embed.Embedder, paths []string, extract Extractor, progress embed.ProgressFunc) (int, error) {
	cached := make(map[string]string, len(idx.paths))
	for i, p := range idx.paths {
		cached[p] = idx.texts[i]
	}

	newPaths := make([]string, 0, len(paths))
	newTexts := make([]string, 0, len(paths))
	updated := 0

	for i, p := range paths {
		if ctx.Err() != nil {
			return updated, photoerrors.Cancelled("text index build interrupted")
		}

		text, ok := cached[p]
		if !ok {
			extracted, err := extract(ctx, p)
			if err != nil {
				extracted = ""
			}
			text = extracted
			updated++
		}
		newPaths = append(newPaths, p)
		newTexts = append(newTexts, text)

		if progress != nil {
			progress(embed.Progress{Phase: "extract", Done: i + 1, Total: len(paths), Valid: updated})
		}
	}

	dim := embedder.Dimensions()
	matrix := npy.NewMatrix(len(newPaths), dim)
	for i, text := range newTexts {
		if text == "" {
			continue // zero row, per spec §4.5.1
		}
		vec, err := embedder.EmbedText(ctx, text)
		if err != nil {
			continue // embedding failure degrades to a zero row, not a hard error
		}
		copy(matrix.Row(i), vec)
		if progress != nil {
			progress(embed.Progress{Phase: "embed", Done: i + 1, Total: len(newPaths), Valid: updated})
		}
	}

	idx.paths = newPaths
	idx.texts = newTexts
	idx.matrix = matrix

	if err := idx.persist(); err != nil {
		return updated, err
	}
	return updated, nil
}

func (idx *Index) persist() error {
	tf := textFile{Paths: idx.paths, Texts: idx.texts}
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	textPath := filepath.Join(idx.dir, idx.textName)
	tmp := textPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, textPath); err != nil {
		return err
	}
	return npy.Write(filepath.Join(idx.dir, idx.matrixName), idx.matrix)
}

func readTextFile(path string) (textFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return textFile{}, nil
	}
	if err != nil {
		return textFile{}, err
	}
	var tf textFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return textFile{}, nil // corrupt cache degrades to empty, never fatal
	}
	return tf, nil
}
