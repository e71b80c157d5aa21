// Package favorites is the store's persisted Favorites collection (spec
// §4.7's Collections row: "favorites_only: keep rows whose path ∈
// Favorites set"). Grounded on internal/aux/phash's JSON-cache-plus-
// atomic-rename persistence style; full named Collections (beyond the one
// Favorites set the filter table references) are out of scope per spec.md's
// Non-goals on collection/curation surfaces.
package favorites

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

const fileName = "favorites.json"

// Set tracks the paths a user has marked favorite for one store directory.
type Set struct {
	dir   string
	paths map[string]bool
}

// Open loads the favorites set for a store directory, if present.
func Open(dir string) (*Set, error) {
	s := &Set{dir: dir, paths: map[string]bool{}}
	raw, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, photoerrors.IOError("read favorites", err)
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, photoerrors.IOError("parse favorites", err)
	}
	for _, p := range list {
		s.paths[p] = true
	}
	return s, nil
}

// Add marks path favorite.
func (s *Set) Add(path string) error {
	if s.paths[path] {
		return nil
	}
	s.paths[path] = true
	return s.persist()
}

// Remove unmarks path favorite.
func (s *Set) Remove(path string) error {
	if !s.paths[path] {
		return nil
	}
	delete(s.paths, path)
	return s.persist()
}

// Is reports whether path is favorited.
func (s *Set) Is(path string) bool { return s.paths[path] }

// Paths returns every favorited path, sorted.
func (s *Set) Paths() []string {
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// AsMap returns the favorite set as a map, the shape filter.PhotoContext
// and filter.EvalContext's Favorites field expect.
func (s *Set) AsMap() map[string]bool {
	m := make(map[string]bool, len(s.paths))
	for p := range s.paths {
		m[p] = true
	}
	return m
}

// Prune drops favorites for paths no longer present, keeping the set
// aligned with the primary store after a prune.
func (s *Set) Prune(present map[string]bool) error {
	changed := false
	for p := range s.paths {
		if !present[p] {
			delete(s.paths, p)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persist()
}

func (s *Set) persist() error {
	data, err := json.MarshalIndent(s.Paths(), "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(s.dir, fileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return photoerrors.IOError("write favorites", err)
	}
	return os.Rename(tmp, filepath.Join(s.dir, fileName))
}
