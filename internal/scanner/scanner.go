package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

// storeDirName is always skipped, regardless of ExcludePatterns, since it
// holds the index itself (spec §4.1).
const storeDirName = ".photo_index"

// Scan walks opts.Root and sends one Result per discovered file (or per
// unreadable directory) on the returned channel, then closes it. Results
// are sorted ascending by path for deterministic diffs (spec §4.1).
//
// Symlinks are followed; loops are broken by canonical-path deduplication.
// Unreadable directories are reported as a Result.Err and skipped rather
// than aborting the scan.
func Scan(ctx context.Context, opts ScanOptions) <-chan Result {
	out := make(chan Result)

	go func() {
		defer close(out)

		var files []FileInfo
		visited := make(map[string]bool)

		var walk func(dir string) error
		walk = func(dir string) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			real, err := filepath.EvalSymlinks(dir)
			if err != nil {
				real = dir
			}
			if visited[real] {
				return nil
			}
			visited[real] = true

			entries, err := os.ReadDir(dir)
			if err != nil {
				out <- Result{Err: photoerrors.PathUnreadable(dir, err)}
				return nil
			}

			for _, entry := range entries {
				name := entry.Name()
				full := filepath.Join(dir, name)

				isDir := entry.IsDir()
				if !isDir && entry.Type()&fs.ModeSymlink != 0 {
					if target, err := os.Stat(full); err == nil {
						isDir = target.IsDir()
					}
				}
				if isDir {
					if name == storeDirName || (strings.HasPrefix(name, ".") && name != ".") {
						continue
					}
					if matchesExclude(opts.Root, full, opts.ExcludePatterns) {
						continue
					}
					if err := walk(full); err != nil {
						return err
					}
					continue
				}

				if matchesExclude(opts.Root, full, opts.ExcludePatterns) {
					continue
				}

				info, statErr := entry.Info()
				if statErr != nil {
					if info, statErr = os.Stat(full); statErr != nil {
						out <- Result{Err: photoerrors.PathUnreadable(full, statErr)}
						continue
					}
				}
				// Follow symlinked files to their target mtime/size.
				if info.Mode()&fs.ModeSymlink != 0 {
					target, statErr := os.Stat(full)
					if statErr != nil {
						out <- Result{Err: photoerrors.PathUnreadable(full, statErr)}
						continue
					}
					info = target
				}

				if !isRecognized(name, opts.IncludeVideo) {
					continue
				}

				abs, err := filepath.Abs(full)
				if err != nil {
					abs = full
				}
				files = append(files, FileInfo{
					Path:    abs,
					ModTime: info.ModTime(),
					Size:    info.Size(),
				})
			}
			return nil
		}

		if err := walk(opts.Root); err != nil {
			out <- Result{Err: err}
			return
		}

		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		for i := range files {
			if ctx.Err() != nil {
				return
			}
			f := files[i]
			out <- Result{File: &f}
		}
	}()

	return out
}

// isRecognized reports whether name has a recognized image (or, if
// includeVideo, video) extension, case-insensitively.
func isRecognized(name string, includeVideo bool) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if imageExtensions[ext] {
		return true
	}
	return includeVideo && videoExtensions[ext]
}

// matchesExclude reports whether full, expressed relative to root, matches
// any of the given filepath.Match-style glob patterns.
func matchesExclude(root, full string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, full)
	if err != nil {
		rel = full
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(full)); ok {
			return true
		}
	}
	return false
}

// ScanAll drains Scan into a slice, returning the first error encountered
// from an otherwise-fatal condition (context cancellation); per-path errors
// are collected separately and never abort collection.
func ScanAll(ctx context.Context, opts ScanOptions) (files []FileInfo, perPathErrs []error, err error) {
	for res := range Scan(ctx, opts) {
		if res.Err != nil {
			if ctx.Err() != nil {
				return files, perPathErrs, res.Err
			}
			perPathErrs = append(perPathErrs, res.Err)
			continue
		}
		if res.File != nil {
			files = append(files, *res.File)
		}
	}
	return files, perPathErrs, nil
}
