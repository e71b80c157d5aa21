// Package scanner enumerates indexable images (and optionally videos) under
// a filesystem root, per spec §4.1.
package scanner

import "time"

// FileInfo describes a single discovered photo or video file.
type FileInfo struct {
	Path    string    // Absolute path
	ModTime time.Time // Last modification time
	Size    int64     // File size in bytes
}

// MTimeSeconds returns ModTime as seconds since the Unix epoch, matching the
// PhotoEntry.mtime representation in spec §3.
func (f FileInfo) MTimeSeconds() float64 {
	return float64(f.ModTime.UnixNano()) / 1e9
}

// ScanOptions configures a scan.
type ScanOptions struct {
	// Root is the directory to scan.
	Root string
	// IncludeVideo additionally yields video files (spec §4.1's optional set).
	IncludeVideo bool
	// ExcludePatterns are filepath.Match-style globs, matched against paths
	// relative to Root; a match skips the file or directory.
	ExcludePatterns []string
}

// Result is emitted on the scan channel: exactly one of File or Err is set.
type Result struct {
	File *FileInfo
	Err  error
}

// imageExtensions is the recognized, case-insensitive image extension set
// from spec §4.1.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".gif": true,
	".webp": true, ".tiff": true, ".tif": true, ".heic": true, ".heif": true,
}

// videoExtensions is the optional video extension set from spec §4.1.
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true, ".m4v": true,
}
