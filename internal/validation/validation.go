// Package validation holds the small set of input checks performed at the
// photoidx API boundary (spec §6.2), before a request reaches IndexStore,
// Search, or Filter. Internal code paths trust their inputs; only the
// pkg/photoindex facade and the CLI/MCP adapters call into this package.
package validation

import (
	"path/filepath"
	"strings"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

// MaxQueryLength bounds a search query string; the parser already degrades
// gracefully on malformed input, but an unbounded query is a resource risk
// rather than a correctness one.
const MaxQueryLength = 4096

// TopK clamps a requested result count to [1, max]. A non-positive or
// oversized request is not an error (spec §7's boundary behaviors treat
// top_k > N as "return N", not a failure) — it is simply clamped.
func TopK(requested, max int) int {
	if requested <= 0 {
		return max
	}
	if requested > max {
		return max
	}
	return requested
}

// Root validates a directory path passed to open_store or upsert: must be
// non-empty and absolute. Relative roots are rejected rather than resolved
// against the process's working directory, since the caller (CLI, MCP
// client) may not share that notion of "current directory".
func Root(path string) error {
	if strings.TrimSpace(path) == "" {
		return photoerrors.ValidationError("root path is empty", nil)
	}
	if !filepath.IsAbs(path) {
		return photoerrors.ValidationError("root path must be absolute: "+path, nil)
	}
	return nil
}

// Query rejects a query string that exceeds MaxQueryLength. Everything
// else — empty strings, unmatched quotes, unknown fields — is the parser's
// job to degrade on (spec §7).
func Query(q string) error {
	if len(q) > MaxQueryLength {
		return photoerrors.ValidationError("query exceeds maximum length", nil)
	}
	return nil
}

// BatchSize rejects a non-positive embedding batch size.
func BatchSize(size int) error {
	if size <= 0 {
		return photoerrors.ValidationError("batch size must be positive", nil)
	}
	return nil
}

// HammingDistance rejects a negative lookalike threshold; perceptual
// hashes are 64-bit, so distances above 64 are harmless (never match) and
// not rejected.
func HammingDistance(d int) error {
	if d < 0 {
		return photoerrors.ValidationError("hamming distance threshold must be non-negative", nil)
	}
	return nil
}
