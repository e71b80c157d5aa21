package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticDimensions is the embedding dimension produced by StaticEmbedder.
const StaticDimensions = 512

// StaticEmbedder generates embeddings using a hash-based approach: no model
// download, no network, no GPU. Text queries are hashed token-and-n-gram
// vectors; images are hashed from a content fingerprint plus filename tokens
// standing in for captioned content. Intended as the zero-dependency
// fallback and as a fast, deterministic backend for tests, not for
// semantic search quality.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// stopWords contains common filler tokens filtered out of filename/query
// tokenization before hashing.
var stopWords = map[string]bool{
	"the": true, "and": true, "with": true, "of": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "img": true,
	"image": true, "photo": true, "picture": true, "copy": true,
	"final": true, "true": true, "false": true, "new": true,
}

// Weights for vector generation
const (
	tokenWeight   = 0.7
	ngramWeight   = 0.3
	ngramSize     = 3
	contentSample = 4096
)

// tokenRegex matches alphanumeric sequences
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// IndexID identifies this embedder's namespace; changing the dimension or
// hashing scheme below should bump the suffix so existing stores are not
// silently reused with incompatible vectors.
func (e *StaticEmbedder) IndexID() string {
	return "static-v1"
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

// EmbedText generates embedding for a single text query.
func (e *StaticEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}

	return normalizeVector(e.generateVector(trimmed)), nil
}

// EmbedImages hashes each path's leading bytes plus its filename tokens into
// a vector. A path that cannot be read (missing, unreadable, directory)
// yields a zero row and is omitted from valid, per the Embedder contract.
func (e *StaticEmbedder) EmbedImages(ctx context.Context, paths []string, batchSize int, progress ProgressFunc) ([][]float32, []bool, error) {
	if err := e.checkOpen(); err != nil {
		return nil, nil, err
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	rows := make([][]float32, len(paths))
	valid := make([]bool, len(paths))

	if progress != nil {
		progress(Progress{Phase: "encode_start", Total: len(paths)})
	}

	for i, path := range paths {
		if ctx.Err() != nil {
			if progress != nil {
				progress(Progress{Phase: "encode_done", Done: i, Total: len(paths)})
			}
			return rows[:i], valid[:i], nil
		}

		rows[i] = make([]float32, StaticDimensions)
		vec, err := e.embedImage(path)
		if err == nil {
			rows[i] = vec
			valid[i] = true
		}

		if progress != nil && (i%batchSize == batchSize-1 || i == len(paths)-1) {
			progress(Progress{Phase: "encode_start", Done: i + 1, Total: len(paths)})
		}
	}

	if progress != nil {
		progress(Progress{Phase: "encode_done", Done: len(paths), Total: len(paths), Valid: countTrue(valid)})
	}

	return rows, valid, nil
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func (e *StaticEmbedder) embedImage(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("static embedder: %s is a directory", path)
	}

	buf := make([]byte, contentSample)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}

	vector := make([]float32, StaticDimensions)
	for i := 0; i+3 <= n; i++ {
		idx := hashToIndex(string(buf[i:i+3]), StaticDimensions)
		vector[idx] += ngramWeight
	}

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	for _, token := range filterStopWords(tokenize(name)) {
		idx := hashToIndex(token, StaticDimensions)
		vector[idx] += tokenWeight
	}

	return normalizeVector(vector), nil
}

// generateVector creates a hash-based vector from text.
func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	tokens := filterStopWords(tokenize(text))
	for _, token := range tokens {
		index := hashToIndex(token, StaticDimensions)
		vector[index] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	ngrams := extractNgrams(normalized, ngramSize)
	for _, ngram := range ngrams {
		index := hashToIndex(ngram, StaticDimensions)
		vector[index] += ngramWeight
	}

	return vector
}

// tokenize splits text into lowercase tokens, breaking camelCase/snake_case.
func tokenize(text string) []string {
	var tokens []string

	words := tokenRegex.FindAllString(text, -1)
	for _, word := range words {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}

	return tokens
}

// splitCodeToken splits camelCase and snake_case identifiers.
func splitCodeToken(token string) []string {
	var result []string

	if strings.Contains(token, "_") {
		parts := strings.Split(token, "_")
		for _, part := range parts {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}

	return splitCamelCase(token)
}

// splitCamelCase splits camelCase identifiers.
func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])

			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}

// filterStopWords removes common filler tokens.
func filterStopWords(tokens []string) []string {
	var filtered []string
	for _, t := range tokens {
		if !stopWords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// normalizeForNgrams prepares text for n-gram extraction.
func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// extractNgrams extracts n-character sliding windows.
func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}

	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

// hashToIndex uses FNV-64 to map a string to an index.
func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}

func (e *StaticEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

// Available reports whether the embedder is ready (always true until closed).
func (e *StaticEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
