// Package searchcache provides bounded LRU caches for repeated text-query
// embeddings and for decoded small-image hashes used when rebuilding
// look-alike groups (spec §4.5.4). Neither package search nor package phash
// constructs these caches itself.
package searchcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aman-oss/photoidx/internal/embed"
)

// DefaultQueryCacheSize bounds the default number of cached query embeddings.
const DefaultQueryCacheSize = 512

// QueryEmbedder wraps an embed.Embedder's EmbedText with an LRU cache keyed
// by SHA256(text + index_id), avoiding re-embedding repeated text queries
// (e.g. the same search typed again, or fan-out across workspace stores
// sharing one embedder).
type QueryEmbedder struct {
	inner embed.Embedder
	cache *lru.Cache[string, []float32]
}

// NewQueryEmbedder wraps inner with a query-embedding cache of the given size
// (0 or negative uses DefaultQueryCacheSize).
func NewQueryEmbedder(inner embed.Embedder, size int) *QueryEmbedder {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &QueryEmbedder{inner: inner, cache: cache}
}

func (q *QueryEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + q.inner.IndexID()))
	return hex.EncodeToString(sum[:])
}

// EmbedText returns a cached vector if this exact text was embedded before
// under the same embedder, otherwise computes and caches it. The returned
// slice is shared across callers and must be treated as read-only.
func (q *QueryEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := q.key(text)
	if vec, ok := q.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := q.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	q.cache.Add(key, vec)
	return vec, nil
}

// Len returns the number of cached query embeddings.
func (q *QueryEmbedder) Len() int {
	return q.cache.Len()
}

// Purge clears the cache, used when the embedder or its model changes.
func (q *QueryEmbedder) Purge() {
	q.cache.Purge()
}
