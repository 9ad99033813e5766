package embedding

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/clearhaven/passage/internal/passerr"
)

// CachedProvider wraps a Provider with an LRU cache keyed by text. Batch
// calls are served from cache where possible; only misses reach the inner
// provider, preserving their original relative order. Useful when documents
// are re-ingested with mostly unchanged chunks.
type CachedProvider struct {
	inner Provider
	cache *lruCache
}

// NewCachedProvider wraps inner with a cache of the given capacity.
// A capacity below 1 is a configuration error; disable caching by not
// wrapping instead.
func NewCachedProvider(inner Provider, capacity int) (*CachedProvider, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: embedding cache capacity must be at least 1, got %d", passerr.ErrConfiguration, capacity)
	}
	return &CachedProvider{inner: inner, cache: newLRUCache(capacity)}, nil
}

// Embed fills cache hits immediately and forwards only the misses.
func (p *CachedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := p.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := p.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", passerr.ErrProvider, len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		p.cache.Set(texts[i], vecs[j])
	}
	return out, nil
}

// Dimensions returns the inner provider's dimension.
func (p *CachedProvider) Dimensions() int {
	return p.inner.Dimensions()
}

// Close closes the inner provider.
func (p *CachedProvider) Close() error {
	return p.inner.Close()
}

// Len reports the number of cached entries.
func (p *CachedProvider) Len() int {
	return p.cache.Len()
}

// lruCache is an LRU cache for embeddings keyed by text.
type lruCache struct {
	capacity int
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key   string
	value []float32
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached embedding for key if present. Get takes the write
// lock because a hit moves the entry to the front of the recency list.
func (c *lruCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry at capacity.
func (c *lruCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	elem := c.order.PushFront(&cacheEntry{key: key, value: value})
	c.entries[key] = elem
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

func (c *lruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
