// Package cache implements the response cache for the model access layer:
// an exact content-hash lookup backed by a semantic (embedding similarity)
// fallback, with TTL expiry and oldest-first capacity trimming.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/fyrsmithlabs/agendad/internal/embeddings"
)

const (
	// DefaultTTL is how long a cached response stays valid.
	DefaultTTL = 2 * time.Hour
	// DefaultMaxEntries caps the in-memory entry set.
	DefaultMaxEntries = 200
	// DefaultSimilarityThreshold is deliberately high to avoid returning
	// a cached answer for a merely related prompt.
	DefaultSimilarityThreshold = 0.92
)

// Entry is one cached response. Owned exclusively by the cache.
type Entry struct {
	queryHash string
	embedding []float32
	response  string
	createdAt time.Time
}

// ResponseCache caches model responses. All state is confined behind a
// single mutex; callers never see entries directly.
type ResponseCache struct {
	mu         sync.Mutex
	entries    []*Entry // insertion order, oldest first
	byHash     map[string]*Entry
	ttl        time.Duration
	maxEntries int
	threshold  float64

	now func() time.Time // test hook
}

// New creates a ResponseCache. Zero arguments fall back to defaults.
func New(ttl time.Duration, maxEntries int, threshold float64) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &ResponseCache{
		byHash:     make(map[string]*Entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		threshold:  threshold,
		now:        time.Now,
	}
}

// Key derives the exact-cache key from a prompt pair.
func Key(systemPrompt, userPrompt string) string {
	h := sha256.Sum256([]byte(systemPrompt + "\x00" + userPrompt))
	return hex.EncodeToString(h[:])
}

// GetExact returns the cached response for key, if present and fresh.
func (c *ResponseCache) GetExact(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
	e, ok := c.byHash[key]
	if !ok {
		return "", false
	}
	return e.response, true
}

// GetSemantic returns a cached response whose stored embedding is at least
// the similarity threshold away from emb. The best match wins.
func (c *ResponseCache) GetSemantic(emb []float32) (string, bool) {
	if len(emb) == 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()

	var best *Entry
	bestScore := c.threshold
	for _, e := range c.entries {
		if len(e.embedding) == 0 {
			continue
		}
		score := embeddings.Cosine(emb, e.embedding)
		if score >= bestScore {
			best = e
			bestScore = score
		}
	}
	if best == nil {
		return "", false
	}
	return best.response, true
}

// Put stores a response under key with an optional embedding. A nil
// embedding disables semantic matching for that entry.
func (c *ResponseCache) Put(key string, emb []float32, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()

	if old, ok := c.byHash[key]; ok {
		old.response = response
		old.embedding = emb
		old.createdAt = c.now()
		return
	}
	e := &Entry{
		queryHash: key,
		embedding: emb,
		response:  response,
		createdAt: c.now(),
	}
	c.entries = append(c.entries, e)
	c.byHash[key] = e

	// Oldest-first trim once over capacity.
	for len(c.entries) > c.maxEntries {
		evicted := c.entries[0]
		c.entries = c.entries[1:]
		delete(c.byHash, evicted.queryHash)
	}
}

// Len reports the current entry count after purging expired entries.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purgeLocked()
	return len(c.entries)
}

// purgeLocked drops expired entries. Caller holds the mutex.
func (c *ResponseCache) purgeLocked() {
	cutoff := c.now().Add(-c.ttl)
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.createdAt.After(cutoff) {
			kept = append(kept, e)
		} else {
			delete(c.byHash, e.queryHash)
		}
	}
	c.entries = kept
}
