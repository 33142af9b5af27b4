// Package dedup prevents reprocessing of near-identical daily narratives
// within a rolling time window. It dedupes pipeline inputs; the response
// cache in internal/cache dedupes model outputs.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/fyrsmithlabs/agendad/internal/embeddings"
)

const (
	// DefaultWindow is how long a processed input blocks near-duplicates.
	DefaultWindow = 24 * time.Hour
	// DefaultSimilarityThreshold is lower than the response cache's: two
	// narratives of the same day tend to drift more than two prompts.
	DefaultSimilarityThreshold = 0.88
)

type entry struct {
	hash        string
	embedding   []float32
	processedAt time.Time
}

// Deduplicator tracks recently processed content. All state is confined
// behind a single mutex.
type Deduplicator struct {
	mu        sync.Mutex
	entries   []entry
	window    time.Duration
	threshold float64

	now func() time.Time // test hook
}

// New creates a Deduplicator. Zero arguments fall back to defaults.
func New(window time.Duration, threshold float64) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduplicator{
		window:    window,
		threshold: threshold,
		now:       time.Now,
	}
}

// IsDuplicate reports whether content matches a recently processed input,
// either by exact hash (fast path) or by embedding similarity. A nil
// embedding limits the check to the hash path.
func (d *Deduplicator) IsDuplicate(content string, emb []float32) bool {
	h := hashContent(content)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.purgeLocked()

	for _, e := range d.entries {
		if e.hash == h {
			return true
		}
	}
	if len(emb) == 0 {
		return false
	}
	for _, e := range d.entries {
		if len(e.embedding) == 0 {
			continue
		}
		if embeddings.Cosine(emb, e.embedding) >= d.threshold {
			return true
		}
	}
	return false
}

// MarkProcessed records content as processed at the current time.
func (d *Deduplicator) MarkProcessed(content string, emb []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purgeLocked()
	d.entries = append(d.entries, entry{
		hash:        hashContent(content),
		embedding:   emb,
		processedAt: d.now(),
	})
}

// Len reports how many entries remain inside the window.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purgeLocked()
	return len(d.entries)
}

// purgeLocked lazily drops entries older than the window.
func (d *Deduplicator) purgeLocked() {
	cutoff := d.now().Add(-d.window)
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.processedAt.After(cutoff) {
			kept = append(kept, e)
		}
	}
	d.entries = kept
}

func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
