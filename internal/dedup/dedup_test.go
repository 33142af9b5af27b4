package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExactHashFastPath(t *testing.T) {
	d := New(0, 0)

	assert.False(t, d.IsDuplicate("daily narrative", nil))

	d.MarkProcessed("daily narrative", nil)

	assert.True(t, d.IsDuplicate("daily narrative", nil))
	assert.False(t, d.IsDuplicate("a different narrative", nil))
}

func TestEmbeddingSimilarity(t *testing.T) {
	d := New(0, 0.88)
	d.MarkProcessed("original", []float32{1, 0})

	// 0.90 similarity: duplicate.
	assert.True(t, d.IsDuplicate("rephrased", []float32{0.90, 0.43589}))
	// 0.85 similarity: distinct.
	assert.False(t, d.IsDuplicate("different", []float32{0.85, 0.52678}))
}

func TestNilEmbeddingSkipsSimilarity(t *testing.T) {
	d := New(0, 0.88)
	d.MarkProcessed("original", []float32{1, 0})

	// Same direction but no embedding supplied: only the hash path runs.
	assert.False(t, d.IsDuplicate("rephrased", nil))
}

func TestWindowPurge(t *testing.T) {
	d := New(time.Hour, 0)
	now := time.Now()
	d.now = func() time.Time { return now }

	d.MarkProcessed("narrative", []float32{1, 0})
	assert.True(t, d.IsDuplicate("narrative", nil))

	now = now.Add(90 * time.Minute)

	assert.False(t, d.IsDuplicate("narrative", nil), "entry outside window must not match")
	assert.Equal(t, 0, d.Len())
}
