package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactHit(t *testing.T) {
	c := New(0, 0, 0)
	key := Key("system", "user")

	_, ok := c.GetExact(key)
	assert.False(t, ok)

	c.Put(key, nil, "cached response")

	got, ok := c.GetExact(key)
	require.True(t, ok)
	assert.Equal(t, "cached response", got)

	// A different prompt pair must not hit.
	_, ok = c.GetExact(Key("system", "other user"))
	assert.False(t, ok)
}

func TestSemanticThreshold(t *testing.T) {
	c := New(0, 0, 0.92)

	// Stored entry points along the x axis.
	c.Put(Key("s", "u"), []float32{1, 0}, "resp")

	// cos(a, stored) = a[0] for unit vectors; 0.93 is above threshold,
	// 0.90 below.
	above := []float32{0.93, 0.36756}
	below := []float32{0.90, 0.43589}

	got, ok := c.GetSemantic(above)
	require.True(t, ok)
	assert.Equal(t, "resp", got)

	_, ok = c.GetSemantic(below)
	assert.False(t, ok)
}

func TestSemanticPicksBestMatch(t *testing.T) {
	c := New(0, 0, 0.92)
	c.Put(Key("s", "a"), []float32{0.95, 0.31225}, "near")
	c.Put(Key("s", "b"), []float32{1, 0}, "exact direction")

	got, ok := c.GetSemantic([]float32{1, 0})
	require.True(t, ok)
	assert.Equal(t, "exact direction", got)
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Hour, 0, 0)
	now := time.Now()
	c.now = func() time.Time { return now }

	key := Key("s", "u")
	c.Put(key, []float32{1, 0}, "resp")

	_, ok := c.GetExact(key)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)

	_, ok = c.GetExact(key)
	assert.False(t, ok, "entry should expire after TTL")
	_, ok = c.GetSemantic([]float32{1, 0})
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCapacityTrimOldestFirst(t *testing.T) {
	c := New(0, 3, 0)
	for i := 0; i < 5; i++ {
		c.Put(Key("s", fmt.Sprintf("u%d", i)), nil, fmt.Sprintf("r%d", i))
	}
	assert.Equal(t, 3, c.Len())

	// The two oldest must be gone, the newest three present.
	_, ok := c.GetExact(Key("s", "u0"))
	assert.False(t, ok)
	_, ok = c.GetExact(Key("s", "u1"))
	assert.False(t, ok)
	for i := 2; i < 5; i++ {
		_, ok = c.GetExact(Key("s", fmt.Sprintf("u%d", i)))
		assert.True(t, ok, "u%d should survive trim", i)
	}
}

func TestPutSameKeyRefreshes(t *testing.T) {
	c := New(0, 0, 0)
	key := Key("s", "u")
	c.Put(key, nil, "first")
	c.Put(key, nil, "second")
	assert.Equal(t, 1, c.Len())
	got, _ := c.GetExact(key)
	assert.Equal(t, "second", got)
}
