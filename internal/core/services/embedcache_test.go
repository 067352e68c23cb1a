package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbedCache(t *testing.T) {
	t.Run("stores and retrieves", func(t *testing.T) {
		cache := newEmbedCache(4)
		cache.set("k1", []float32{1, 2})

		got, ok := cache.get("k1")

		assert.True(t, ok)
		assert.Equal(t, []float32{1, 2}, got)
	})

	t.Run("miss returns false", func(t *testing.T) {
		cache := newEmbedCache(4)

		_, ok := cache.get("absent")

		assert.False(t, ok)
	})

	t.Run("evicts least recently used at capacity", func(t *testing.T) {
		cache := newEmbedCache(2)
		cache.set("a", []float32{1})
		cache.set("b", []float32{2})

		// Touch "a" so "b" becomes the eviction candidate.
		_, ok := cache.get("a")
		assert.True(t, ok)

		cache.set("c", []float32{3})

		_, ok = cache.get("b")
		assert.False(t, ok, "least recently used entry should be evicted")
		_, ok = cache.get("a")
		assert.True(t, ok)
		_, ok = cache.get("c")
		assert.True(t, ok)
		assert.Equal(t, 2, cache.len())
	})

	t.Run("set on existing key updates without growth", func(t *testing.T) {
		cache := newEmbedCache(2)
		cache.set("a", []float32{1})
		cache.set("a", []float32{9})

		got, ok := cache.get("a")

		assert.True(t, ok)
		assert.Equal(t, []float32{9}, got)
		assert.Equal(t, 1, cache.len())
	})
}
