package store

import (
	"bytes"
	"strconv"
	"sync"
	"testing"

	"memoryhttpd/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGet_Put(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	t.Run("put and get existing key", func(t *testing.T) {
		store.Put("key1", []byte("hello"))

		val, ok := store.Get("key1")
		require.True(t, ok)
		assert.Equal(t, []byte("hello"), val)
	})

	t.Run("get never written key", func(t *testing.T) {
		val, ok := store.Get("missing")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("binary value round trips byte for byte", func(t *testing.T) {
		raw := []byte{0x00, 0xff, '\n', 0x7f, 0x80}
		store.Put("bin", raw)

		val, ok := store.Get("bin")
		require.True(t, ok)
		assert.Equal(t, raw, val)
	})

	t.Run("empty value is still present", func(t *testing.T) {
		store.Put("empty", nil)

		val, ok := store.Get("empty")
		require.True(t, ok)
		assert.Empty(t, val)
	})
}

func TestStoreDelete(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	store.Put("key1", []byte("1"))
	store.Delete("key1")

	_, ok := store.Get("key1")
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		store.Delete("key1")
		store.Delete("never-written")
	})
	_, ok = store.Get("key1")
	assert.False(t, ok)
}

func TestStoreLastWriteWins(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	store.Put("key1", []byte("old"))
	store.Put("key1", []byte("new"))

	val, ok := store.Get("key1")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), val)
	assert.Equal(t, 1, store.Len())
}

func TestStorePutIsIdempotent(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	store.Put("k", []byte("v"))
	store.Put("k", []byte("v"))

	val, _ := store.Get("k")
	assert.Equal(t, []byte("v"), val)
	assert.Equal(t, []string{"k"}, store.Keys())
}

func TestStoreCopiesValues(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	in := []byte("abc")
	store.Put("k", in)
	in[0] = 'X'

	out, _ := store.Get("k")
	assert.Equal(t, []byte("abc"), out, "caller mutation after Put must not leak in")

	out[1] = 'Y'
	again, _ := store.Get("k")
	assert.Equal(t, []byte("abc"), again, "caller mutation after Get must not leak in")
}

func TestStoreGenerations(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	g1 := store.Put("k", []byte("1"))
	g2 := store.Put("k", []byte("2"))
	g3 := store.Put("other", []byte("3"))

	assert.Less(t, g1, g2)
	assert.Less(t, g2, g3)

	t.Run("stale generation leaves value alone", func(t *testing.T) {
		assert.False(t, store.DeleteIfGeneration("k", g1))
		val, ok := store.Get("k")
		require.True(t, ok)
		assert.Equal(t, []byte("2"), val)
	})

	t.Run("current generation deletes", func(t *testing.T) {
		assert.True(t, store.DeleteIfGeneration("k", g2))
		_, ok := store.Get("k")
		assert.False(t, ok)
	})

	t.Run("missing key", func(t *testing.T) {
		assert.False(t, store.DeleteIfGeneration("k", g2))
	})
}

func TestStoreKeysSorted(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	store.Put("b.example/x", []byte("1"))
	store.Put("a.example/y", []byte("2"))
	store.Put("c.example/z", []byte("3"))
	store.Delete("c.example/z")

	assert.Equal(t, []string{"a.example/y", "b.example/x"}, store.Keys())
}

func TestStoreConcurrentWrites(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Put("key", []byte("value-"+strconv.Itoa(i)))
		}(i)
	}

	wg.Wait()

	_, ok := store.Get("key")
	assert.True(t, ok)
}

func TestStoreConcurrentReadersNeverSeeTornValues(t *testing.T) {
	store := NewStore(metrics.NewRegistry())

	// Every written value is one byte repeated, so a torn read would mix bytes.
	values := make([][]byte, 8)
	for i := range values {
		values[i] = bytes.Repeat([]byte{byte('a' + i)}, 4096)
	}
	store.Put("key", values[0])

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				store.Put("key", values[(w+i)%len(values)])
			}
		}(w)
	}

	torn := 0
	for i := 0; i < 2000; i++ {
		val, ok := store.Get("key")
		require.True(t, ok)
		if len(val) != 4096 || !bytes.Equal(val, bytes.Repeat(val[:1], 4096)) {
			torn++
		}
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, torn)
}

func TestStoreMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	store := NewStore(reg)

	store.Put("a", []byte("1"))
	store.Put("a", []byte("2"))
	store.Put("b", []byte("3"))
	store.Get("a")
	store.Get("missing")
	store.Delete("b")
	store.Delete("b")

	snap := reg.Snapshot()
	assert.Equal(t, int64(3), snap[string(metrics.CacheSetsTotal)])
	assert.Equal(t, int64(2), snap[string(metrics.CacheGetsTotal)])
	assert.Equal(t, int64(1), snap[string(metrics.CacheMissesTotal)])
	assert.Equal(t, int64(2), snap[string(metrics.CacheDeletesTotal)])
	assert.Equal(t, int64(1), snap[string(metrics.CacheKeysTotal)])
}
