package cache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/assets-manifest/internal/domain"
	"github.com/quantmind-br/assets-manifest/internal/utils"
)

func newMemCache(t *testing.T) *BadgerCache {
	t.Helper()
	cache, err := NewBadgerCache(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Empty(t, opts.Directory)
	assert.False(t, opts.InMemory)
	assert.Nil(t, opts.Logger)
	assert.Equal(t, DefaultGCInterval, opts.GCInterval)
}

func TestGenerateKey(t *testing.T) {
	a := GenerateKey("dist/main.js", "10")
	assert.Len(t, a, 64)
	assert.Equal(t, a, GenerateKey("dist/main.js", "10"), "stable")
	assert.NotEqual(t, a, GenerateKey("dist/main.js1", "0"), "parts are separated")
	assert.Equal(t, "digest:"+a, GenerateKeyWithPrefix(PrefixDigest, "dist/main.js", "10"))
}

func TestDigestKey(t *testing.T) {
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC)
	base := DigestKey("dist/main.js", 100, mtime, []string{"sha256"})

	tests := []struct {
		name string
		key  string
		same bool
	}{
		{"same identity", DigestKey("dist/main.js", 100, mtime, []string{"sha256"}), true},
		{"unclean path", DigestKey("dist/./main.js", 100, mtime, []string{"sha256"}), true},
		{"size changed", DigestKey("dist/main.js", 101, mtime, []string{"sha256"}), false},
		{"mtime changed", DigestKey("dist/main.js", 100, mtime.Add(time.Second), []string{"sha256"}), false},
		{"algorithms changed", DigestKey("dist/main.js", 100, mtime, []string{"sha256", "sha384"}), false},
		{"path changed", DigestKey("dist/other.js", 100, mtime, []string{"sha256"}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, base, tt.key)
			} else {
				assert.NotEqual(t, base, tt.key)
			}
		})
	}
}

// TestNewBadgerCache tests creating cache
func TestNewBadgerCache(t *testing.T) {
	t.Run("creates in-memory cache", func(t *testing.T) {
		cache, err := NewBadgerCache(Options{InMemory: true})
		require.NoError(t, err)
		assert.NotNil(t, cache)
		require.NoError(t, cache.Close())
	})

	t.Run("creates file-based cache with temp directory", func(t *testing.T) {
		dir := t.TempDir()
		cache, err := NewBadgerCache(Options{Directory: dir, GCInterval: time.Millisecond})
		require.NoError(t, err)
		assert.Equal(t, dir, cache.Dir())
		require.NoError(t, cache.Close())
	})

	t.Run("creates file-based cache in default location", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("HOME", tmpDir)

		cache, err := NewBadgerCache(Options{})
		require.NoError(t, err)
		require.NoError(t, cache.Close())

		_, err = os.Stat(filepath.Join(tmpDir, ".assets-manifest", "cache"))
		assert.NoError(t, err)
	})
}

func TestBadgerCache_GetSet(t *testing.T) {
	cache := newMemCache(t)
	ctx := context.Background()

	value, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	assert.True(t, IsMiss(err))
	assert.Nil(t, value)

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Hour))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, cache.Set(ctx, "k", []byte("v2"), 0))
	got, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got, "overwrite without ttl")
}

func TestBadgerCache_HasDelete(t *testing.T) {
	cache := newMemCache(t)
	ctx := context.Background()

	assert.False(t, cache.Has(ctx, "k"))
	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Hour))
	assert.True(t, cache.Has(ctx, "k"))

	require.NoError(t, cache.Delete(ctx, "k"))
	assert.False(t, cache.Has(ctx, "k"))
	assert.NoError(t, cache.Delete(ctx, "never-set"))
}

func TestBadgerCache_CountPruneStats(t *testing.T) {
	cache := newMemCache(t)
	ctx := context.Background()
	mtime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		key := DigestKey(fmt.Sprintf("dist/%d.js", i), 1, mtime, []string{"sha256"})
		require.NoError(t, cache.Set(ctx, key, []byte("v"), time.Hour))
	}
	require.NoError(t, cache.Set(ctx, "other", []byte("v"), time.Hour))

	assert.Equal(t, int64(4), cache.Size())
	assert.Equal(t, int64(3), cache.Count(PrefixDigest+":"))

	stats := cache.Stats()
	assert.Equal(t, int64(4), stats.Entries)
	assert.Equal(t, int64(3), stats.Digests)

	require.NoError(t, cache.Prune(PrefixDigest))
	assert.Equal(t, int64(1), cache.Size())
	assert.True(t, cache.Has(ctx, "other"))

	require.NoError(t, cache.Clear())
	assert.Zero(t, cache.Size())
}

func TestBadgerCache_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := utils.NewLogger(utils.LoggerOptions{Level: "debug", Format: "json", Output: &buf})

	l := badgerLogger{logger.WithComponent("cache")}
	l.Warningf("value log %s\n", "truncated")
	l.Infof("compaction done")
	l.Debugf("level 0 flush")

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"message":"value log truncated"`)
	assert.Contains(t, out, `"message":"compaction done"`)
	assert.NotContains(t, out, "level 0 flush", "badger debug output is trace level")
	assert.Contains(t, out, `"component":"cache"`)

	cache, err := NewBadgerCache(Options{InMemory: true, Logger: logger})
	require.NoError(t, err)
	require.NoError(t, cache.Close())
}

func TestBadgerCache_ContextCancellation(t *testing.T) {
	cache := newMemCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, cache.Set(ctx, "k", []byte("v"), time.Hour), context.Canceled)
	_, err := cache.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, cache.Delete(ctx, "k"), context.Canceled)
	assert.False(t, cache.Has(ctx, "k"))
}

// TestBadgerCache_ConcurrentAccess tests concurrent reads and writes
func TestBadgerCache_ConcurrentAccess(t *testing.T) {
	cache := newMemCache(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("asset-%d", i)
			assert.NoError(t, cache.Set(ctx, key, []byte(key), time.Hour))
			_, err := cache.Get(ctx, key)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(50), cache.Size())
}

func TestDigests_RoundTrip(t *testing.T) {
	ctx := context.Background()
	d := NewDigests(newMemCache(t), 0)
	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	algs := []string{"sha256", "sha384"}

	_, err := d.Lookup(ctx, "dist/main.js", 12, mtime, algs)
	assert.True(t, IsMiss(err))

	require.NoError(t, d.Store(ctx, domain.DigestEntry{
		Path:       "dist/main.js",
		Size:       12,
		ModTime:    mtime,
		Algorithms: algs,
		Integrity:  "sha256-a sha384-b",
	}))

	got, err := d.Lookup(ctx, "dist/main.js", 12, mtime, algs)
	require.NoError(t, err)
	assert.Equal(t, "sha256-a sha384-b", got)

	_, err = d.Lookup(ctx, "dist/main.js", 13, mtime, algs)
	assert.True(t, IsMiss(err), "size change invalidates")
}
