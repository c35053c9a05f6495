package esp_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dusk-indust/espgraph/internal/esp"
	"github.com/dusk-indust/espgraph/internal/esp/esptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCache_ColdThenWarm(t *testing.T) {
	dir := t.TempDir()
	path := esptest.New().Record("WEAP", 1).Write(t, dir, "Mod.esp")
	cache := esp.NewCache()
	ctx := context.Background()

	first, err := cache.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, esp.CacheStats{Entries: 1, Hits: 0, Misses: 1}, cache.Stats())

	second, err := cache.Get(ctx, path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, esp.CacheStats{Entries: 1, Hits: 1, Misses: 1}, cache.Stats())
}

func TestCache_KeyIsCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	path := esptest.New().Record("WEAP", 1).Write(t, dir, "Mod.esp")
	cache := esp.NewCache()
	ctx := context.Background()

	first, err := cache.Get(ctx, path)
	require.NoError(t, err)

	// Served from the cache without touching disk: the upper-cased path
	// need not exist on a case-sensitive filesystem.
	upper := filepath.Join(dir, strings.ToUpper("Mod.esp"))
	second, err := cache.Get(ctx, upper)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCache_SeparateInstancesDoNotShare(t *testing.T) {
	dir := t.TempDir()
	path := esptest.New().Record("WEAP", 1).Write(t, dir, "Mod.esp")
	ctx := context.Background()

	a, err := esp.NewCache().Get(ctx, path)
	require.NoError(t, err)
	b, err := esp.NewCache().Get(ctx, path)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Late.esp")
	cache := esp.NewCache()
	ctx := context.Background()

	_, err := cache.Get(ctx, path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, esptest.New().Bytes(), 0o644))
	p, err := cache.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "Late.esp", p.FileName)
}

func TestCache_ConcurrentGetSharesOneParse(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := esptest.New().Record("WEAP", 1).Write(t, dir, "Mod.esp")
	cache := esp.NewCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	got := make([]*esp.Plugin, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := cache.Get(ctx, path)
			assert.NoError(t, err)
			got[i] = p
		}()
	}
	wg.Wait()

	for _, p := range got {
		assert.Same(t, got[0], p)
	}
	assert.Equal(t, 1, cache.Stats().Misses)
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	p := esptest.New()
	for i := range 2000 {
		p.Record("STAT", uint32(0x100+i), esptest.Str("EDID", "Stat"))
	}
	path := p.Write(t, dir, "Big.esp")

	for range 20 {
		cache := esp.NewCache()
		ctx, cancel := context.WithCancel(context.Background())

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if i%2 == 0 {
					_, err := cache.Get(ctx, path)
					if err != nil {
						assert.ErrorIs(t, err, context.Canceled)
					}
					return
				}
				got, err := cache.Get(context.Background(), path)
				if assert.NoError(t, err) {
					assert.Len(t, got.Records, 2000)
				}
			}()
		}
		cancel()
		wg.Wait()
	}
}

func TestCache_GetCancelled(t *testing.T) {
	dir := t.TempDir()
	path := esptest.New().Record("WEAP", 1).Write(t, dir, "Mod.esp")
	cache := esp.NewCache()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Get(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cache.Stats().Entries)

	got, err := cache.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, got.Records, 1)
}

func TestCache_LoadAll(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	good := esptest.New().Record("WEAP", 1).Write(t, dir, "Good.esp")
	bad := esptest.WriteFile(t, dir, "Bad.esp", esptest.Record("WEAP", 1, 0))
	other := esptest.New().Record("ARMO", 2).Write(t, dir, "Other.esp")

	cache := esp.NewCache(esp.WithWorkers(2))
	results, err := cache.LoadAll(context.Background(), []string{good, bad, other})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, "Good.esp", results[0].Plugin.FileName)

	var mh *esp.MalformedHeaderError
	assert.True(t, errors.As(results[1].Err, &mh))
	assert.Nil(t, results[1].Plugin)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, "Other.esp", results[2].Plugin.FileName)

	_, err = cache.Load(context.Background(), []string{good, bad})
	assert.True(t, errors.As(err, &mh))
}

func TestCache_LoadAllCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := esptest.New().Write(t, dir, "Mod.esp")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := esp.NewCache().LoadAll(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}
