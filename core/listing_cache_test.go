// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBuildFailed = errors.New("build failed")

// countingBuilder builds a small listing per id and counts its calls.
type countingBuilder struct {
	calls atomic.Int32

	mu       sync.Mutex
	failures int // number of leading calls that fail

	// when set, every build blocks until it is closed
	release chan struct{}
}

func (b *countingBuilder) Build(_ context.Context, language, rawID, _ string) (*ArtworkListing, error) {
	b.calls.Add(1)

	if b.release != nil {
		<-b.release
	}

	b.mu.Lock()
	fail := b.failures > 0
	if fail {
		b.failures--
	}
	b.mu.Unlock()

	if fail {
		return nil, errBuildFailed
	}

	listing := testListing(2)
	listing.IllustID = CleanIllustID(rawID)
	listing.Language = language
	listing.Title = "Title " + listing.IllustID

	return listing, nil
}

func newTestCache(t *testing.T, size int, compress bool, builder ListingBuilder) *ListingCache {
	t.Helper()

	cfg := testConfig()
	cfg.Cache.Size = size
	cfg.Cache.Compress = compress

	cache, err := NewListingCache(cfg, builder)
	require.NoError(t, err)

	return cache
}

func TestListingCacheHit(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		builder := &countingBuilder{}
		cache := newTestCache(t, 4, compress, builder)

		first, err := cache.GetOrBuild(context.Background(), "en", "123", "phixiv.example")
		require.NoError(t, err)

		second, err := cache.GetOrBuild(context.Background(), "en", "123", "phixiv.example")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), builder.calls.Load())
	}
}

func TestListingCacheReturnsCopies(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, 4, false, &countingBuilder{})

	first, err := cache.GetOrBuild(context.Background(), "en", "123", "phixiv.example")
	require.NoError(t, err)

	first.Title = "changed"
	first.ImageProxyURLs[0] = "changed"

	second, err := cache.GetOrBuild(context.Background(), "en", "123", "phixiv.example")
	require.NoError(t, err)

	assert.Equal(t, "Title 123", second.Title)
	assert.NotEqual(t, "changed", second.ImageProxyURLs[0])
}

func TestListingCacheKey(t *testing.T) {
	t.Parallel()

	builder := &countingBuilder{}
	cache := newTestCache(t, 4, false, builder)

	ctx := context.Background()

	// trailing garbage is not part of the key
	_, err := cache.GetOrBuild(ctx, "en", "123", "a.example")
	require.NoError(t, err)
	_, err = cache.GetOrBuild(ctx, "en", "123#2", "b.example")
	require.NoError(t, err)
	assert.Equal(t, int32(1), builder.calls.Load())

	// the language is
	listing, err := cache.GetOrBuild(ctx, "jp", "123", "a.example")
	require.NoError(t, err)
	assert.Equal(t, "jp", listing.Language)
	assert.Equal(t, int32(2), builder.calls.Load())

	assert.Equal(t, "jp_123", CacheKey("jp", "123"))
}

func TestListingCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	builder := &countingBuilder{}
	cache := newTestCache(t, 3, false, builder)

	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := cache.GetOrBuild(ctx, "en", id, "phixiv.example")
		require.NoError(t, err)
	}

	// touch 1 so that 2 is the oldest untouched key
	_, err := cache.GetOrBuild(ctx, "en", "1", "phixiv.example")
	require.NoError(t, err)

	_, err = cache.GetOrBuild(ctx, "en", "4", "phixiv.example")
	require.NoError(t, err)

	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, int32(4), builder.calls.Load())

	for _, id := range []string{"1", "3", "4"} {
		_, err := cache.GetOrBuild(ctx, "en", id, "phixiv.example")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(4), builder.calls.Load(), "retained keys must not be rebuilt")

	_, err = cache.GetOrBuild(ctx, "en", "2", "phixiv.example")
	require.NoError(t, err)
	assert.Equal(t, int32(5), builder.calls.Load(), "evicted key must be rebuilt")
}

func TestListingCacheDoesNotStoreFailures(t *testing.T) {
	t.Parallel()

	builder := &countingBuilder{failures: 1}
	cache := newTestCache(t, 4, false, builder)

	_, err := cache.GetOrBuild(context.Background(), "en", "123", "phixiv.example")
	require.ErrorIs(t, err, errBuildFailed)
	assert.Zero(t, cache.Len())

	listing, err := cache.GetOrBuild(context.Background(), "en", "123", "phixiv.example")
	require.NoError(t, err)
	assert.Equal(t, "123", listing.IllustID)
	assert.Equal(t, int32(2), builder.calls.Load())
}

func TestListingCacheInvalidIdentifierIsNotStored(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	cache := newTestCache(t, 4, false, NewBuilder(testConfig(), fetcher))

	_, err := cache.GetOrBuild(context.Background(), "en", "abc", "phixiv.example")

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, InvalidIdentifier, buildErr.Kind)
	assert.Zero(t, fetcher.calls())
	assert.Zero(t, cache.Len())
}

// Concurrent misses on one key are not merged; each caller builds.
func TestListingCacheConcurrentMissesBuildIndependently(t *testing.T) {
	t.Parallel()

	builder := &countingBuilder{release: make(chan struct{})}
	cache := newTestCache(t, 4, false, builder)

	var wg sync.WaitGroup

	results := make([]*ArtworkListing, 2)

	for i := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()

			listing, err := cache.GetOrBuild(context.Background(), "en", "123", "phixiv.example")
			assert.NoError(t, err)

			results[i] = listing
		}()
	}

	require.Eventually(t, func() bool { return builder.calls.Load() == 2 }, time.Second, time.Millisecond)

	close(builder.release)
	wg.Wait()

	assert.Equal(t, results[0], results[1])
	assert.Equal(t, 1, cache.Len())

	// the entry written last serves later lookups
	_, err := cache.GetOrBuild(context.Background(), "en", "123", "phixiv.example")
	require.NoError(t, err)
	assert.Equal(t, int32(2), builder.calls.Load())
}

func TestNewListingCacheRejectsInvalidSize(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Cache.Size = 0

	_, err := NewListingCache(cfg, &countingBuilder{})
	require.Error(t, err)
}
