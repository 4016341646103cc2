// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core/metrics"
	"codeberg.org/phixiv/phixiv/core/requests/lrucache"
)

// ListingBuilder builds a listing on a cache miss. *Builder implements it.
type ListingBuilder interface {
	Build(ctx context.Context, language, rawID, host string) (*ArtworkListing, error)
}

// ListingCache keeps the most recently used listings in memory.
//
// Entries never expire; they leave the cache only when it is full. A
// failed build is never stored. Concurrent misses on the same key each
// build the listing, and the last one to finish is kept.
type ListingCache struct {
	builder ListingBuilder
	entries *lrucache.Cache
}

// NewListingCache returns an empty cache sized by cfg.Cache.Size.
func NewListingCache(cfg *config.ServerConfig, builder ListingBuilder) (*ListingCache, error) {
	opts := []lrucache.Option{
		lrucache.WithEvictionCallback(func(key string) {
			metrics.CacheEvictions.Inc()
			log.Debug().Str("key", key).Msg("Listing evicted")
		}),
	}

	if cfg.Cache.Compress {
		opts = append(opts, lrucache.WithCompression())
	}

	entries, err := lrucache.New(cfg.Cache.Size, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create listing cache: %w", err)
	}

	return &ListingCache{builder: builder, entries: entries}, nil
}

// CacheKey returns the key a listing is stored under.
func CacheKey(language, illustID string) string {
	return language + "_" + illustID
}

// GetOrBuild returns the listing for illustID in language, building and
// storing it on a miss. The returned listing is the caller's own copy.
func (c *ListingCache) GetOrBuild(ctx context.Context, language, illustID, host string) (*ArtworkListing, error) {
	key := CacheKey(language, CleanIllustID(illustID))

	if listing, ok := c.lookup(key); ok {
		metrics.RecordCacheLookup(true)

		return listing, nil
	}

	metrics.RecordCacheLookup(false)

	listing, err := c.builder.Build(ctx, language, illustID, host)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(listing)
	if err != nil {
		// still usable for this request
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to encode listing for cache")

		return listing, nil
	}

	c.entries.Add(key, data)

	return listing, nil
}

// Len returns the number of cached listings.
func (c *ListingCache) Len() int {
	return c.entries.Len()
}

func (c *ListingCache) lookup(key string) (*ArtworkListing, bool) {
	data, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}

	var listing ArtworkListing
	if err := json.Unmarshal(data, &listing); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		c.entries.Remove(key)

		return nil, false
	}

	return &listing, true
}
