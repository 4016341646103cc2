// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package core turns a pixiv illustration id into an [ArtworkListing] and keeps
built listings in a bounded [ListingCache].

A listing is built from exactly one request to pixiv's ajax endpoint:

	cfg := &config.ServerConfig{}
	cfg.SetDefaults()

	client := requests.NewClient(cfg, nil)
	builder := core.NewBuilder(cfg, client)

	cache, err := core.NewListingCache(cfg, builder)
	if err != nil {
		panic(err)
	}

	listing, err := cache.GetOrBuild(ctx, "en", "115365120", "phixiv.example")

Captions are kept as HTML in [ArtworkListing.Description];
use [ExtractCaptionText] for surfaces that must not render markup.
*/
package core
