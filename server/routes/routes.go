// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package routes holds the HTTP handlers of phixiv.
//
// Handlers return an error instead of writing one; they are wrapped in
// middleware.CatchError, which picks the status code.
package routes

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core"
)

// Listings returns artwork listings, usually through the listing cache.
type Listings interface {
	GetOrBuild(ctx context.Context, language, illustID, host string) (*core.ArtworkListing, error)
}

// Proxier streams an asset from pixiv's CDN to the client.
type Proxier interface {
	Proxy(ctx context.Context, w http.ResponseWriter, target string, maxAge time.Duration) error
}

// Handlers serves every route. It is safe for concurrent use.
type Handlers struct {
	cfg      *config.ServerConfig
	listings Listings
	proxy    Proxier
}

// New returns the handlers for cfg.
func New(cfg *config.ServerConfig, listings Listings, proxy Proxier) *Handlers {
	return &Handlers{
		cfg:      cfg,
		listings: listings,
		proxy:    proxy,
	}
}
