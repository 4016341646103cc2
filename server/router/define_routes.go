// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/server/middleware"
	"codeberg.org/phixiv/phixiv/server/routes"
)

// Subdomain labels with a dedicated route table.
const (
	ImageSubdomain  = "i"
	OEmbedSubdomain = "e"
)

// DefineRoutes sets up all the routes for the application using our custom Router.
//
// It registers no middleware.
func (router *Router) DefineRoutes(cfg *config.ServerConfig, h *routes.Handlers) {
	// Proxy routes
	// /i/ugoira/ is more specific than /i/{first}/{rest...}, so it wins.
	router.Handle("GET /i/ugoira/{file}", middleware.CatchError(StripPrefix("/i/ugoira", h.UgoiraProxy)))
	router.Handle("GET /i/{first}/{rest...}", middleware.CatchError(StripPrefix("/i", h.ImageProxy)))

	// Artwork routes
	router.HandleFunc("GET /artworks/{id}", middleware.CatchError(h.ArtworkPage))
	router.HandleFunc("GET /artworks/{id}/{index}", middleware.CatchError(h.ArtworkPage))
	router.HandleFunc("GET /i/{id}", middleware.CatchError(h.ArtworkPage))
	router.HandleFunc("GET /member_illust.php", middleware.CatchError(h.MemberIllust))

	// ActivityPub and oEmbed routes
	router.HandleFunc("GET /api/v1/statuses/{id}", middleware.CatchError(h.ActivityStatus))
	router.HandleFunc("GET /oembed", middleware.CatchError(h.OEmbed))

	// JSON API routes
	router.HandleFunc("GET /api/info", middleware.CatchError(h.ArtworkInfo))

	if cfg.Metrics.Enabled {
		router.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	// "/{language}/artworks/{id}" overlaps "/i/{first}/{rest...}" without either
	// being more specific, so language-prefixed routes live on their own mux.
	router.Handle("/", localizedRoutes(cfg, h))

	// i.<host>/<path> mirrors i.pximg.net/<path>
	router.Subdomain(ImageSubdomain).Handle("GET /{path...}", middleware.CatchError(h.ImageProxy))

	// e.<host> only serves oEmbed documents
	router.Subdomain(OEmbedSubdomain).HandleFunc("GET /{path...}", middleware.CatchError(h.OEmbed))
}

func localizedRoutes(cfg *config.ServerConfig, h *routes.Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{language}/artworks/{id}", middleware.CatchError(h.ArtworkPage))
	mux.HandleFunc("GET /{language}/artworks/{id}/{index}", middleware.CatchError(h.ArtworkPage))

	// everything else belongs to pixiv
	mux.Handle("/", pixivRedirect(cfg.Embed.ProviderURL))

	return mux
}
