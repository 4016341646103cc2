// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package router

import (
	"fmt"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/server/middleware"
	"codeberg.org/phixiv/phixiv/server/middleware/limiter"
	"codeberg.org/phixiv/phixiv/server/middleware/set_request_context"
)

func (router *Router) RegisterMiddleware(cfg *config.ServerConfig) error {
	compress, err := middleware.Compress()
	if err != nil {
		return fmt.Errorf("failed to create compression middleware: %w", err)
	}

	// the first middleware is the most outer / first executed one
	router.Use(middleware.WithServerTiming)
	router.Use(middleware.NormalizeURL)                // handle trailing slashes
	router.Use(set_request_context.WithRequestContext) // needed for everything else
	router.Use(limiter.DetectCrawler)                  // artwork pages branch on it
	router.Use(middleware.SetResponseHeaders(cfg))     // all pages need this
	router.Use(compress)

	if cfg.Limiter.Enabled {
		router.Use(limiter.New(cfg).Evaluate)
	}

	return nil
}
