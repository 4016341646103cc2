// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"net/http"
	"net/url"
	"strings"

	"codeberg.org/phixiv/phixiv/server/utils"
)

// ImageProxy streams r's path from the pximg base. Mount it behind
// router.StripPrefix so that the path starts at the pximg root.
func (h *Handlers) ImageProxy(w http.ResponseWriter, r *http.Request) error {
	return h.proxyPath(w, r, h.cfg.Proxy.PximgBase)
}

// UgoiraProxy streams the rendered video of an ugoira, {id}.mp4, from the
// ugoira renderer base.
func (h *Handlers) UgoiraProxy(w http.ResponseWriter, r *http.Request) error {
	return h.proxyPath(w, r, h.cfg.Proxy.UgoiraBase)
}

func (h *Handlers) proxyPath(w http.ResponseWriter, r *http.Request, base url.URL) error {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/")
	if path == "" {
		http.NotFound(w, r)

		return nil
	}

	return h.proxy.Proxy(r.Context(), w, utils.JoinURL(base, path), h.cfg.Proxy.MaxAge)
}
