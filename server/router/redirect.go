// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// The code in this file sends requests we don't serve back to pixiv.net, so
// that swapping pixiv.net for our domain never breaks a link.

package router

import (
	"net/http"
)

const pixivOrigin = "https://www.pixiv.net"

// pixivRedirect redirects to the same path and query on pixiv. The root
// path goes to providerURL instead.
func pixivRedirect(providerURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := providerURL
		if r.URL.Path != "/" {
			target = pixivOrigin + r.URL.RequestURI()
		}

		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
	}
}
