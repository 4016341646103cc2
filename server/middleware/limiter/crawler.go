// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package limiter

import (
	"net/http"
	"strings"

	"codeberg.org/phixiv/phixiv/server/request_context"
)

// crawlerSubstrings lists case-insensitive User-Agent substrings of
// link-preview fetchers, search engines and non-browser clients.
var crawlerSubstrings = []string{
	"bot",
	"crawler",
	"spider",
	"slurp",
	"preview",
	"embed",
	"facebookexternalhit",
	"facebookcatalog",
	"iframely",
	"mastodon",
	"misskey",
	"pleroma",
	"akkoma",
	"firefish",
	"sharkey",
	"gotosocial",
	"whatsapp",
	"skypeuripreview",
	"vkshare",
	"feedfetcher",
	"googleimageproxy",
	"headlesschrome",
	"archive.org_bot",
	"curl",
	"wget",
	"python",
	"go-http-client",
	"okhttp",
	"java",
	"libwww-perl",
	"httpclient",
	"ruby",
	"scrapy",
	"synhttpclient",
	"universalfeedparser",
}

// IsCrawler reports whether userAgent belongs to an automated client.
// An empty User-Agent counts as automated since browsers always send one.
func IsCrawler(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}

	ua := strings.ToLower(userAgent)

	for _, sub := range crawlerSubstrings {
		if strings.Contains(ua, sub) {
			return true
		}
	}

	return false
}

// DetectCrawler records in the request context whether the client is a crawler.
func DetectCrawler(w http.ResponseWriter, r *http.Request, next http.Handler) {
	request_context.FromRequest(r).Crawler = IsCrawler(r.Header.Get("User-Agent"))

	next.ServeHTTP(w, r)
}
