// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core"
	"codeberg.org/phixiv/phixiv/server/middleware"
	"codeberg.org/phixiv/phixiv/server/middleware/limiter"
	"codeberg.org/phixiv/phixiv/server/middleware/set_request_context"
)

const (
	testHost    = "phixiv.example"
	discordUA   = "Mozilla/5.0 (compatible; Discordbot/2.0; +https://discordapp.com)"
	browserUA   = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	profileURL  = "https://phixiv.example/i/user-profile/img/1_170.jpg"
	captionText = "caption text"
)

type listingRequest struct {
	language, illustID, host string
}

// fakeListings returns listing for every id and records the requests.
type fakeListings struct {
	mu       sync.Mutex
	requests []listingRequest

	listing *core.ArtworkListing
	err     error
}

func (f *fakeListings) GetOrBuild(_ context.Context, language, illustID, host string) (*core.ArtworkListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, listingRequest{language, illustID, host})

	if f.err != nil {
		return nil, f.err
	}

	listing := *f.listing

	return &listing, nil
}

func (f *fakeListings) last(t *testing.T) listingRequest {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.requests)

	return f.requests[len(f.requests)-1]
}

type fakeProxier struct {
	mu      sync.Mutex
	targets []string
	maxAge  time.Duration
}

func (f *fakeProxier) Proxy(_ context.Context, w http.ResponseWriter, target string, maxAge time.Duration) error {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.maxAge = maxAge
	f.mu.Unlock()

	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write([]byte("jpeg"))

	return nil
}

func testConfig(t *testing.T) *config.ServerConfig {
	t.Helper()

	cfg := &config.ServerConfig{}
	cfg.SetDefaults()

	pximg, err := url.Parse("https://i.pximg.net")
	require.NoError(t, err)

	ugoira, err := url.Parse("https://ugoira.com/api/mp4")
	require.NoError(t, err)

	cfg.Proxy.PximgBase = *pximg
	cfg.Proxy.UgoiraBase = *ugoira

	return cfg
}

func testListing() *core.ArtworkListing {
	profile := profileURL

	return &core.ArtworkListing{
		ImageProxyURLs: []string{
			"https://phixiv.example/i/img-master/img/123_p0_master1200.jpg",
			"https://phixiv.example/i/img-master/img/123_p1_master1200.jpg",
			"https://phixiv.example/i/img-master/img/123_p2_master1200.jpg",
		},
		Title:           "Title & more",
		AIGenerated:     true,
		Description:     captionText + `<br /><a href="https://example.com/">link</a>`,
		Tags:            []string{"#cat", "#dog"},
		URL:             "https://www.pixiv.net/artworks/123",
		AuthorName:      "artist",
		AuthorID:        "42",
		CreateDate:      "2023-01-02T12:04:05+09:00",
		IllustID:        "123",
		ProfileImageURL: &profile,
		Language:        "en",
	}
}

func ugoiraListing() *core.ArtworkListing {
	listing := testListing()
	listing.IsUgoira = true
	listing.ImageProxyURLs = []string{
		"https://phixiv.example/i/ugoira/123.mp4",
		"https://phixiv.example/i/img-master/img/123_p0_master1200.jpg",
	}

	return listing
}

// testServer mounts the handlers the way the router does, with the
// middleware they depend on.
func testServer(cfg *config.ServerConfig, listings Listings, proxy Proxier) http.Handler {
	h := New(cfg, listings, proxy)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{language}/artworks/{id}", middleware.CatchError(h.ArtworkPage))
	mux.HandleFunc("GET /{language}/artworks/{id}/{index}", middleware.CatchError(h.ArtworkPage))
	mux.HandleFunc("GET /artworks/{id}", middleware.CatchError(h.ArtworkPage))
	mux.HandleFunc("GET /artworks/{id}/{index}", middleware.CatchError(h.ArtworkPage))
	mux.HandleFunc("GET /member_illust.php", middleware.CatchError(h.MemberIllust))
	mux.HandleFunc("GET /api/v1/statuses/{id}", middleware.CatchError(h.ActivityStatus))
	mux.HandleFunc("GET /api/info", middleware.CatchError(h.ArtworkInfo))
	mux.HandleFunc("GET /oembed", middleware.CatchError(h.OEmbed))

	return middleware.Wrap(set_request_context.WithRequestContext,
		middleware.Wrap(limiter.DetectCrawler, mux))
}

func get(t *testing.T, handler http.Handler, host, target, userAgent string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Host = host
	req.Header.Set("User-Agent", userAgent)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	return rr
}

func parseHTML(t *testing.T, rr *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(rr.Body)
	require.NoError(t, err)

	return doc
}
