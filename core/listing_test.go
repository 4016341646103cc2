// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core/requests"
)

// fakeFetcher serves a fixed body and records the requested URLs.
type fakeFetcher struct {
	mu   sync.Mutex
	urls []string

	body []byte
	err  error
}

func (f *fakeFetcher) GetJSONBody(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()

	return f.body, f.err
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.urls)
}

func testConfig() *config.ServerConfig {
	cfg := &config.ServerConfig{}
	cfg.SetDefaults()

	return cfg
}

// illustFixture returns an ajax body for a three page illustration, with
// mutate applied to the decoded form first.
func illustFixture(t *testing.T, mutate func(body map[string]any)) []byte {
	t.Helper()

	body := map[string]any{
		"illustId":    "123",
		"title":       "Title & <more>",
		"description": `Hi <a href="/jump.php?https%3A%2F%2Fexample.com%2F" target="_blank">link</a><br />bye`,
		"tags": map[string]any{
			"tags": []any{
				map[string]any{"tag": "猫", "translation": map[string]any{"en": "cat"}},
				map[string]any{"tag": "オリジナル"},
			},
		},
		"urls": map[string]any{
			"regular":  "https://i.pximg.net/img-master/img/2024/01/01/00/00/00/123_p0_master1200.jpg",
			"original": "https://i.pximg.net/img-original/img/2024/01/01/00/00/00/123_p0.png",
		},
		"userId":   "42",
		"userName": "artist",
		"extraData": map[string]any{
			"meta": map[string]any{"canonical": "https://www.pixiv.net/artworks/123"},
		},
		"illustType": 0,
		"createDate": "2024-01-01T00:00:00+00:00",
		"userIllusts": map[string]any{
			"120": nil,
			"121": map[string]any{"id": "121"},
			"122": map[string]any{"profileImageUrl": "https://i.pximg.net/user-profile/img/a_50.jpg"},
			"123": map[string]any{"profileImageUrl": "https://i.pximg.net/user-profile/img/b_50.jpg"},
		},
		"pageCount":     3,
		"aiType":        1,
		"bookmarkCount": 5,
		"likeCount":     4,
		"commentCount":  1,
		"viewCount":     100,
		"xRestrict":     0,
	}

	if mutate != nil {
		mutate(body)
	}

	data, err := json.Marshal(body)
	require.NoError(t, err)

	return data
}

func TestBuildListing(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: illustFixture(t, nil)}
	builder := NewBuilder(testConfig(), fetcher)

	listing, err := builder.Build(context.Background(), "en", "123abc#frag", "phixiv.example")
	require.NoError(t, err)

	require.Len(t, fetcher.urls, 1)
	assert.True(t, strings.HasSuffix(fetcher.urls[0], "/ajax/illust/123?lang=en"), fetcher.urls[0])

	assert.Equal(t, []string{
		"https://phixiv.example/i/img-master/img/2024/01/01/00/00/00/123_p0_master1200.jpg",
		"https://phixiv.example/i/img-master/img/2024/01/01/00/00/00/123_p1_master1200.jpg",
		"https://phixiv.example/i/img-master/img/2024/01/01/00/00/00/123_p2_master1200.jpg",
	}, listing.ImageProxyURLs)

	assert.Equal(t, "123", listing.IllustID)
	assert.Equal(t, "Title & <more>", listing.Title)
	assert.Equal(t, []string{"#cat", "#オリジナル"}, listing.Tags)
	assert.Equal(t, "https://www.pixiv.net/artworks/123", listing.URL)
	assert.Equal(t, "artist", listing.AuthorName)
	assert.Equal(t, "42", listing.AuthorID)
	assert.Equal(t, "en", listing.Language)
	assert.False(t, listing.AIGenerated)
	assert.False(t, listing.IsUgoira)
	assert.Equal(t, 5, listing.BookmarkCount)
	assert.Equal(t, 100, listing.ViewCount)
	assert.Equal(t, Safe, listing.XRestrict)
	assert.Equal(t,
		`Hi <a href="https://example.com/" target="_blank">link</a><br />bye`,
		listing.Description)

	require.NotNil(t, listing.ProfileImageURL)
	assert.Equal(t, "https://phixiv.example/i/user-profile/img/a_50.jpg", *listing.ProfileImageURL)
}

func TestBuildListingVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		configure func(cfg *config.ServerConfig)
		mutate    func(body map[string]any)
		language  string
		check     func(t *testing.T, listing *ArtworkListing)
	}{
		{
			name:     "Tag translation falls back to the original text",
			language: "fr",
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.Equal(t, []string{"#猫", "#オリジナル"}, listing.Tags)
			},
		},
		{
			name:   "AI generated",
			mutate: func(body map[string]any) { body["aiType"] = 2 },
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.True(t, listing.AIGenerated)
			},
		},
		{
			name:   "Unrated AI type is not AI generated",
			mutate: func(body map[string]any) { body["aiType"] = 0 },
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.False(t, listing.AIGenerated)
			},
		},
		{
			name: "Original used without regular",
			mutate: func(body map[string]any) {
				body["urls"] = map[string]any{
					"regular":  nil,
					"original": "https://i.pximg.net/img-original/img/2024/01/01/00/00/00/123_p0.png",
				}
				body["pageCount"] = 1
			},
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.Equal(t, []string{
					"https://phixiv.example/i/img-original/img/2024/01/01/00/00/00/123_p0.png",
				}, listing.ImageProxyURLs)
			},
		},
		{
			name:      "Thumbnail type",
			configure: func(cfg *config.ServerConfig) { cfg.Listing.ThumbnailType = "c/600x1200_90_webp/img-master" },
			mutate:    func(body map[string]any) { body["pageCount"] = 2 },
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.Equal(t, []string{
					"https://phixiv.example/i/c/600x1200_90_webp/img-master/img/2024/01/01/00/00/00/123_p0_master1200.jpg",
					"https://phixiv.example/i/c/600x1200_90_webp/img-master/img/2024/01/01/00/00/00/123_p1_master1200.jpg",
				}, listing.ImageProxyURLs)
			},
		},
		{
			name:      "Ugoira with video enabled",
			configure: func(cfg *config.ServerConfig) { cfg.Listing.UgoiraEnabled = true },
			mutate:    func(body map[string]any) { body["illustType"] = 2 },
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.True(t, listing.IsUgoira)
				assert.Equal(t, []string{
					"https://phixiv.example/i/ugoira/123.mp4",
					"https://phixiv.example/i/img-master/img/2024/01/01/00/00/00/123_p0_master1200.jpg",
				}, listing.ImageProxyURLs)
			},
		},
		{
			name: "Ugoira fallback frame uses the thumbnail type",
			configure: func(cfg *config.ServerConfig) {
				cfg.Listing.UgoiraEnabled = true
				cfg.Listing.ThumbnailType = "c/600x1200_90_webp/img-master"
			},
			mutate: func(body map[string]any) { body["illustType"] = 2 },
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.Equal(t, []string{
					"https://phixiv.example/i/ugoira/123.mp4",
					"https://phixiv.example/i/c/600x1200_90_webp/img-master/img/2024/01/01/00/00/00/123_p0_master1200.jpg",
				}, listing.ImageProxyURLs)
			},
		},
		{
			name:   "Ugoira with video disabled",
			mutate: func(body map[string]any) { body["illustType"] = 2 },
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.True(t, listing.IsUgoira)
				assert.Len(t, listing.ImageProxyURLs, 3)
			},
		},
		{
			name:      "Image proxy host",
			configure: func(cfg *config.ServerConfig) { cfg.Listing.ImageProxyHost = "i.phixiv.example" },
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.True(t, strings.HasPrefix(listing.ImageProxyURLs[0], "https://i.phixiv.example/i/"))
				require.NotNil(t, listing.ProfileImageURL)
				assert.True(t, strings.HasPrefix(*listing.ProfileImageURL, "https://i.phixiv.example/i/"))
			},
		},
		{
			name: "No profile image",
			mutate: func(body map[string]any) {
				body["userIllusts"] = map[string]any{"120": nil}
			},
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.Nil(t, listing.ProfileImageURL)
			},
		},
		{
			name:   "Empty recent works sent as an array",
			mutate: func(body map[string]any) { body["userIllusts"] = []any{} },
			check: func(t *testing.T, listing *ArtworkListing) {
				assert.Nil(t, listing.ProfileImageURL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			if tt.configure != nil {
				tt.configure(cfg)
			}

			language := tt.language
			if language == "" {
				language = "en"
			}

			builder := NewBuilder(cfg, &fakeFetcher{body: illustFixture(t, tt.mutate)})

			listing, err := builder.Build(context.Background(), language, "123", "phixiv.example")
			require.NoError(t, err)
			require.NotEmpty(t, listing.ImageProxyURLs)

			tt.check(t, listing)
		})
	}
}

func TestBuildListingErrors(t *testing.T) {
	t.Parallel()

	notFound := &requests.UpstreamError{
		Kind:       requests.KindStatus,
		StatusCode: http.StatusNotFound,
		Message:    "Work has been deleted",
	}

	tests := []struct {
		name       string
		id         string
		mutate     func(body map[string]any)
		fetchErr   error
		wantKind   BuildErrorKind
		wantSchema bool
		wantCalls  int
	}{
		{
			name:      "Non-numeric id",
			id:        "abc123",
			wantKind:  InvalidIdentifier,
			wantCalls: 0,
		},
		{
			name:      "Empty id",
			id:        "",
			wantKind:  InvalidIdentifier,
			wantCalls: 0,
		},
		{
			name: "No image URLs",
			id:   "123",
			mutate: func(body map[string]any) {
				body["urls"] = map[string]any{"regular": nil, "original": nil}
			},
			wantKind:  MissingImageURL,
			wantCalls: 1,
		},
		{
			name: "Relative image URL",
			id:   "123",
			mutate: func(body map[string]any) {
				body["urls"] = map[string]any{"regular": "img-master/123_p0.jpg"}
			},
			wantKind:  InvalidURL,
			wantCalls: 1,
		},
		{
			name: "Invalid profile image URL",
			id:   "123",
			mutate: func(body map[string]any) {
				body["userIllusts"] = map[string]any{"1": map[string]any{"profileImageUrl": "::"}}
			},
			wantKind:  InvalidURL,
			wantCalls: 1,
		},
		{
			name:       "Missing title",
			id:         "123",
			mutate:     func(body map[string]any) { delete(body, "title") },
			wantKind:   Upstream,
			wantSchema: true,
			wantCalls:  1,
		},
		{
			name:       "Zero pages",
			id:         "123",
			mutate:     func(body map[string]any) { body["pageCount"] = 0 },
			wantKind:   Upstream,
			wantSchema: true,
			wantCalls:  1,
		},
		{
			name:       "Non-numeric user id",
			id:         "123",
			mutate:     func(body map[string]any) { body["userId"] = "someone" },
			wantKind:   Upstream,
			wantSchema: true,
			wantCalls:  1,
		},
		{
			name:       "Wrong type",
			id:         "123",
			mutate:     func(body map[string]any) { body["pageCount"] = "three" },
			wantKind:   Upstream,
			wantSchema: true,
			wantCalls:  1,
		},
		{
			name:      "Upstream failure",
			id:        "123",
			fetchErr:  notFound,
			wantKind:  Upstream,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fetcher := &fakeFetcher{body: illustFixture(t, tt.mutate), err: tt.fetchErr}

			listing, err := NewBuilder(testConfig(), fetcher).Build(context.Background(), "en", tt.id, "phixiv.example")
			require.Error(t, err)
			assert.Nil(t, listing)

			var buildErr *BuildError
			require.ErrorAs(t, err, &buildErr)
			assert.Equal(t, tt.wantKind, buildErr.Kind)
			assert.Equal(t, tt.wantCalls, fetcher.calls())

			if tt.wantSchema {
				upstreamErr, ok := buildErr.UpstreamError()
				require.True(t, ok)
				assert.Equal(t, requests.KindSchema, upstreamErr.Kind)
			}

			if tt.fetchErr != nil {
				assert.True(t, errors.Is(err, tt.fetchErr))
				assert.True(t, IsNotFound(err))
			}
		})
	}
}

func TestParseIllustProfileImageDocumentOrder(t *testing.T) {
	t.Parallel()

	body := strings.NewReplacer(
		`"userIllusts":{"120":null,"121":{"id":"121"},"122":{"profileImageUrl":"https://i.pximg.net/user-profile/img/a_50.jpg"},"123":{"profileImageUrl":"https://i.pximg.net/user-profile/img/b_50.jpg"}}`,
		`"userIllusts":{"999":{"profileImageUrl":"https://i.pximg.net/first.jpg"},"100":{"profileImageUrl":"https://i.pximg.net/second.jpg"}}`,
	).Replace(string(illustFixture(t, nil)))

	illust, err := parseIllust([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "https://i.pximg.net/first.jpg", illust.ProfileImageURL)
}

func TestCleanIllustID(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"123":         "123",
		"123abc":      "123",
		"123#2":       "123",
		"123/":        "123",
		"abc":         "",
		"":            "",
		"１２３":         "",
		"0012":        "0012",
		"115365120?x": "115365120",
	}

	for in, want := range tests {
		assert.Equal(t, want, CleanIllustID(in), "CleanIllustID(%q)", in)
	}
}

func testListing(pages int) *ArtworkListing {
	listing := &ArtworkListing{
		Title:       "Title",
		Description: "caption",
		URL:         "https://www.pixiv.net/artworks/123",
		Tags:        []string{"#cat", "#dog"},
		IllustID:    "123",
		Language:    "en",
	}

	for i := range pages {
		listing.ImageProxyURLs = append(listing.ImageProxyURLs, "https://phixiv.example/i/"+string(rune('a'+i)))
	}

	return listing
}

func TestPreviewIndex(t *testing.T) {
	t.Parallel()

	listing := testListing(3)

	for page, want := range map[int]int{-1: 0, 0: 0, 1: 0, 2: 1, 3: 2, 99: 2} {
		assert.Equal(t, want, listing.PreviewIndex(page), "PreviewIndex(%d)", page)
	}

	ugoira := testListing(2)
	ugoira.IsUgoira = true

	assert.Equal(t, 0, ugoira.PreviewIndex(2))
}

func TestPageRange(t *testing.T) {
	t.Parallel()

	listing := testListing(4)
	urls := listing.ImageProxyURLs

	assert.Equal(t, urls[:1], listing.PageRange(0, 0))
	assert.Equal(t, urls[1:3], listing.PageRange(1, 1))
	assert.Equal(t, urls[2:], listing.PageRange(2, 255))
	assert.Equal(t, urls[3:], listing.PageRange(99, 0))
}

func TestActivityID(t *testing.T) {
	t.Parallel()

	id := testListing(3).ActivityID(2)

	assert.Equal(t, "en", id.Language)
	assert.Equal(t, uint32(123), id.ID)
	assert.Equal(t, uint16(2), id.Index)
	assert.Zero(t, id.OffsetEnd)
}

func TestPreviewDescription(t *testing.T) {
	t.Parallel()

	listing := testListing(1)
	listing.Description = `<strong>bold</strong><br />line`

	assert.Equal(t, "bold\nline\n#cat, #dog", listing.PreviewDescription(false))
	assert.Equal(t, "#cat, #dog", listing.PreviewDescription(true))

	listing.AIGenerated = true
	assert.Equal(t, "[AI Generated] bold\nline\n#cat, #dog", listing.PreviewDescription(false))
	assert.Equal(t, "[AI Generated] \n#cat, #dog", listing.PreviewDescription(true))

	listing.Tags = nil
	listing.AIGenerated = false
	assert.Empty(t, listing.PreviewDescription(true))
}

func TestStatusContent(t *testing.T) {
	t.Parallel()

	listing := testListing(1)
	listing.Title = `A & "B"`
	listing.Description = `Hi <a href="https://example.com/">link</a><script>alert(1)</script>`

	content := listing.StatusContent()

	assert.True(t, strings.HasPrefix(content,
		`<a href="https://www.pixiv.net/artworks/123">A &amp; &#34;B&#34;</a><br />Hi <a href="https://example.com/">link</a>`),
		content)
	assert.True(t, strings.HasSuffix(content, "<br />#cat #dog"), content)
	assert.NotContains(t, content, "script")
	assert.NotContains(t, content, "AI Generated")

	listing.AIGenerated = true
	listing.Description = ""
	listing.Tags = nil

	assert.Equal(t,
		`<a href="https://www.pixiv.net/artworks/123">A &amp; &#34;B&#34;</a><br /><b>AI Generated</b>`,
		listing.StatusContent())
}

func TestStatusContentEscapesTags(t *testing.T) {
	t.Parallel()

	listing := testListing(1)
	listing.Description = ""
	listing.Tags = []string{"#<b>x</b>", "#R&D"}

	content := listing.StatusContent()

	assert.True(t, strings.HasSuffix(content, "<br />#&lt;b&gt;x&lt;/b&gt; #R&amp;D"), content)
	assert.NotContains(t, content, "<b>x</b>")
}
