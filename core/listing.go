// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core/activityid"
	"codeberg.org/phixiv/phixiv/server/utils"
)

// AIGeneratedMarker prefixes the plain-text description of AI-generated works.
const AIGeneratedMarker = "[AI Generated] "

// ArtworkListing is the normalized form of one pixiv artwork.
//
// A listing is never modified after it is built; it is shared between
// requests through the ListingCache.
type ArtworkListing struct {
	// ImageProxyURLs holds one URL per page. For ugoira with video
	// rendering enabled it is [video URL, still frame URL] instead.
	// It is never empty.
	ImageProxyURLs []string `json:"image_proxy_urls"`
	Title          string   `json:"title"`
	AIGenerated    bool     `json:"ai_generated"`
	// Description is the caption HTML with jump links repaired.
	Description     string    `json:"description"`
	Tags            []string  `json:"tags"`
	URL             string    `json:"url"`
	AuthorName      string    `json:"author_name"`
	AuthorID        string    `json:"author_id"`
	IsUgoira        bool      `json:"is_ugoira"`
	CreateDate      string    `json:"create_date"`
	IllustID        string    `json:"illust_id"`
	ProfileImageURL *string   `json:"profile_image_url"`
	Language        string    `json:"language"`
	BookmarkCount   int       `json:"bookmark_count"`
	LikeCount       int       `json:"like_count"`
	CommentCount    int       `json:"comment_count"`
	ViewCount       int       `json:"view_count"`
	XRestrict       XRestrict `json:"x_restrict"`
}

// Builder builds listings from pixiv responses.
type Builder struct {
	cfg     *config.ServerConfig
	fetcher Fetcher
}

// NewBuilder returns a Builder that fetches through fetcher.
func NewBuilder(cfg *config.ServerConfig, fetcher Fetcher) *Builder {
	return &Builder{cfg: cfg, fetcher: fetcher}
}

// CleanIllustID returns the leading run of ASCII digits of id.
// Everything from the first other character on is discarded.
func CleanIllustID(id string) string {
	end := strings.IndexFunc(id, func(r rune) bool { return r < '0' || r > '9' })
	if end < 0 {
		return id
	}

	return id[:end]
}

// Build fetches one artwork and builds its listing. host is the host the
// request arrived on; image URLs are rewritten onto it unless an image
// proxy host is configured.
//
// Build is all or nothing: every failure is a *BuildError and no partial
// listing is returned.
func (b *Builder) Build(ctx context.Context, language, rawID, host string) (*ArtworkListing, error) {
	illustID := CleanIllustID(rawID)
	if illustID == "" {
		return nil, &BuildError{Kind: InvalidIdentifier, IllustID: rawID, Err: errEmptyIllustID}
	}

	illust, err := FetchIllust(ctx, b.fetcher, b.cfg.Upstream.BaseURL.String(), illustID, language)
	if err != nil {
		return nil, &BuildError{Kind: Upstream, IllustID: illustID, Err: err}
	}

	return b.fromIllust(illust, language, illustID, b.cfg.ImageHost(host))
}

func (b *Builder) fromIllust(illust *Illust, language, illustID, imageHost string) (*ArtworkListing, error) {
	imageURL := illust.URLs.Regular
	if imageURL == nil {
		imageURL = illust.URLs.Original
	}

	if imageURL == nil {
		return nil, &BuildError{Kind: MissingImageURL, IllustID: illustID, Err: errNoImageURL}
	}

	imagePath, err := proxyPath(*imageURL)
	if err != nil {
		return nil, &BuildError{Kind: InvalidURL, IllustID: illustID, Err: err}
	}

	var profileImageURL *string

	if illust.ProfileImageURL != "" {
		profilePath, err := proxyPath(illust.ProfileImageURL)
		if err != nil {
			return nil, &BuildError{Kind: InvalidURL, IllustID: illustID, Err: err}
		}

		rewritten := "https://" + imageHost + "/i" + profilePath
		profileImageURL = &rewritten
	}

	isUgoira := illust.IllustType == Ugoira

	var imageProxyURLs []string

	if isUgoira && b.cfg.Listing.UgoiraEnabled {
		imageProxyURLs = []string{
			"https://" + imageHost + "/i/ugoira/" + illustID + ".mp4",
			pageURLs(imageHost, imagePath, 1, b.cfg.Listing.ThumbnailType)[0],
		}
	} else {
		imageProxyURLs = pageURLs(imageHost, imagePath, illust.PageCount, b.cfg.Listing.ThumbnailType)
	}

	return &ArtworkListing{
		ImageProxyURLs:  imageProxyURLs,
		Title:           illust.Title,
		AIGenerated:     illust.AIType.IsAIGenerated(),
		Description:     RepairCaptionLinks(illust.Description),
		Tags:            localizeTags(illust.Tags.Tags, language),
		URL:             illust.ExtraData.Meta.Canonical,
		AuthorName:      illust.UserName,
		AuthorID:        illust.UserID,
		IsUgoira:        isUgoira,
		CreateDate:      illust.CreateDate,
		IllustID:        illustID,
		ProfileImageURL: profileImageURL,
		Language:        language,
		BookmarkCount:   illust.BookmarkCount,
		LikeCount:       illust.LikeCount,
		CommentCount:    illust.CommentCount,
		ViewCount:       illust.ViewCount,
		XRestrict:       illust.XRestrict,
	}, nil
}

// proxyPath returns the path of an absolute pixiv URL.
func proxyPath(raw string) (string, error) {
	u, err := utils.ParseURL(raw, "image")
	if err != nil {
		return "", err
	}

	return u.EscapedPath(), nil
}

// pageURLs derives one URL per page from the path of page 0, which carries
// the "_p0_" marker. A non-empty thumbnailType replaces the img-master
// segment on every page.
func pageURLs(host, page0 string, pageCount int, thumbnailType string) []string {
	urls := make([]string, 0, pageCount)

	for i := range pageCount {
		path := page0
		if i > 0 {
			path = strings.ReplaceAll(path, "_p0_", "_p"+strconv.Itoa(i)+"_")
		}

		if thumbnailType != "" {
			path = strings.ReplaceAll(path, "img-master", thumbnailType)
		}

		urls = append(urls, "https://"+host+"/i"+path)
	}

	return urls
}

func localizeTags(tags []Tag, language string) []string {
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		text := tag.Tag
		if translated, ok := tag.Translation[language]; ok {
			text = translated
		}

		out = append(out, "#"+text)
	}

	return out
}

// PreviewIndex returns the zero-based page shown for a 1-based page
// number. 0 selects the first page and numbers past the end select the
// last page. Ugoira always show the first entry.
func (l *ArtworkListing) PreviewIndex(page int) int {
	if l.IsUgoira {
		return 0
	}

	return max(min(max(page, 1), len(l.ImageProxyURLs))-1, 0)
}

// PageRange returns the URLs of pages index through index+offsetEnd, both
// zero-based and clamped to the last page.
func (l *ArtworkListing) PageRange(index, offsetEnd int) []string {
	last := len(l.ImageProxyURLs) - 1
	start := min(max(index, 0), last)
	end := min(start+max(offsetEnd, 0), last)

	return l.ImageProxyURLs[start : end+1]
}

// ActivityID returns the compact id of the page at index.
func (l *ArtworkListing) ActivityID(index int) activityid.ActivityID {
	id, _ := strconv.ParseUint(l.IllustID, 10, 64)

	return activityid.ActivityID{
		Language: l.Language,
		ID:       uint32(id),                         //nolint:gosec // ids wider than 32 bits are truncated
		Index:    uint16(min(max(index, 0), 0xFFFF)), //nolint:gosec // clamped
	}
}

// TagString joins the tags with sep.
func (l *ArtworkListing) TagString(sep string) string {
	return strings.Join(l.Tags, sep)
}

// PreviewDescription is the plain-text description of the HTML preview:
// the AI marker and caption text on one line, the tags on the next. With
// hideCaption the caption text is left out.
func (l *ArtworkListing) PreviewDescription(hideCaption bool) string {
	var caption string
	if !hideCaption {
		caption = ExtractCaptionText(l.Description)
	}

	if l.AIGenerated {
		caption = AIGeneratedMarker + caption
	}

	return joinNonEmpty("\n", caption, l.TagString(", "))
}

var captionPolicy = newCaptionPolicy()

// newCaptionPolicy allows the markup pixiv captions are made of.
func newCaptionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowStandardURLs()
	p.AllowAttrs("href").OnElements("a")
	p.AllowElements("br", "strong", "b", "i", "em", "s", "span")
	p.RequireNoFollowOnLinks(false)

	return p
}

// StatusContent is the HTML content of the ActivityPub status: a link to
// the artwork, the AI marker, the sanitized caption and the tags, separated
// by line breaks.
func (l *ArtworkListing) StatusContent() string {
	var aiMarker string
	if l.AIGenerated {
		aiMarker = "<b>AI Generated</b>"
	}

	link := fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(l.URL), html.EscapeString(l.Title))

	tags := html.EscapeString(l.TagString(" "))

	return joinNonEmpty("<br />", link, aiMarker, captionPolicy.Sanitize(l.Description), tags)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]

	for _, part := range parts {
		if part != "" {
			kept = append(kept, part)
		}
	}

	return strings.Join(kept, sep)
}

// IsNotFound reports whether err means pixiv has no such artwork.
func IsNotFound(err error) bool {
	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		return false
	}

	upstreamErr, ok := buildErr.UpstreamError()

	return ok && upstreamErr.IsNotFound()
}
