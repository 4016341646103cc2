// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Package views renders the link-preview documents served to crawlers.
package views

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"
)

// ArtworkData is everything a preview document shows.
type ArtworkData struct {
	// ImageURL is the selected page, or the video for ugoira.
	ImageURL string
	// StillImageURL is the fallback frame of an ugoira. Unused otherwise.
	StillImageURL string

	Title       string
	Description string
	AltText     string
	AuthorName  string
	AuthorID    string

	// URL is the artwork page on pixiv; crawlers and browsers are sent there.
	URL string

	// Host is the public host of this service, used for the alternate links.
	Host       string
	ActivityID string
	SiteName   string
}

// OEmbedURL is where the oEmbed document for the author is served.
func (d ArtworkData) OEmbedURL() string {
	query := url.Values{}
	query.Set("n", d.AuthorName)

	if d.AuthorID != "" {
		query.Set("i", d.AuthorID)
	}

	return "https://" + d.Host + "/oembed?" + query.Encode()
}

// ActivityURL is the ActivityPub status of the shown page.
func (d ArtworkData) ActivityURL() string {
	return "https://" + d.Host + "/api/v1/statuses/" + d.ActivityID
}

// Artwork is the preview of a still image.
func Artwork(data ArtworkData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		doc := newDocument(w)

		doc.head(data)
		doc.meta("property", "og:image", data.ImageURL)
		doc.meta("name", "twitter:card", "summary_large_image")
		doc.meta("name", "twitter:image", data.ImageURL)
		doc.meta("name", "twitter:image:alt", data.AltText)
		doc.tail(data)

		return doc.err
	})
}

// Ugoira is the preview of an animation rendered as video.
func Ugoira(data ArtworkData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		doc := newDocument(w)

		doc.head(data)
		doc.meta("property", "og:type", "video.other")
		doc.meta("property", "og:video", data.ImageURL)
		doc.meta("property", "og:video:secure_url", data.ImageURL)
		doc.meta("property", "og:video:type", "video/mp4")

		if data.StillImageURL != "" {
			doc.meta("property", "og:image", data.StillImageURL)
		}

		doc.meta("name", "twitter:card", "player")
		doc.meta("name", "twitter:player:stream", data.ImageURL)
		doc.meta("name", "twitter:player:stream:content_type", "video/mp4")
		doc.meta("name", "twitter:image:alt", data.AltText)
		doc.tail(data)

		return doc.err
	})
}

// document writes escaped markup, remembering the first write error.
type document struct {
	w   io.Writer
	err error
}

func newDocument(w io.Writer) *document {
	return &document{w: w}
}

func (d *document) raw(s string) {
	if d.err != nil {
		return
	}

	_, d.err = io.WriteString(d.w, s)
}

func (d *document) meta(attr, name, content string) {
	d.raw(`<meta ` + attr + `="` + templ.EscapeString(name) + `" content="` + templ.EscapeString(content) + `">`)
}

func (d *document) link(rel, typ, href string) {
	d.raw(`<link rel="` + rel + `"`)

	if typ != "" {
		d.raw(` type="` + typ + `"`)
	}

	d.raw(` href="` + templ.EscapeString(href) + `">`)
}

func (d *document) head(data ArtworkData) {
	d.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	d.raw(`<title>` + templ.EscapeString(data.Title) + `</title>`)
	d.link("canonical", "", data.URL)
	d.meta("name", "theme-color", "#0096fa")
	d.meta("property", "og:site_name", data.SiteName)
	d.meta("property", "og:url", data.URL)
	d.meta("property", "og:title", data.Title)
	d.meta("property", "og:description", data.Description)
	d.meta("name", "twitter:title", data.Title)
	d.meta("name", "twitter:description", data.Description)
}

func (d *document) tail(data ArtworkData) {
	d.link("alternate", "application/json+oembed", data.OEmbedURL())
	d.link("alternate", "application/activity+json", data.ActivityURL())
	d.raw(`<meta http-equiv="refresh" content="0; url=` + templ.EscapeString(data.URL) + `">`)
	d.raw(`</head><body></body></html>`)
}
