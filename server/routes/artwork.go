// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"codeberg.org/phixiv/phixiv/core"
	"codeberg.org/phixiv/phixiv/server/request_context"
	"codeberg.org/phixiv/phixiv/server/utils"
	"codeberg.org/phixiv/phixiv/views"
)

// ArtworkPage renders the link preview of an artwork.
//
// Path variables: language (optional), id, index (optional, 1-based).
func (h *Handlers) ArtworkPage(w http.ResponseWriter, r *http.Request) error {
	return h.artwork(w, r,
		utils.GetPathVar(r, "language"),
		utils.GetPathVar(r, "id"),
		utils.GetPathVar(r, "index"))
}

// MemberIllust serves the legacy /member_illust.php?illust_id= URL.
func (h *Handlers) MemberIllust(w http.ResponseWriter, r *http.Request) error {
	return h.artwork(w, r, "", utils.GetQueryParam(r, "illust_id"), "")
}

func (h *Handlers) artwork(w http.ResponseWriter, r *http.Request, language, id, index string) error {
	// people following the link get the real page, only link-preview bots
	// get ours
	if h.cfg.Embed.BotFiltering && !request_context.FromRequest(r).Crawler {
		http.Redirect(w, r, core.GetArtworkPageURL(language, id, index), http.StatusTemporaryRedirect)

		return nil
	}

	host := utils.RequestHost(r)

	listing, err := h.listings.GetOrBuild(r.Context(), core.ResolveLanguage(language), id, host)
	if err != nil {
		return err
	}

	page := listing.PreviewIndex(parsePageNumber(index))

	prefix := h.cfg.Embed.HideCaptionHostPrefix
	hideCaption := prefix != "" && strings.HasPrefix(host, prefix)

	data := views.ArtworkData{
		ImageURL:    listing.ImageProxyURLs[page],
		Title:       listing.Title,
		Description: listing.PreviewDescription(hideCaption),
		AltText:     listing.TagString(", "),
		AuthorName:  listing.AuthorName,
		AuthorID:    listing.AuthorID,
		URL:         listing.URL,
		Host:        host,
		ActivityID:  listing.ActivityID(page).String(),
		SiteName:    h.cfg.Embed.ProviderName,
	}

	var component templ.Component

	if listing.IsUgoira && strings.HasSuffix(data.ImageURL, ".mp4") {
		data.StillImageURL = listing.ImageProxyURLs[len(listing.ImageProxyURLs)-1]
		component = views.Ugoira(data)
	} else {
		component = views.Artwork(data)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	return component.Render(r.Context(), w)
}

// parsePageNumber reads the leading digits of a 1-based page number.
// Anything without leading digits selects the first page.
func parsePageNumber(s string) int {
	digits := core.CleanIllustID(s)
	if digits == "" {
		return 0
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		// only overflow is possible here
		return math.MaxInt
	}

	return n
}
