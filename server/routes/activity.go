// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"codeberg.org/phixiv/phixiv/core"
	"codeberg.org/phixiv/phixiv/core/activityid"
	"codeberg.org/phixiv/phixiv/server/utils"
)

// statusTimeFormat is the timestamp format Mastodon clients parse.
const statusTimeFormat = "2006-01-02T15:04:05.000Z"

var errInvalidStatusID = errors.New("invalid status id")

// Status is the subset of a Mastodon status that fediverse servers read
// when they unfurl a link. Unused fields are present as null or empty so
// that strict parsers accept the document.
//
//nolint:tagliatelle
type Status struct {
	ID               string            `json:"id"`
	URL              string            `json:"url"`
	URI              string            `json:"uri"`
	CreatedAt        string            `json:"created_at"`
	EditedAt         any               `json:"edited_at"`
	Reblog           any               `json:"reblog"`
	Language         string            `json:"language"`
	Content          string            `json:"content"`
	SpoilerText      string            `json:"spoiler_text"`
	Visibility       string            `json:"visibility"`
	Application      StatusApplication `json:"application"`
	MediaAttachments []MediaAttachment `json:"media_attachments"`
	Account          Account           `json:"account"`
	Mentions         []any             `json:"mentions"`
	Tags             []any             `json:"tags"`
	Emojis           []any             `json:"emojis"`
	Card             any               `json:"card"`
	Poll             any               `json:"poll"`
}

type StatusApplication struct {
	Name    string `json:"name"`
	Website any    `json:"website"`
}

//nolint:tagliatelle
type MediaAttachment struct {
	ID               string         `json:"id"`
	Type             string         `json:"type"`
	URL              string         `json:"url"`
	PreviewURL       string         `json:"preview_url"`
	RemoteURL        any            `json:"remote_url"`
	PreviewRemoteURL any            `json:"preview_remote_url"`
	TextURL          any            `json:"text_url"`
	Description      string         `json:"description"`
	Meta             map[string]any `json:"meta"`
}

//nolint:tagliatelle
type Account struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"display_name"`
	Username        string  `json:"username"`
	Acct            string  `json:"acct"`
	URL             string  `json:"url"`
	URI             string  `json:"uri"`
	CreatedAt       string  `json:"created_at"`
	Locked          bool    `json:"locked"`
	Bot             bool    `json:"bot"`
	Discoverable    bool    `json:"discoverable"`
	Indexable       bool    `json:"indexable"`
	Group           bool    `json:"group"`
	Avatar          *string `json:"avatar"`
	AvatarStatic    *string `json:"avatar_static"`
	Header          any     `json:"header"`
	HeaderStatic    any     `json:"header_static"`
	FollowersCount  int     `json:"followers_count"`
	FollowingCount  int     `json:"following_count"`
	StatusesCount   int     `json:"statuses_count"`
	HideCollections bool    `json:"hide_collections"`
	Noindex         bool    `json:"noindex"`
	Emojis          []any   `json:"emojis"`
	Roles           []any   `json:"roles"`
	Fields          []any   `json:"fields"`
}

// ActivityStatus serves /api/v1/statuses/{id}, where id is a compact
// activity id naming the artwork, language and page range.
func (h *Handlers) ActivityStatus(w http.ResponseWriter, r *http.Request) error {
	rawID := utils.GetPathVar(r, "id")

	aid, err := activityid.Parse(rawID)
	if err != nil {
		http.Error(w, "invalid status id", http.StatusBadRequest)

		return fmt.Errorf("%w %q: %w", errInvalidStatusID, rawID, err)
	}

	listing, err := h.listings.GetOrBuild(
		r.Context(),
		aid.Language,
		strconv.FormatUint(uint64(aid.ID), 10),
		utils.RequestHost(r))
	if err != nil {
		return err
	}

	status, err := NewStatus(rawID, aid, listing)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if err := json.NewEncoder(w).Encode(status); err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	return nil
}

// NewStatus builds the status for the pages of listing selected by aid.
func NewStatus(id string, aid activityid.ActivityID, listing *core.ArtworkListing) (*Status, error) {
	createdAt, err := formatStatusTime(listing.CreateDate)
	if err != nil {
		return nil, err
	}

	start := min(int(aid.Index), len(listing.ImageProxyURLs)-1)
	pages := listing.PageRange(start, int(aid.OffsetEnd))

	attachments := make([]MediaAttachment, 0, len(pages))
	for i, page := range pages {
		mediaType := "image"
		if strings.HasSuffix(page, ".mp4") {
			mediaType = "video"
		}

		attachments = append(attachments, MediaAttachment{
			ID:          listing.ActivityID(start + i).String(),
			Type:        mediaType,
			URL:         page,
			PreviewURL:  page,
			Description: "",
			Meta:        map[string]any{},
		})
	}

	return &Status{
		ID:          id,
		URL:         listing.URL,
		URI:         listing.URL,
		CreatedAt:   createdAt,
		Language:    "en",
		Content:     listing.StatusContent(),
		SpoilerText: "",
		Visibility:  "public",
		Application: StatusApplication{
			Name: "Twitter Web App",
		},
		MediaAttachments: attachments,
		Account: Account{
			ID:           listing.AuthorID,
			DisplayName:  listing.AuthorName,
			Username:     listing.AuthorName,
			Acct:         listing.AuthorName,
			URL:          listing.URL,
			URI:          listing.URL,
			CreatedAt:    createdAt,
			Discoverable: true,
			Avatar:       listing.ProfileImageURL,
			AvatarStatic: listing.ProfileImageURL,
			Emojis:       []any{},
			Roles:        []any{},
			Fields:       []any{},
		},
		Mentions: []any{},
		Tags:     []any{},
		Emojis:   []any{},
	}, nil
}

// formatStatusTime converts pixiv's RFC 3339 timestamp to UTC with
// millisecond precision.
func formatStatusTime(createDate string) (string, error) {
	t, err := time.Parse(time.RFC3339, createDate)
	if err != nil {
		return "", fmt.Errorf("failed to parse creation date %q: %w", createDate, err)
	}

	return t.UTC().Format(statusTimeFormat), nil
}
