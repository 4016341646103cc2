// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"codeberg.org/phixiv/phixiv/core"
)

var errMissingAuthorName = errors.New("missing author name")

// OEmbed is the rich oEmbed document linked from preview pages. Discord
// shows author_name above the embed.
//
//nolint:tagliatelle
type OEmbed struct {
	Version      string `json:"version"`
	Type         string `json:"type"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
	ProviderName string `json:"provider_name"`
	ProviderURL  string `json:"provider_url"`
}

// OEmbed serves the oEmbed document for ?n={author name}&i={author id}.
func (h *Handlers) OEmbed(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	if !query.Has("n") {
		http.Error(w, "missing query parameter n", http.StatusBadRequest)

		return errMissingAuthorName
	}

	data := OEmbed{
		Version:      "1.0",
		Type:         "rich",
		AuthorName:   query.Get("n"),
		AuthorURL:    core.GetUserProfileURL(query.Get("i")),
		ProviderName: h.cfg.Embed.ProviderName,
		ProviderURL:  h.cfg.Embed.ProviderURL,
	}

	// Per the oEmbed spec, `application/json+oembed` is for discovery via <link> elements and Link headers
	//
	// The actual provider response should use the mime-type of `application/json`
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode oEmbed response: %w", err)
	}

	return nil
}
