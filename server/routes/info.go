// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package routes

import (
	"encoding/json"
	"fmt"
	"net/http"

	"codeberg.org/phixiv/phixiv/core"
	"codeberg.org/phixiv/phixiv/server/utils"
)

// ArtworkInfo serves /api/info?language=&id= with the listing as JSON.
func (h *Handlers) ArtworkInfo(w http.ResponseWriter, r *http.Request) error {
	listing, err := h.listings.GetOrBuild(
		r.Context(),
		core.ResolveLanguage(utils.GetQueryParam(r, "language")),
		utils.GetQueryParam(r, "id"),
		utils.RequestHost(r))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if err := json.NewEncoder(w).Encode(listing); err != nil {
		return fmt.Errorf("failed to encode listing: %w", err)
	}

	return nil
}
