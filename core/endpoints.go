// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"net/url"
	"strings"
)

// GetArtworkInformationURL returns the ajax endpoint for a single illustration.
//
// base is the pixiv origin, normally https://www.pixiv.net.
func GetArtworkInformationURL(base, illustID, language string) string {
	return strings.TrimSuffix(base, "/") + "/ajax/illust/" + url.PathEscape(illustID) + "?lang=" + url.QueryEscape(language)
}

// GetUserProfileURL returns the public profile page of a pixiv user.
func GetUserProfileURL(userID string) string {
	if userID == "" {
		return "https://www.pixiv.net/"
	}

	return "https://www.pixiv.net/users/" + url.PathEscape(userID)
}

// GetArtworkPageURL returns the public artwork page on pixiv.
//
// language and fragment are optional.
func GetArtworkPageURL(language, illustID, fragment string) string {
	var b strings.Builder

	b.WriteString("https://www.pixiv.net")

	if language != "" {
		b.WriteString("/" + language)
	}

	b.WriteString("/artworks/" + illustID)

	if fragment != "" {
		b.WriteString("#" + fragment)
	}

	return b.String()
}
