// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = "jp"

// pixiv's own language codes, as accepted by the ajax "lang" parameter.
var pixivLanguages = map[string]struct{}{
	"jp":    {},
	"en":    {},
	"zh":    {},
	"zh_tw": {},
	"ko":    {},
}

var traditionalChinese = language.MustParseScript("Hant")

// ResolveLanguage maps a language code from a URL onto the code pixiv
// expects. BCP 47 tags such as "ja", "zh-TW" or "en-GB" are folded onto
// pixiv's codes; anything unrecognised is passed through lowercased.
func ResolveLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return DefaultLanguage
	}

	if _, ok := pixivLanguages[code]; ok {
		return code
	}

	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return code
	}

	base, _ := tag.Base()

	switch base.String() {
	case "ja":
		return "jp"
	case "en":
		return "en"
	case "ko":
		return "ko"
	case "zh":
		if script, _ := tag.Script(); script == traditionalChinese {
			return "zh_tw"
		}

		return "zh"
	default:
		return code
	}
}
