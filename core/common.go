// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

// pixiv returns 0, 1, 2 to mark SFW and NSFW artworks.
// Those values are saved in `xRestrict`.
type XRestrict int

const (
	Safe XRestrict = 0
	R18  XRestrict = 1
	R18G XRestrict = 2
)

// IsNSFWRating returns true if the rating is R18 or R18G.
func (x XRestrict) IsNSFWRating() bool {
	return x == R18 || x == R18G
}

// String returns the canonical, hyphenated name of the rating.
func (x XRestrict) String() string {
	switch x {
	case Safe:
		return "Safe"
	case R18:
		return "R-18"
	case R18G:
		return "R-18G"
	}

	return "Unknown"
}

// pixiv returns 0, 1, 2 in `aiType`.
//
// Only AIGenerated marks a work as AI-generated; Unrated works are treated as not AI-generated.
type AIType int

const (
	Unrated        AIType = 0
	NotAIGenerated AIType = 1
	AIGenerated    AIType = 2
)

func (x AIType) IsAIGenerated() bool {
	return x == AIGenerated
}

// pixiv returns 0, 1, 2 in `illustType`.
type IllustType int

const (
	Illustration IllustType = 0
	Manga        IllustType = 1
	Ugoira       IllustType = 2
)

func (i IllustType) String() string {
	switch i {
	case Illustration:
		return "Illustration"
	case Manga:
		return "Manga"
	case Ugoira:
		return "Ugoira"
	}

	return "Unknown"
}
