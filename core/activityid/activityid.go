// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package activityid packs a listing reference into a single 64-bit integer
that is used as the status id of the ActivityPub surface.

Bit layout, most significant first:

	63..56  offset end (pages included after the start index, at most 255)
	55..48  language id
	47..16  illustration id
	15..0   start page index

The layout appears in externally cached URLs and must not change.
*/
package activityid

import "strconv"

// Language ids. Unknown languages encode as LanguageJP and any unknown
// id decodes to "jp".
const (
	LanguageJP uint8 = iota
	LanguageEN
	LanguageZH
	LanguageZHTW
	LanguageKO
)

const (
	maxOffsetEnd = 0xFF

	offsetEndShift = 56
	languageShift  = 48
	idShift        = 16

	byteMask  = 0xFF
	idMask    = 0xFFFFFFFF
	indexMask = 0xFFFF
)

var languageCodes = [...]string{
	LanguageJP:   "jp",
	LanguageEN:   "en",
	LanguageZH:   "zh",
	LanguageZHTW: "zh_tw",
	LanguageKO:   "ko",
}

// ActivityID references one page, or a contiguous page range, of a listing.
type ActivityID struct {
	Language string
	ID       uint32
	Index    uint16

	// OffsetEnd is the number of pages after Index that belong to the range.
	// Values above 255 are clamped when encoding.
	OffsetEnd uint16
}

// LanguageID returns the numeric id of a language code.
func LanguageID(code string) uint8 {
	for id, c := range languageCodes {
		if c == code {
			return uint8(id) //nolint:gosec // bounded by len(languageCodes)
		}
	}

	return LanguageJP
}

// LanguageCode returns the language code for a numeric id.
func LanguageCode(id uint8) string {
	if int(id) < len(languageCodes) {
		return languageCodes[id]
	}

	return languageCodes[LanguageJP]
}

// Encode packs a into its 64-bit form.
func (a ActivityID) Encode() uint64 {
	offsetEnd := min(a.OffsetEnd, maxOffsetEnd)

	return uint64(offsetEnd)<<offsetEndShift |
		uint64(LanguageID(a.Language))<<languageShift |
		uint64(a.ID)<<idShift |
		uint64(a.Index)
}

// String returns the decimal form used in URLs.
func (a ActivityID) String() string {
	return strconv.FormatUint(a.Encode(), 10)
}

// Decode unpacks a 64-bit value. Every value decodes to a valid ActivityID.
func Decode(v uint64) ActivityID {
	return ActivityID{
		Language:  LanguageCode(uint8((v >> languageShift) & byteMask)),
		ID:        uint32((v >> idShift) & idMask),
		Index:     uint16(v & indexMask),
		OffsetEnd: uint16((v >> offsetEndShift) & byteMask),
	}
}

// Parse decodes the decimal form of a compact id.
func Parse(s string) (ActivityID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return ActivityID{}, err
	}

	return Decode(v), nil
}
