// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	jumpLinkRegexp  = regexp.MustCompile(`href="/jump\.php\?(.*?)"`)
	lineBreakRegexp = regexp.MustCompile(`<br\s*/?>`)
)

// RepairCaptionLinks rewrites pixiv's redirect links,
// href="/jump.php?<escaped target>", into direct links to the target.
// All other markup is left as is.
func RepairCaptionLinks(caption string) string {
	return jumpLinkRegexp.ReplaceAllStringFunc(caption, func(match string) string {
		escaped := jumpLinkRegexp.FindStringSubmatch(match)[1]

		target, err := url.PathUnescape(escaped)
		if err != nil {
			return match
		}

		// keep the attribute value well-formed
		return `href="` + strings.ReplaceAll(target, `"`, "%22") + `"`
	})
}

// ExtractCaptionText reduces a caption's HTML to its visible text.
//
// Tag pairs are stripped depth first, leftmost pair first. The text of an
// <a> element is padded with a space on either side so that a link does not
// run into its neighbours. Markup that does not form a pair, like a lone
// "<x>" or "<>", stays in the output verbatim. Finally the text is split
// on <br>, <br/> and <br />, each line is trimmed, and the lines are joined
// with "\n".
//
// Entities are not decoded. ExtractCaptionText never fails.
func ExtractCaptionText(html string) string {
	var text strings.Builder

	text.Grow(len(html))

	pending := []string{html}

	for len(pending) > 0 {
		segment := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		pair, ok := findTagPair(segment)
		if !ok {
			text.WriteString(segment)

			continue
		}

		inner := segment[pair.innerStart:pair.innerEnd]
		if pair.name == "a" {
			inner = " " + inner + " "
		}

		// the remainder is reduced after the element's content
		pending = append(pending, segment[pair.afterStart:], inner)

		text.WriteString(segment[:pair.open])
	}

	lines := lineBreakRegexp.Split(text.String(), -1)
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	return strings.Join(lines, "\n")
}

// tagPair locates <name ...>inner</name > within a string.
type tagPair struct {
	name       string
	open       int // index of the opening '<'
	innerStart int
	innerEnd   int // index of the closing "</"
	afterStart int
}

// findTagPair returns the leftmost opening tag that has a matching closing
// tag, pairing it with the nearest such closing tag.
//
// An opening tag is '<', a name of at least one character that is neither
// whitespace nor '>', optional attributes, and the first following '>'.
// When the name has no closing tag, shorter prefixes of it are tried as the
// name, longest first, with the rest of it counted as attributes.
func findTagPair(text string) (tagPair, bool) {
	for open := 0; open < len(text); open++ {
		rel := strings.IndexByte(text[open:], '<')
		if rel < 0 {
			return tagPair{}, false
		}

		open += rel

		gt := strings.IndexByte(text[open+1:], '>')
		if gt < 0 {
			// no later '<' can be closed either
			return tagPair{}, false
		}

		innerStart := open + 1 + gt + 1
		run := tagNameRun(text[open+1 : innerStart-1])

		for n := len(run); n > 0; {
			name := run[:n]

			if innerEnd, afterStart, ok := findClosingTag(text, innerStart, name); ok {
				return tagPair{
					name:       name,
					open:       open,
					innerStart: innerStart,
					innerEnd:   innerEnd,
					afterStart: afterStart,
				}, true
			}

			_, size := utf8.DecodeLastRuneInString(name)
			n -= size
		}
	}

	return tagPair{}, false
}

// tagNameRun returns the leading run of s up to the first whitespace.
func tagNameRun(s string) string {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i]
	}

	return s
}

// findClosingTag finds the first "</name", optional whitespace, then '>'
// at or after from. It returns where the closing tag starts and where the
// text after it begins.
func findClosingTag(text string, from int, name string) (int, int, bool) {
	needle := "</" + name

	for from <= len(text) {
		rel := strings.Index(text[from:], needle)
		if rel < 0 {
			return 0, 0, false
		}

		start := from + rel
		rest := strings.TrimLeftFunc(text[start+len(needle):], unicode.IsSpace)

		if strings.HasPrefix(rest, ">") {
			return start, len(text) - len(rest) + 1, true
		}

		from = start + 1
	}

	return 0, 0, false
}
