// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package core

import (
	"errors"
	"fmt"

	"codeberg.org/phixiv/phixiv/core/requests"
)

// BuildErrorKind classifies a BuildError.
type BuildErrorKind int

const (
	// InvalidIdentifier means the id had no leading digits. No request was made.
	InvalidIdentifier BuildErrorKind = iota

	// MissingImageURL means pixiv returned neither a regular nor an original image URL.
	MissingImageURL

	// InvalidURL means an image or profile URL from pixiv could not be parsed.
	InvalidURL

	// Upstream means the request to pixiv failed; the cause is a *requests.UpstreamError.
	Upstream
)

func (k BuildErrorKind) String() string {
	switch k {
	case InvalidIdentifier:
		return "invalid identifier"
	case MissingImageURL:
		return "missing image URL"
	case InvalidURL:
		return "invalid URL"
	case Upstream:
		return "upstream"
	default:
		return "unknown"
	}
}

var (
	errEmptyIllustID   = errors.New("illustration id has no leading digits")
	errNoImageURL      = errors.New("neither regular nor original image URL present")
	errUnexpectedShape = errors.New("unexpected response shape")
)

// BuildError is returned when a listing cannot be built. Nothing is cached
// for a failed build.
type BuildError struct {
	Kind     BuildErrorKind
	IllustID string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build listing %q: %s: %v", e.IllustID, e.Kind, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// UpstreamError returns the underlying upstream failure, if any.
func (e *BuildError) UpstreamError() (*requests.UpstreamError, bool) {
	var upstreamErr *requests.UpstreamError
	ok := errors.As(e.Err, &upstreamErr)

	return upstreamErr, ok
}
