// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

const compressMinSize = 512

// compressibleTypes are the documents we generate ourselves. Proxied images
// and videos are already compressed and are passed through as-is.
var compressibleTypes = []string{
	"text/html",
	"text/plain",
	"application/json",
	"application/activity+json",
	"application/json+oembed",
}

// Compress returns a middleware that gzips generated documents when the
// client accepts it.
func Compress() (Middleware, error) {
	wrapper, err := gzhttp.NewWrapper(
		gzhttp.MinSize(compressMinSize),
		gzhttp.ContentTypes(compressibleTypes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip wrapper: %w", err)
	}

	return func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		wrapper(next).ServeHTTP(w, r)
	}, nil
}
