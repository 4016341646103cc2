// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"maps"
	"net/http"
	"strings"

	"codeberg.org/phixiv/phixiv/config"
)

var (
	// baseHeaders defines the default headers to be set in responses.
	//
	// Phixiv-Version and Phixiv-Revision are added dynamically in SetResponseHeaders.
	//
	// NOTE: we intentionally don't set CORP or HSTS headers. Embeds are
	// fetched cross-origin by chat clients and the instance may be served
	// over plain HTTP behind a proxy.
	baseHeaders = http.Header{
		"Referrer-Policy":         {"no-referrer"},
		"X-Content-Type-Options":  {"nosniff"},
		"Permissions-Policy":      {strings.Join(defaultPermissionsPolicy, ", ")},
		"Content-Security-Policy": {strings.Join(baseCSP, "; ") + ";"},
	}

	// Preview documents contain no scripts or styles, only metadata and a
	// refresh to pixiv.
	baseCSP = []string{
		"base-uri 'none'",
		"default-src 'none'",
		"img-src 'self' https: data:",
		"media-src 'self' https:",
		"form-action 'none'",
		"frame-ancestors 'none'",
	}

	// defaultPermissionsPolicy defines the default Permissions-Policy header.
	defaultPermissionsPolicy = []string{
		"accelerometer=()",
		"camera=()",
		"display-capture=()",
		"geolocation=()",
		"gyroscope=()",
		"magnetometer=()",
		"microphone=()",
		"payment=()",
		"usb=()",
	}
)

// SetResponseHeaders returns a middleware that adds default headers to HTTP responses.
// Handlers set their own Cache-Control.
func SetResponseHeaders(cfg *config.ServerConfig) Middleware {
	version := config.BuildVersion
	revision := cfg.Build.Revision()

	return func(w http.ResponseWriter, r *http.Request, next http.Handler) {
		headers := w.Header()

		maps.Insert(headers, maps.All(baseHeaders))

		headers.Set("Phixiv-Version", version)
		headers.Set("Phixiv-Revision", revision)

		next.ServeHTTP(w, r)
	}
}
