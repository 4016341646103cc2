// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package middleware

import (
	"errors"
	"maps"
	"net/http"
	"net/http/httptest"

	"github.com/rs/zerolog/log"

	"codeberg.org/phixiv/phixiv/core"
	"codeberg.org/phixiv/phixiv/core/audit"
	"codeberg.org/phixiv/phixiv/core/requests"
	"codeberg.org/phixiv/phixiv/server/request_context"
)

// CatchError wraps HTTP handlers that return an error, providing centralized error handling,
// response buffering, and request logging.
//
// The handler's output is buffered using an httptest.ResponseRecorder. When the
// handler returns an error without having written an error status itself, the
// buffered output is discarded and replaced by a short plain-text error whose
// status is chosen by StatusForError. Otherwise the buffered response is
// written to the client unchanged.
//
// Finally, it logs the completed request via the audit package.
func CatchError(handler func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := request_context.FromRequest(r)

		span := audit.Span{
			Destination: audit.ToUser,
			RequestID:   ctx.RequestID,
			Method:      r.Method,
			URL:         r.URL.String(),
		}

		_ = span.Begin(r.Context())
		defer span.End()

		recorder := httptest.NewRecorder()

		err := handler(recorder, r)

		ctx.RequestError = err

		if err != nil && recorder.Code < http.StatusBadRequest {
			ctx.StatusCode = StatusForError(err)

			h := w.Header()
			h.Set("Content-Type", "text/plain; charset=utf-8")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Cache-Control", "no-store")
			w.WriteHeader(ctx.StatusCode)

			if _, writeErr := w.Write([]byte(http.StatusText(ctx.StatusCode) + "\n")); writeErr != nil {
				log.Err(writeErr).Msg("Failed to write error response")
			}
		} else {
			ctx.StatusCode = recorder.Code
			maps.Copy(w.Header(), recorder.Header())
			w.WriteHeader(recorder.Code)

			if _, err := recorder.Body.WriteTo(w); err != nil {
				log.Err(err).Msg("Failed to write response body")
			}
		}

		span.StatusCode = ctx.StatusCode
		span.Error = ctx.RequestError

		span.End()
		span.Log()
	}
}

// StatusForError maps a handler error onto the HTTP status shown to the client.
func StatusForError(err error) int {
	var buildErr *core.BuildError
	if errors.As(err, &buildErr) && buildErr.Kind == core.InvalidIdentifier {
		return http.StatusBadRequest
	}

	var upstreamErr *requests.UpstreamError
	if errors.As(err, &upstreamErr) {
		switch {
		case upstreamErr.IsNotFound():
			return http.StatusNotFound
		case upstreamErr.Kind == requests.KindTransport:
			return http.StatusBadGateway
		}
	}

	return http.StatusInternalServerError
}
