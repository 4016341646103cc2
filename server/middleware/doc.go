// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package middleware provides HTTP request handling functionality for phixiv.

Middleware functions share the [Middleware] signature and are chained by the
router in server/router. Handlers that can fail are wrapped in [CatchError],
which turns their error into a status code and logs the request.
*/
package middleware
