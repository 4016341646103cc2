// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package limiter rate limits clients per IP network and recognizes
link-preview crawlers by their User-Agent.
*/
package limiter
