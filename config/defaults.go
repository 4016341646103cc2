// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import "time"

const (
	// DefaultUserAgent is sent to pixiv when no user agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

	// DefaultCacheSize is the number of listings kept in memory.
	DefaultCacheSize = 1024

	defaultUpstreamTimeoutSeconds = 10
	defaultProxyMaxAgeHours       = 24
	defaultLimiterRatePerMinute   = 120
	defaultLimiterBurst           = 30
)

// SetDefaults populates the configuration with default values.
func (cfg *ServerConfig) SetDefaults() {
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = "3000"

	cfg.Upstream.RawBaseURL = "https://www.pixiv.net"
	cfg.Upstream.UserAgent = DefaultUserAgent
	cfg.Upstream.Timeout = defaultUpstreamTimeoutSeconds * time.Second

	cfg.Listing.UgoiraEnabled = false

	cfg.Cache.Size = DefaultCacheSize
	cfg.Cache.Compress = false

	cfg.Proxy.RawPximgBase = "https://i.pximg.net/"
	cfg.Proxy.RawUgoiraBase = "https://ugoira.com/api/mp4/"
	cfg.Proxy.MaxAge = defaultProxyMaxAgeHours * time.Hour

	cfg.Embed.ProviderName = "phixiv"
	cfg.Embed.ProviderURL = "https://github.com/HazelTheWitch/phixiv"
	cfg.Embed.BotFiltering = false
	cfg.Embed.HideCaptionHostPrefix = "c."

	cfg.Limiter.Enabled = false
	cfg.Limiter.RatePerMinute = defaultLimiterRatePerMinute
	cfg.Limiter.Burst = defaultLimiterBurst
	cfg.Limiter.IPv4Prefix = 32
	cfg.Limiter.IPv6Prefix = 64

	cfg.Metrics.Enabled = false
	cfg.Metrics.Path = "/metrics"

	cfg.Development.SaveResponses = false
	cfg.Development.ResponseSaveLocation = "/tmp/phixiv/responses"

	cfg.Log.Level = "info"
	cfg.Log.Outputs = []string{"/dev/stderr"}
	cfg.Log.Format = "console"
}
