// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"codeberg.org/phixiv/phixiv/server/utils"
)

// validation errors.
var (
	errInvalidCacheSize      = errors.New("Cache.Size must be at least 1")
	errInvalidUpstreamTimout = errors.New("Upstream.Timeout must be positive")
	errInvalidUpstreamRate   = errors.New("Upstream.RateLimit and Upstream.RateBurst cannot be negative")
	errInvalidLimiterRate    = errors.New("Limiter.RatePerMinute and Limiter.Burst must be positive when the limiter is enabled")
	errInvalidIPv4Prefix     = errors.New("IPv4 prefix must be between 0 and 32")
	errInvalidIPv6Prefix     = errors.New("IPv6 prefix must be between 0 and 128")
	errInvalidLogLevel       = errors.New("invalid Log.Level value")
	errInvalidLogFormat      = errors.New(`invalid Log.Format value, expected "console" or "json"`)
	errEmptyProviderName     = errors.New("Embed.ProviderName cannot be empty")
	errInvalidMetricsPath    = errors.New(`Metrics.Path must start with "/"`)
	errEmptyResponseLocation = errors.New("Development.ResponseSaveLocation cannot be empty when saving responses")
)

// validateAndSet validates the server configuration and populates derived fields.
func (cfg *ServerConfig) validateAndSet() error {
	if cfg.Server.UnixSocket != "" && (cfg.Server.Host != "" || cfg.Server.Port != "") {
		log.Info().
			Str("socket", cfg.Server.UnixSocket).
			Msg("Unix socket configured, ignoring host and port")

		cfg.Server.Host = ""
		cfg.Server.Port = ""
	}

	if err := parseInto(&cfg.Upstream.BaseURL, cfg.Upstream.RawBaseURL, "upstream"); err != nil {
		return err
	}

	if cfg.Upstream.UserAgent == "" {
		cfg.Upstream.UserAgent = DefaultUserAgent
	}

	if cfg.Upstream.Timeout <= 0 {
		return errInvalidUpstreamTimout
	}

	if cfg.Upstream.RateLimit < 0 || cfg.Upstream.RateBurst < 0 {
		return errInvalidUpstreamRate
	}

	if cfg.Upstream.RateLimit > 0 && cfg.Upstream.RateBurst == 0 {
		cfg.Upstream.RateBurst = cfg.Upstream.RateLimit
	}

	cfg.Listing.ThumbnailType = strings.Trim(cfg.Listing.ThumbnailType, "/")

	if cfg.Cache.Size < 1 {
		return errInvalidCacheSize
	}

	if err := parseInto(&cfg.Proxy.PximgBase, cfg.Proxy.RawPximgBase, "pximg"); err != nil {
		return err
	}

	if err := parseInto(&cfg.Proxy.UgoiraBase, cfg.Proxy.RawUgoiraBase, "ugoira"); err != nil {
		return err
	}

	if cfg.Embed.ProviderName == "" {
		return errEmptyProviderName
	}

	providerURL, err := utils.ParseURL(cfg.Embed.ProviderURL, "Provider")
	if err != nil {
		return fmt.Errorf("invalid provider URL: %w", err)
	}

	cfg.Embed.ProviderURL = providerURL.String()

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errInvalidMetricsPath
	}

	if cfg.Development.SaveResponses && cfg.Development.ResponseSaveLocation == "" {
		return errEmptyResponseLocation
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", errInvalidLogLevel, cfg.Log.Level)
	}

	switch cfg.Log.Format {
	case "console", "json":
	default:
		return errInvalidLogFormat
	}

	// Skip validating Limiter configuration if it's not enabled
	if !cfg.Limiter.Enabled {
		return nil
	}

	if cfg.Limiter.RatePerMinute <= 0 || cfg.Limiter.Burst <= 0 {
		return errInvalidLimiterRate
	}

	if cfg.Limiter.IPv4Prefix < 0 || cfg.Limiter.IPv4Prefix > 32 {
		return errInvalidIPv4Prefix
	}

	if cfg.Limiter.IPv6Prefix < 0 || cfg.Limiter.IPv6Prefix > 128 {
		return errInvalidIPv6Prefix
	}

	return nil
}

// parseInto validates raw as an absolute URL and stores it in dst.
func parseInto(dst *url.URL, raw, name string) error {
	parsed, err := utils.ParseURL(raw, name)
	if err != nil {
		return fmt.Errorf("invalid %s base URL: %w", name, err)
	}

	*dst = *parsed

	return nil
}
