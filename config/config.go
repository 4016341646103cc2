// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// ServerConfig holds the application configuration.
//
// It is built once by [ServerConfig.LoadConfig] at process start and handed
// to every component by pointer. Nothing in this module reads the environment
// after loading.
type ServerConfig struct {
	Build buildInfo `yaml:"-"`

	Server struct {
		Host       string `env:"HOST,overwrite"              yaml:"host"`
		Port       string `env:"PORT,overwrite"              yaml:"port"`
		UnixSocket string `env:"PHIXIV_UNIXSOCKET,overwrite" yaml:"unixSocket"`
	} `yaml:"server"`

	Upstream struct {
		RawBaseURL string  `env:"PHIXIV_UPSTREAM_BASE,overwrite" yaml:"baseUrl"`
		BaseURL    url.URL `yaml:"-"`
		// Value of the PHPSESSID cookie sent to pixiv. Optional.
		Cookie    string        `env:"PIXIV_COOKIE,overwrite"              yaml:"cookie"`
		UserAgent string        `env:"USER_AGENT,overwrite"                yaml:"userAgent"`
		Timeout   time.Duration `env:"PHIXIV_UPSTREAM_TIMEOUT,overwrite"   yaml:"timeout"`
		// Requests per second allowed towards pixiv; 0 disables pacing.
		RateLimit int `env:"PHIXIV_UPSTREAM_RATE_LIMIT,overwrite" yaml:"rateLimit"`
		RateBurst int `env:"PHIXIV_UPSTREAM_RATE_BURST,overwrite" yaml:"rateBurst"`
	} `yaml:"upstream"`

	Listing struct {
		UgoiraEnabled bool   `env:"UGOIRA_ENABLED,overwrite" yaml:"ugoiraEnabled"`
		ThumbnailType string `env:"THUMBNAIL_TYPE,overwrite" yaml:"thumbnailType"`
		// Host used in image URLs. Empty means the host of the incoming request.
		ImageProxyHost string `env:"PHIXIV_IMAGE_PROXY_HOST,overwrite" yaml:"imageProxyHost"`
	} `yaml:"listing"`

	Cache struct {
		Size     int  `env:"PHIXIV_CACHE_SIZE,overwrite"     yaml:"size"`
		Compress bool `env:"PHIXIV_CACHE_COMPRESS,overwrite" yaml:"compress"`
	} `yaml:"cache"`

	Proxy struct {
		RawPximgBase  string        `env:"PXIMG_BASE,overwrite"           yaml:"pximgBase"`
		PximgBase     url.URL       `yaml:"-"`
		RawUgoiraBase string        `env:"PHIXIV_UGOIRA_BASE,overwrite"   yaml:"ugoiraBase"`
		UgoiraBase    url.URL       `yaml:"-"`
		MaxAge        time.Duration `env:"PHIXIV_PROXY_MAX_AGE,overwrite" yaml:"maxAge"`
	} `yaml:"proxy"`

	Embed struct {
		ProviderName string `env:"PROVIDER_NAME,overwrite" yaml:"providerName"`
		ProviderURL  string `env:"PROVIDER_URL,overwrite"  yaml:"providerUrl"`
		BotFiltering bool   `env:"BOT_FILTERING,overwrite" yaml:"botFiltering"`
		// Requests whose host starts with this prefix get previews without captions.
		HideCaptionHostPrefix string `env:"PHIXIV_HIDE_CAPTION_HOST_PREFIX,overwrite" yaml:"hideCaptionHostPrefix"`
	} `yaml:"embed"`

	Limiter struct {
		Enabled bool `env:"PHIXIV_LIMITER,overwrite"       yaml:"enabled"`
		// Sustained requests per minute allowed per client network.
		RatePerMinute int `env:"PHIXIV_LIMITER_RATE,overwrite"  yaml:"ratePerMinute"`
		Burst         int `env:"PHIXIV_LIMITER_BURST,overwrite" yaml:"burst"`
		IPv4Prefix    int `env:"PHIXIV_LIMITER_IPV4_PREFIX,overwrite" yaml:"ipv4Prefix"`
		IPv6Prefix    int `env:"PHIXIV_LIMITER_IPV6_PREFIX,overwrite" yaml:"ipv6Prefix"`
	} `yaml:"limiter"`

	Metrics struct {
		Enabled bool   `env:"PHIXIV_METRICS,overwrite"      yaml:"enabled"`
		Path    string `env:"PHIXIV_METRICS_PATH,overwrite" yaml:"path"`
	} `yaml:"metrics"`

	Development struct {
		SaveResponses        bool   `env:"PHIXIV_SAVE_RESPONSES,overwrite"          yaml:"saveResponses"`
		ResponseSaveLocation string `env:"PHIXIV_RESPONSE_SAVE_LOCATION,overwrite" yaml:"responseSaveLocation"`
	} `yaml:"development"`

	Log struct {
		Level   string   `env:"PHIXIV_LOG_LEVEL,overwrite"   yaml:"logLevel"`
		Outputs []string `env:"PHIXIV_LOG_OUTPUTS,overwrite" yaml:"logOutputs"`
		Format  string   `env:"PHIXIV_LOG_FORMAT,overwrite"  yaml:"logFormat"`
	} `yaml:"log"`
}

// LoadConfig loads the configuration from, in increasing precedence,
// defaults, the YAML file, a .env file and the environment.
func (cfg *ServerConfig) LoadConfig() error {
	parsedConfigFlagValue := parseCommandLineArgs()

	configFlagUserSet := false

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configFlagUserSet = true
		}
	})

	var configFilePath string

	switch {
	case configFlagUserSet:
		configFilePath = parsedConfigFlagValue
	case os.Getenv("PHIXIV_CONFIGFILE") != "":
		configFilePath = os.Getenv("PHIXIV_CONFIGFILE")
	default:
		configFilePath = parsedConfigFlagValue
		if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
			if _, statErr := os.Stat("./config.yml"); statErr == nil {
				configFilePath = "./config.yml"
			}
		}
	}

	cfg.SetDefaults()

	cfg.Build.load()

	if err := cfg.readYAML(configFilePath); err != nil {
		return fmt.Errorf("error loading YAML config: %w", err)
	}

	if err := useDotEnv(); err != nil {
		return fmt.Errorf("error using .env file: %w", err)
	}

	if err := readEnv(cfg); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	if err := cfg.validateAndSet(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	cfg.setupAudit()

	cfg.print()

	return nil
}

// ImageHost returns the host that image URLs are rewritten onto.
func (cfg *ServerConfig) ImageHost(requestHost string) string {
	if cfg.Listing.ImageProxyHost != "" {
		return cfg.Listing.ImageProxyHost
	}

	return requestHost
}

// GetDurationEncoderOption returns a YAML encoder option that marshals
// time.Duration into a human-readable string format (e.g., "30m", "1h").
func GetDurationEncoderOption() yaml.EncodeOption {
	return yaml.CustomMarshaler[time.Duration](
		func(d time.Duration) ([]byte, error) {
			return yaml.Marshal(d.String())
		},
	)
}
