// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

// genconfig writes the example configuration files shipped in deploy/.
// Both are derived from config.ServerConfig and its defaults, so they never
// drift from what phixiv actually reads.
package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	"codeberg.org/phixiv/phixiv/config"
	"codeberg.org/phixiv/phixiv/core/audit"
)

const (
	envExamplePath  = "deploy/.env.example"
	yamlExamplePath = "deploy/config.yaml.example"
	examplePerm     = 0o644

	// shown instead of a real PHPSESSID
	cookiePlaceholder = "12345678_AbCdEfGhIjKlMnOpQrStUvWxYz"

	envHeader = `# phixiv environment variables
#
# Every variable below is optional. Copy this file to .env next to the
# binary, or export the variables, to override the defaults shown.
#
# Generated by: go run ./cmd/genconfig

`
	yamlHeader = `# phixiv configuration file
#
# Pass it with -config, or place it at ./config.yaml. Values set here are
# overridden by .env and the environment.
#
# Generated by: go run ./cmd/genconfig
`
	envProxyFooter = `## Outbound proxy for requests to pixiv
# HTTPS_PROXY=
# HTTP_PROXY=
`
	yamlCookieComment = `  # PHPSESSID of a pixiv account. Leave unset to fetch artworks logged out;
  # with it, artworks hidden from logged-out visitors can be embedded.`
)

// envUncommented lists the variables written active rather than commented out.
var envUncommented = map[string]bool{
	"HOST": true,
	"PORT": true,
}

func main() {
	audit.SetDefaultLogger()

	cfg := &config.ServerConfig{}
	cfg.SetDefaults()

	write(envExamplePath, renderEnv(cfg))

	yamlExample, err := renderYAML(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render YAML example")
	}

	write(yamlExamplePath, yamlExample)
}

func write(path, content string) {
	if err := os.WriteFile(path, []byte(content), examplePerm); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to write example configuration")
	}

	log.Info().Str("path", path).Msg("Wrote example configuration")
}

// renderEnv lists every env-tagged field of cfg, one "## Section" block per
// top-level struct.
func renderEnv(cfg *config.ServerConfig) string {
	var sb strings.Builder

	sb.WriteString(envHeader)

	val := reflect.ValueOf(*cfg)

	for i := range val.NumField() {
		section := val.Type().Field(i)
		fields := val.Field(i)

		// Build holds VCS info, not settings
		if fields.Kind() != reflect.Struct || section.Name == "Build" {
			continue
		}

		fmt.Fprintf(&sb, "## %s\n", section.Name)

		for j := range fields.NumField() {
			tag, ok := fields.Type().Field(j).Tag.Lookup("env")
			if !ok {
				continue
			}

			name, _, _ := strings.Cut(tag, ",")
			sb.WriteString(envLine(name, fields.Field(j)) + "\n")
		}

		sb.WriteString("\n")
	}

	sb.WriteString(envProxyFooter)

	return sb.String()
}

func envLine(name string, value reflect.Value) string {
	switch {
	case name == "PIXIV_COOKIE":
		return fmt.Sprintf("# %s=%q", name, cookiePlaceholder)
	case envUncommented[name]:
		return fmt.Sprintf("%s=%q", name, fmt.Sprint(value.Interface()))
	case value.Kind() == reflect.Slice, value.Kind() == reflect.String && value.Len() == 0:
		return "# " + name + "="
	default:
		return fmt.Sprintf("# %s=%v", name, value.Interface())
	}
}

// renderYAML marshals cfg and comments out every setting except the
// upstream cookie, which is left active with a placeholder.
func renderYAML(cfg *config.ServerConfig) (string, error) {
	example := *cfg
	example.Upstream.Cookie = cookiePlaceholder

	var marshaled strings.Builder

	err := yaml.NewEncoder(&marshaled, config.GetDurationEncoderOption(), yaml.Indent(2)).Encode(&example)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	var sb strings.Builder

	sb.WriteString(yamlHeader)

	for line := range strings.SplitSeq(marshaled.String(), "\n") {
		key := strings.TrimSpace(line)

		switch {
		case key == "":
		case !strings.HasPrefix(line, " "):
			// section key, e.g. "upstream:"
			sb.WriteString("\n" + line + "\n")
		case strings.HasPrefix(key, "cookie:"):
			sb.WriteString(yamlCookieComment + "\n" + line + "\n")
		default:
			indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
			sb.WriteString(indent + "# " + key + "\n")
		}
	}

	return sb.String(), nil
}
