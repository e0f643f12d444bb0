// SPDX-FileCopyrightText: 2024 Campus Rallye Admin contributors
//
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every environment value the identity bridge consumes.
// Load it once per process; components validate the subset they need at
// construction time so that e.g. a missing signing secret does not prevent
// the request gate from failing closed.
type Config struct {
	// Issuer is the base URL of the external identity provider realm,
	// e.g. https://idp.example.org/realms/rallye. The JWKS endpoint is
	// derived from it.
	Issuer string `yaml:"issuer"`
	// Audience is the client id tokens must be issued for.
	Audience string `yaml:"audience"`
	// AllowedEmails is a comma-separated email allow-list for callers
	// without the staff role.
	AllowedEmails string `yaml:"allowedEmails"`
	// JWTSecret is the symmetric secret used to sign internal credentials
	// for the data layer.
	JWTSecret string `yaml:"jwtSecret"`
	// DataLayerURL is the base URL of the hosted relational platform.
	DataLayerURL string `yaml:"dataLayerURL"`
	// DataLayerKey is the platform's public (anon) API key, sent alongside
	// the minted credential on every data-layer call.
	DataLayerKey string `yaml:"dataLayerKey"`
	// LoginURL is the external login endpoint unauthenticated requests are
	// redirected to.
	LoginURL string `yaml:"loginURL"`
}

// FromEnv reads the configuration from process environment variables.
// Absent variables yield empty fields, never an error.
func FromEnv() *Config {
	return &Config{
		Issuer:        strings.TrimSpace(os.Getenv("KEYCLOAK_ISSUER")),
		Audience:      strings.TrimSpace(os.Getenv("KEYCLOAK_AUDIENCE")),
		AllowedEmails: os.Getenv("ALLOWED_EMAILS"),
		JWTSecret:     os.Getenv("SUPABASE_JWT_SECRET"),
		DataLayerURL:  strings.TrimSpace(firstNonEmpty(os.Getenv("SUPABASE_URL"), os.Getenv("NEXT_PUBLIC_SUPABASE_URL"))),
		DataLayerKey:  os.Getenv("SUPABASE_ANON_KEY"),
		LoginURL:      strings.TrimSpace(os.Getenv("LOGIN_URL")),
	}
}

// FromFile reads the configuration from a mounted YAML file, e.g. a
// kubernetes secret volume. Values present in the process environment take
// precedence over the file.
func FromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
	}
	fileCfg, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	envCfg := FromEnv()
	merge(fileCfg, envCfg)
	return fileCfg, nil
}

// Parse decodes a YAML configuration document.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	cfg.DataLayerURL = strings.TrimSpace(cfg.DataLayerURL)
	cfg.LoginURL = strings.TrimSpace(cfg.LoginURL)
	return cfg, nil
}

// HasVerifier reports whether the token verifier can be configured at all.
// The request gate uses this to fail closed instead of redirecting into a
// login flow that can never succeed.
func (c *Config) HasVerifier() bool {
	return c != nil && c.Issuer != "" && c.Audience != ""
}

func merge(dst, src *Config) {
	dst.Issuer = firstNonEmpty(src.Issuer, dst.Issuer)
	dst.Audience = firstNonEmpty(src.Audience, dst.Audience)
	dst.AllowedEmails = firstNonEmpty(src.AllowedEmails, dst.AllowedEmails)
	dst.JWTSecret = firstNonEmpty(src.JWTSecret, dst.JWTSecret)
	dst.DataLayerURL = firstNonEmpty(src.DataLayerURL, dst.DataLayerURL)
	dst.DataLayerKey = firstNonEmpty(src.DataLayerKey, dst.DataLayerKey)
	dst.LoginURL = firstNonEmpty(src.LoginURL, dst.LoginURL)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
