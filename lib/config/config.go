// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the top-level configuration file.
type Settings struct {
	// Gateway configures the connection to the remote service.
	Gateway GatewaySettings `yaml:"gateway"`

	// Sentry configures device-authorization persistence.
	Sentry SentrySettings `yaml:"sentry"`

	// BanLookup configures the optional ban-status service.
	BanLookup BanLookupSettings `yaml:"ban_lookup"`

	// AccountsPath points at the JSONC account roster.
	AccountsPath string `yaml:"accounts_path"`
}

// GatewaySettings configures the connection to the remote service.
type GatewaySettings struct {
	// Address is the host:port of the service gateway.
	Address string `yaml:"address"`

	// AppID is the application announced after login. Zero selects
	// the built-in default.
	AppID uint32 `yaml:"app_id"`
}

// SentrySettings configures device-authorization persistence.
type SentrySettings struct {
	// Path is the location of the sentry database file.
	Path string `yaml:"path"`
}

// BanLookupSettings configures the ban-status service. An empty
// BaseURL disables the lookup entirely.
type BanLookupSettings struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// LoadSettings reads, expands, and validates the settings file at
// path. `${VAR}` references are replaced with the environment
// variable's value before parsing. Unknown keys are an error, so
// typos fail loudly instead of being silently ignored.
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading settings: %w", err)
	}
	expanded := os.Expand(string(raw), os.Getenv)

	var settings Settings
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&settings); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if settings.Gateway.Address == "" {
		return nil, fmt.Errorf("config: %s: gateway.address is required", path)
	}
	if settings.BanLookup.BaseURL == "" && settings.BanLookup.APIKey != "" {
		return nil, fmt.Errorf("config: %s: ban_lookup.api_key set without ban_lookup.base_url", path)
	}
	return &settings, nil
}
