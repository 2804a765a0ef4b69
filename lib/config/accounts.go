// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// AccountEntry is one roster entry. Password may be empty, in which
// case the CLI prompts for it at startup; SharedSecret is the
// optional base64 device secret for local two-factor codes.
type AccountEntry struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	SharedSecret string `json:"shared_secret"`
}

// LoadAccounts reads the JSONC account roster at path. Comments and
// trailing commas are permitted. Usernames must be non-empty and
// unique.
func LoadAccounts(path string) ([]AccountEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading accounts: %w", err)
	}

	var entries []AccountEntry
	if err := json.Unmarshal(jsonc.ToJSON(raw), &entries); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("config: %s: no accounts defined", path)
	}

	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		if entry.Username == "" {
			return nil, fmt.Errorf("config: %s: account %d has no username", path, i)
		}
		if seen[entry.Username] {
			return nil, fmt.Errorf("config: %s: duplicate account %q", path, entry.Username)
		}
		seen[entry.Username] = true
	}
	return entries, nil
}
