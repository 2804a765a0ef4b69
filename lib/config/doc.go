// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Warden.
//
// Two files are loaded, both named explicitly by the operator: a YAML
// settings file for service endpoints and storage paths, and a JSONC
// account roster. There are no fallbacks, no ~/.config discovery, and
// no automatic file search; configuration stays deterministic and
// auditable.
//
// The settings file supports ${VAR} environment expansion so paths
// can reference ${HOME} and friends. The roster is JSON with comments
// and trailing commas permitted, so operators can annotate accounts
// in place.
//
// Key exports:
//
//   - [Settings] and [LoadSettings] -- the YAML settings file
//   - [AccountEntry] and [LoadAccounts] -- the JSONC roster
//
// This package depends on no other Warden packages.
package config
