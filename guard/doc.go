// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package guard supplies second-factor codes for login attempts.
//
// Codes come from one of two places: generated locally from an
// account's shared secret (GenerateCode), or requested from an
// external source through a CodeProvider when no shared secret is on
// file. The session layer never cares which: it asks its provider and
// either gets a code or an error.
package guard
