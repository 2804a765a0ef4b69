// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package session drives one account through its full lifecycle:
// connect, authenticate (including second-factor challenges and
// device-authorization persistence), execute the single configured
// workflow, and tear down. Start blocks for the whole run and returns
// exactly one terminal Result.
package session
