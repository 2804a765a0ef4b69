// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package sentry persists the per-account sentry files the service
// issues after a first successful login. The service streams a sentry
// as chunks, possibly out of order; the store assembles them, and
// once every byte of the declared size has arrived it seals the
// record with a BLAKE3 hash. The hash is what later logins present as
// proof the machine has been seen before.
package sentry
