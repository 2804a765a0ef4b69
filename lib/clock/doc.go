// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock parameter instead of calling time.Now,
// time.After, or time.Sleep directly. In production, Real() provides the
// standard library behavior. In tests, Fake() provides a deterministic
// clock that advances only when Advance is called.
//
// Warden's session loops sleep in two places only: the fixed reconnect
// backoff and the post-login settle delay. Both must be exercisable in
// tests without real waiting, which is the entire reason this package
// exists.
//
// # Wiring Pattern
//
// Add a Clock field to structs that use time:
//
//	type Manager struct {
//	    clock clock.Clock
//	    // ...
//	}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	// ... start the session goroutine ...
//	c.WaitForTimers(1)         // wait for the backoff sleep to register
//	c.Advance(5 * time.Second) // fire it deterministically
package clock
