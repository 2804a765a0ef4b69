// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway defines the session-level contract between Warden
// and the remote messaging service: a connection that delivers an
// ordered stream of events (connect, disconnect, login results,
// device-authorization chunks, application messages) and accepts the
// client-side operations a session needs (log on, log off, presence,
// application announcement, application messages).
//
// The remote service's real wire encoding is not Warden's concern.
// [Conn] is the boundary: session code is written entirely against it,
// and tests drive sessions with scripted fake connections. [TCPConn]
// is the reference production adapter — length-prefixed CBOR frames
// over TCP — used by the warden binary.
package gateway
