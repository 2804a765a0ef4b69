// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import "context"

// Conn is one client connection to the remote service. A session owns
// exactly one Conn for its lifetime and is the sole reader of Events.
//
// Events are delivered in arrival order on a single channel that
// survives reconnects: after a Disconnected event, Connect may be
// called again and subsequent events arrive on the same channel. The
// channel is never closed while the Conn is usable.
//
// Operations other than Connect and Disconnect require an established
// connection and return an error otherwise. Operation errors mean the
// message could not be handed to the transport; delivery failures
// surface as a Disconnected event, not as operation errors.
type Conn interface {
	// Connect establishes the underlying connection. Success is
	// reported with a Connected event. At most one connection may be
	// outstanding; Connect on a live connection is an error.
	Connect(ctx context.Context) error

	// Disconnect tears down the connection if one is live. The
	// resulting Disconnected event has UserInitiated set. Idempotent.
	Disconnect()

	// LogOn submits a login attempt.
	LogOn(details LogOnDetails) error

	// LogOff requests a clean logout of the authenticated account.
	LogOff() error

	// SetPresence announces the account as online or offline.
	SetPresence(online bool) error

	// AnnounceApp registers the application the session is acting in.
	// The service routes application messages accordingly.
	AnnounceApp(appID uint32) error

	// SendAppMessage sends a typed application message.
	SendAppMessage(message AppMessage) error

	// ConfirmSentry acknowledges a completed device-authorization
	// record.
	ConfirmSentry(confirm SentryConfirm) error

	// Events returns the ordered inbound event stream.
	Events() <-chan Event
}
