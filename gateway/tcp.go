// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/warden-foundation/warden/lib/codec"
)

// Wire body schemas for the TCP adapter. These mirror the Event and
// LogOnDetails structures; they exist so the wire layout is explicit
// and independent of the in-memory types.

type logOnBody struct {
	Username      string `cbor:"username"`
	Password      string `cbor:"password"`
	AuthCode      string `cbor:"auth_code,omitempty"`
	TwoFactorCode string `cbor:"two_factor_code,omitempty"`
	SentryHash    []byte `cbor:"sentry_hash,omitempty"`
	LoginID       uint32 `cbor:"login_id"`
}

type presenceBody struct {
	Online bool `cbor:"online"`
}

type appAnnounceBody struct {
	AppID uint32 `cbor:"app_id"`
}

type appMessageBody struct {
	Type uint32 `cbor:"type"`
	Body []byte `cbor:"body,omitempty"`
}

type sentryConfirmBody struct {
	JobID           uint64 `cbor:"job_id"`
	Name            string `cbor:"name"`
	Offset          int64  `cbor:"offset"`
	Length          int    `cbor:"length"`
	TotalSize       int64  `cbor:"total_size"`
	Hash            []byte `cbor:"hash"`
	OneTimePassword bool   `cbor:"otp,omitempty"`
}

type logOnResultBody struct {
	Code        int    `cbor:"code"`
	Identity    uint64 `cbor:"identity,omitempty"`
	EmailDomain string `cbor:"email_domain,omitempty"`
}

type loggedOffBody struct {
	Code int `cbor:"code"`
}

type sentryChunkBody struct {
	JobID           uint64 `cbor:"job_id"`
	Name            string `cbor:"name"`
	Offset          int64  `cbor:"offset"`
	TotalSize       int64  `cbor:"total_size"`
	Data            []byte `cbor:"data"`
	Length          int    `cbor:"length"`
	OneTimePassword bool   `cbor:"otp,omitempty"`
}

// TCPConfig holds configuration for creating a TCPConn.
type TCPConfig struct {
	// Address is the service endpoint in "host:port" form.
	Address string

	// DialTimeout bounds connection establishment. Zero means only
	// the Connect context's deadline applies.
	DialTimeout time.Duration

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// TCPConn is the reference Conn implementation: length-prefixed CBOR
// frames over a TCP connection. It supports repeated
// Connect/Disconnect cycles, delivering all events on one channel.
type TCPConn struct {
	address     string
	dialTimeout time.Duration
	logger      *slog.Logger
	events      chan Event

	mu         sync.Mutex
	conn       net.Conn
	userClosed bool
}

// Compile-time check: *TCPConn implements Conn.
var _ Conn = (*TCPConn)(nil)

// NewTCPConn creates a TCP-backed Conn for the given service address.
// No connection is opened until Connect is called.
func NewTCPConn(config TCPConfig) (*TCPConn, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("gateway: Address is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TCPConn{
		address:     config.Address,
		dialTimeout: config.DialTimeout,
		logger:      logger,
		// Buffered so a burst of inbound frames does not stall the
		// read loop while the session is between events.
		events: make(chan Event, 16),
	}, nil
}

// Connect dials the service and starts the frame read loop. Success
// is also reported as a Connected event so callers can treat fake and
// real connections uniformly.
func (c *TCPConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("gateway: already connected to %s", c.address)
	}
	c.mu.Unlock()

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("gateway: connecting to %s: %w", c.address, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.userClosed = false
	c.mu.Unlock()

	c.logger.Debug("gateway connected", "address", c.address)
	go c.readLoop(conn)

	c.events <- Connected{}
	return nil
}

// Disconnect closes the connection if one is live. The read loop
// reports the closure as a Disconnected event with UserInitiated set.
func (c *TCPConn) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	if conn != nil {
		c.userClosed = true
	}
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Events returns the inbound event stream.
func (c *TCPConn) Events() <-chan Event {
	return c.events
}

// LogOn submits a login attempt. The password leaves its protected
// buffer only at this serialization boundary.
func (c *TCPConn) LogOn(details LogOnDetails) error {
	body := logOnBody{
		Username:      details.Username,
		AuthCode:      details.AuthCode,
		TwoFactorCode: details.TwoFactorCode,
		SentryHash:    details.SentryHash,
		LoginID:       details.LoginID,
	}
	if details.Password != nil {
		body.Password = details.Password.String()
	}
	return c.send(kindLogOn, body)
}

// LogOff requests a clean logout.
func (c *TCPConn) LogOff() error {
	return c.send(kindLogOff, struct{}{})
}

// SetPresence announces the account as online or offline.
func (c *TCPConn) SetPresence(online bool) error {
	return c.send(kindPresence, presenceBody{Online: online})
}

// AnnounceApp registers the application the session is acting in.
func (c *TCPConn) AnnounceApp(appID uint32) error {
	return c.send(kindAppAnnounce, appAnnounceBody{AppID: appID})
}

// SendAppMessage sends a typed application message.
func (c *TCPConn) SendAppMessage(message AppMessage) error {
	return c.send(kindAppMessage, appMessageBody{Type: message.Type, Body: message.Body})
}

// ConfirmSentry acknowledges a completed device-authorization record.
func (c *TCPConn) ConfirmSentry(confirm SentryConfirm) error {
	return c.send(kindSentryConfirm, sentryConfirmBody{
		JobID:           confirm.JobID,
		Name:            confirm.Name,
		Offset:          confirm.Offset,
		Length:          confirm.Length,
		TotalSize:       confirm.TotalSize,
		Hash:            confirm.Hash,
		OneTimePassword: confirm.OneTimePassword,
	})
}

// send encodes and writes one frame under the write lock.
func (c *TCPConn) send(kind string, body any) error {
	env, err := makeEnvelope(kind, body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("gateway: not connected")
	}
	return writeFrame(c.conn, env)
}

// readLoop reads frames until the connection fails or is closed,
// translating each into an Event. The terminal Disconnected event
// carries UserInitiated when Disconnect closed the socket.
func (c *TCPConn) readLoop(conn net.Conn) {
	for {
		env, err := readFrame(conn)
		if err != nil {
			c.mu.Lock()
			userClosed := c.userClosed
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()

			conn.Close()
			if !userClosed {
				c.logger.Debug("gateway connection lost", "address", c.address, "error", err)
			}
			c.events <- Disconnected{UserInitiated: userClosed}
			return
		}

		event, err := decodeEvent(env)
		if err != nil {
			c.logger.Warn("dropping undecodable frame", "kind", env.Kind, "error", err)
			continue
		}
		if event == nil {
			c.logger.Debug("ignoring unrecognized frame kind", "kind", env.Kind)
			continue
		}
		c.events <- event
	}
}

// decodeEvent maps a server frame to its Event. Unknown kinds return
// (nil, nil) and are ignored by the read loop.
func decodeEvent(env envelope) (Event, error) {
	switch env.Kind {
	case kindLogOnResult:
		var body logOnResultBody
		if err := unmarshalBody(env, &body); err != nil {
			return nil, err
		}
		return LogOnResult{
			Code:        LogOnCode(body.Code),
			Identity:    body.Identity,
			EmailDomain: body.EmailDomain,
		}, nil

	case kindLoggedOff:
		var body loggedOffBody
		if err := unmarshalBody(env, &body); err != nil {
			return nil, err
		}
		return LoggedOff{Code: LogOnCode(body.Code)}, nil

	case kindSentryChunk:
		var body sentryChunkBody
		if err := unmarshalBody(env, &body); err != nil {
			return nil, err
		}
		return SentryChunk{
			JobID:           body.JobID,
			Name:            body.Name,
			Offset:          body.Offset,
			TotalSize:       body.TotalSize,
			Data:            body.Data,
			Length:          body.Length,
			OneTimePassword: body.OneTimePassword,
		}, nil

	case kindAppMessage:
		var body appMessageBody
		if err := unmarshalBody(env, &body); err != nil {
			return nil, err
		}
		return AppMessage{Type: body.Type, Body: body.Body}, nil
	}
	return nil, nil
}

// unmarshalBody decodes the envelope body into v.
func unmarshalBody(env envelope, v any) error {
	if err := codec.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("gateway: decoding %s body: %w", env.Kind, err)
	}
	return nil
}
