// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/warden-foundation/warden/lib/codec"
)

// maxFrameSize bounds a single frame. Nothing the service sends a
// client legitimately approaches this; a larger length prefix means a
// corrupt stream or a hostile peer, and reading it would just burn
// memory before the decode fails anyway.
const maxFrameSize = 1 << 20

// envelope is the TCP adapter's frame content: a kind discriminator
// and a CBOR body whose schema depends on the kind.
type envelope struct {
	Kind string           `cbor:"kind"`
	Body codec.RawMessage `cbor:"body,omitempty"`
}

// Frame kinds. The client sends the first group; the service sends
// the second. "app-message" flows in both directions.
const (
	kindLogOn         = "logon"
	kindLogOff        = "logoff"
	kindPresence      = "presence"
	kindAppAnnounce   = "app-announce"
	kindAppMessage    = "app-message"
	kindSentryConfirm = "sentry-confirm"

	kindLogOnResult = "logon-result"
	kindLoggedOff   = "logged-off"
	kindSentryChunk = "sentry-chunk"
)

// writeFrame encodes the envelope and writes it with a 4-byte
// big-endian length prefix. Callers serialize writes; writeFrame does
// no locking of its own.
func writeFrame(w io.Writer, env envelope) error {
	payload, err := codec.Marshal(env)
	if err != nil {
		return fmt.Errorf("gateway: encoding %s frame: %w", env.Kind, err)
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("gateway: %s frame is %d bytes, limit %d", env.Kind, len(payload), maxFrameSize)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("gateway: writing frame prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("gateway: writing frame payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame and decodes its envelope.
func readFrame(r io.Reader) (envelope, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return envelope{}, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > maxFrameSize {
		return envelope{}, fmt.Errorf("gateway: frame length %d exceeds limit %d", length, maxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return envelope{}, err
	}

	var env envelope
	if err := codec.Unmarshal(payload, &env); err != nil {
		return envelope{}, fmt.Errorf("gateway: decoding frame: %w", err)
	}
	return env, nil
}

// makeEnvelope encodes body and wraps it with the kind discriminator.
func makeEnvelope(kind string, body any) (envelope, error) {
	encoded, err := codec.Marshal(body)
	if err != nil {
		return envelope{}, fmt.Errorf("gateway: encoding %s body: %w", kind, err)
	}
	return envelope{Kind: kind, Body: encoded}, nil
}
