// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import "github.com/warden-foundation/warden/lib/secret"

// LogOnCode classifies the outcome of a login attempt as reported by
// the remote service. The session state machine branches on this code;
// everything else about the login response is advisory detail.
type LogOnCode int

const (
	// LogOnOK means the account is authenticated.
	LogOnOK LogOnCode = iota

	// LogOnNeedTwoFactor means the service demands a code from the
	// account's authenticator (device secret or human-supplied).
	LogOnNeedTwoFactor

	// LogOnNeedEmailCode means the service demands a code it has
	// delivered to the account's email address.
	LogOnNeedEmailCode

	// LogOnServiceUnavailable means the service is down or refusing
	// logins entirely.
	LogOnServiceUnavailable

	// LogOnRateLimited means the service is throttling login attempts
	// for this account or source address.
	LogOnRateLimited

	// LogOnCodeMismatch means a supplied second-factor or email code
	// was wrong or expired.
	LogOnCodeMismatch

	// LogOnLoggedInElsewhere means another session holds the account.
	// Reported through LoggedOff, not LogOnResult.
	LogOnLoggedInElsewhere

	// LogOnFailed covers every other rejection (bad credentials,
	// disabled account, protocol violation).
	LogOnFailed
)

var logOnCodeNames = map[LogOnCode]string{
	LogOnOK:                 "ok",
	LogOnNeedTwoFactor:      "need-two-factor",
	LogOnNeedEmailCode:      "need-email-code",
	LogOnServiceUnavailable: "service-unavailable",
	LogOnRateLimited:        "rate-limited",
	LogOnCodeMismatch:       "code-mismatch",
	LogOnLoggedInElsewhere:  "logged-in-elsewhere",
	LogOnFailed:             "failed",
}

func (c LogOnCode) String() string {
	if name, ok := logOnCodeNames[c]; ok {
		return name
	}
	return "unknown"
}

// LogOnDetails carries one login attempt. A fresh LoginID is generated
// per attempt by the session; AuthCode and TwoFactorCode are empty on
// the first attempt and filled in on challenge retries. SentryHash is
// attached only when a complete device-authorization record exists for
// the account.
type LogOnDetails struct {
	Username      string
	Password      *secret.Buffer
	AuthCode      string
	TwoFactorCode string
	SentryHash    []byte
	LoginID       uint32
}

// Event is an inbound notification from the connection. It is a closed
// set: session code switches over the concrete types below and ignores
// nothing silently except unrecognized application message types.
type Event interface {
	isEvent()
}

// Connected reports that the underlying connection is established and
// the session may submit a login.
type Connected struct{}

// Disconnected reports that the underlying connection is gone.
// UserInitiated is true when the client itself called Disconnect, so
// retry logic can tell a requested teardown from a network failure.
type Disconnected struct {
	UserInitiated bool
}

// LogOnResult reports the outcome of the most recent LogOn call.
type LogOnResult struct {
	Code LogOnCode

	// Identity is the account's resolved service-wide identity,
	// defined only when Code is LogOnOK.
	Identity uint64

	// EmailDomain is the domain the email code was sent to, defined
	// only when Code is LogOnNeedEmailCode.
	EmailDomain string
}

// LoggedOff reports a server-initiated logoff of an authenticated
// session. Code is LogOnLoggedInElsewhere when another login displaced
// this one.
type LoggedOff struct {
	Code LogOnCode
}

// SentryChunk delivers one piece of a device-authorization record the
// service wants persisted. Chunks carry explicit offsets and may
// arrive in any order; TotalSize is the declared size of the full
// record. The client acknowledges a completed record with
// ConfirmSentry.
type SentryChunk struct {
	JobID           uint64
	Name            string
	Offset          int64
	TotalSize       int64
	Data            []byte
	Length          int
	OneTimePassword bool
}

// SentryConfirm acknowledges a fully persisted device-authorization
// record, echoing the job and reporting the hash the client will
// present on future logins.
type SentryConfirm struct {
	JobID           uint64
	Name            string
	Offset          int64
	Length          int
	TotalSize       int64
	Hash            []byte
	OneTimePassword bool
}

// AppMessage is a typed application message exchanged with the service
// once authenticated, in either direction. Type identifies the message
// kind; Body is a CBOR-encoded payload whose schema is defined by the
// workflow package.
type AppMessage struct {
	Type uint32
	Body []byte
}

func (Connected) isEvent()    {}
func (Disconnected) isEvent() {}
func (LogOnResult) isEvent()  {}
func (LoggedOff) isEvent()    {}
func (SentryChunk) isEvent()  {}
func (AppMessage) isEvent()   {}
