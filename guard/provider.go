// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/secret"
)

// ChallengeKind distinguishes the two second-factor flows the service
// can demand during login.
type ChallengeKind int

const (
	// ChallengeTwoFactor asks for a code from the account's
	// authenticator (generated from the shared secret or typed in).
	ChallengeTwoFactor ChallengeKind = iota
	// ChallengeEmail asks for a code the service mailed to the
	// account's registered address.
	ChallengeEmail
)

func (k ChallengeKind) String() string {
	switch k {
	case ChallengeTwoFactor:
		return "two-factor"
	case ChallengeEmail:
		return "email"
	default:
		return fmt.Sprintf("ChallengeKind(%d)", int(k))
	}
}

// Challenge describes one second-factor request.
type Challenge struct {
	Kind     ChallengeKind
	Username string
	// EmailDomain is the domain the code was mailed to. Set only for
	// ChallengeEmail, and only when the service reported it.
	EmailDomain string
}

// ErrCancelled is returned by providers when the caller's context was
// cancelled before a code arrived.
var ErrCancelled = errors.New("guard: code request cancelled")

// CodeProvider produces a second-factor code for a challenge. The
// call blocks until a code is available, the context is cancelled, or
// the provider decides it cannot answer.
type CodeProvider interface {
	RequestCode(ctx context.Context, challenge Challenge) (string, error)
}

// SecretProvider generates two-factor codes from a shared secret.
// Email challenges cannot be answered this way and fall through to
// the wrapped provider, if any.
type SecretProvider struct {
	Secret   *secret.Buffer
	Clock    clock.Clock
	Fallback CodeProvider
}

var _ CodeProvider = (*SecretProvider)(nil)

func (p *SecretProvider) RequestCode(ctx context.Context, challenge Challenge) (string, error) {
	if challenge.Kind == ChallengeTwoFactor && p.Secret != nil && p.Secret.Len() > 0 {
		clk := p.Clock
		if clk == nil {
			clk = clock.Real()
		}
		return GenerateCode(p.Secret, clk.Now())
	}
	if p.Fallback == nil {
		return "", fmt.Errorf("guard: no source for %s code for %q", challenge.Kind, challenge.Username)
	}
	return p.Fallback.RequestCode(ctx, challenge)
}

// OneShot is a CodeProvider fed by a single out-of-band Supply call.
// It is the bridge between an interactive prompt (or a test) and a
// session blocked on RequestCode.
type OneShot struct {
	codes chan string
}

var _ CodeProvider = (*OneShot)(nil)

// NewOneShot creates an empty OneShot provider.
func NewOneShot() *OneShot {
	return &OneShot{codes: make(chan string, 1)}
}

// Supply hands a code to a pending (or future) RequestCode call. It
// never blocks; if a code is already queued the new one is dropped.
func (p *OneShot) Supply(code string) {
	select {
	case p.codes <- code:
	default:
	}
}

func (p *OneShot) RequestCode(ctx context.Context, _ Challenge) (string, error) {
	select {
	case code := <-p.codes:
		return code, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}

// Static returns a provider that always answers with the same code.
// Useful when the code is known up front (tests, replayed flows).
func Static(code string) CodeProvider {
	return staticProvider(code)
}

type staticProvider string

func (p staticProvider) RequestCode(context.Context, Challenge) (string, error) {
	return string(p), nil
}
