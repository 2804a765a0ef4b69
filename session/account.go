// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"

	"github.com/warden-foundation/warden/lib/secret"
)

// Account is one set of login credentials. Immutable for the life of
// a session; the secret buffers are owned by the caller and must stay
// valid until Start returns.
type Account struct {
	Username string
	Password *secret.Buffer
	// SharedSecret is the optional base64-encoded device secret used
	// to answer two-factor challenges locally. Nil when the account
	// has no authenticator on file.
	SharedSecret *secret.Buffer
}

func (a Account) validate() error {
	if a.Username == "" {
		return fmt.Errorf("session: account username is required")
	}
	if a.Password == nil || a.Password.Len() == 0 {
		return fmt.Errorf("session: account %q has no password", a.Username)
	}
	return nil
}
