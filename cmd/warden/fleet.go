// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/warden-foundation/warden/banlookup"
	"github.com/warden-foundation/warden/gateway"
	"github.com/warden-foundation/warden/lib/config"
	"github.com/warden-foundation/warden/lib/secret"
	"github.com/warden-foundation/warden/sentry"
	"github.com/warden-foundation/warden/session"
	"github.com/warden-foundation/warden/workflow"
)

// accountResult is one account's final disposition.
type accountResult struct {
	Username       string
	Result         session.Result
	ConfirmationID uint64
	Match          *workflow.MatchInfo
	// Err is set when the session could not even be constructed
	// (bad roster entry, dial setup failure).
	Err error
}

// fleet runs one session per roster account, all against the same
// workflow request, and collects their outcomes.
type fleet struct {
	gatewayAddress string
	appID          uint32
	sentries       *sentry.Store
	bans           banlookup.Lookup
	prompter       *prompter
	logger         *slog.Logger
}

// run starts every account's session concurrently and blocks until
// all have finished. Results come back in roster order.
func (f *fleet) run(ctx context.Context, accounts []config.AccountEntry, request workflow.Request) ([]accountResult, error) {
	results := make([]accountResult, len(accounts))

	var wg sync.WaitGroup
	for i, entry := range accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.runOne(ctx, entry, request)
		}()
	}
	wg.Wait()

	return results, nil
}

func (f *fleet) runOne(ctx context.Context, entry config.AccountEntry, request workflow.Request) accountResult {
	result := accountResult{Username: entry.Username}

	account, cleanup, err := f.buildAccount(entry)
	if err != nil {
		result.Err = err
		return result
	}
	defer cleanup()

	conn, err := gateway.NewTCPConn(gateway.TCPConfig{
		Address: f.gatewayAddress,
		Logger:  f.logger.With("username", entry.Username),
	})
	if err != nil {
		result.Err = err
		return result
	}

	manager, err := session.New(session.Config{
		Conn:     conn,
		Sentries: f.sentries,
		Bans:     f.bans,
		Codes:    f.prompter,
		Logger:   f.logger,
		AppID:    f.appID,
	}, account, request)
	if err != nil {
		result.Err = err
		return result
	}

	result.Result = manager.Start(ctx)
	result.ConfirmationID = manager.ConfirmationID()
	result.Match = manager.MatchInfo()
	return result
}

// buildAccount turns a roster entry into session credentials, moving
// the password and device secret into protected buffers. A missing
// password is prompted for on the terminal.
func (f *fleet) buildAccount(entry config.AccountEntry) (session.Account, func(), error) {
	var buffers []*secret.Buffer
	cleanup := func() {
		for _, buffer := range buffers {
			buffer.Close()
		}
	}

	passwordText := entry.Password
	if passwordText == "" {
		prompted, err := f.prompter.promptPassword(entry.Username)
		if err != nil {
			return session.Account{}, cleanup, fmt.Errorf("reading password for %q: %w", entry.Username, err)
		}
		passwordText = prompted
	}
	password, err := secret.NewFromBytes([]byte(passwordText))
	if err != nil {
		return session.Account{}, cleanup, err
	}
	buffers = append(buffers, password)

	account := session.Account{Username: entry.Username, Password: password}
	if entry.SharedSecret != "" {
		shared, err := secret.NewFromBytes([]byte(entry.SharedSecret))
		if err != nil {
			return session.Account{}, cleanup, err
		}
		buffers = append(buffers, shared)
		account.SharedSecret = shared
	}
	return account, cleanup, nil
}
