// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/warden-foundation/warden/guard"
)

// prompter reads second-factor codes and passwords from the terminal.
// Sessions run concurrently but the terminal is one resource, so all
// prompts are serialized by the mutex.
type prompter struct {
	mu     sync.Mutex
	reader *bufio.Reader
	out    io.Writer
}

var _ guard.CodeProvider = (*prompter)(nil)

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{reader: bufio.NewReader(in), out: out}
}

// RequestCode prompts for one second-factor code. The read itself is
// not interruptible; cancellation is honored before and after it.
func (p *prompter) RequestCode(ctx context.Context, challenge guard.Challenge) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", guard.ErrCancelled, err)
	}

	switch challenge.Kind {
	case guard.ChallengeEmail:
		domain := challenge.EmailDomain
		if domain == "" {
			domain = "your email"
		}
		fmt.Fprintf(p.out, "[%s] code sent to %s: ", challenge.Username, domain)
	default:
		fmt.Fprintf(p.out, "[%s] authenticator code: ", challenge.Username)
	}

	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading code: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", guard.ErrCancelled, err)
	}
	code := strings.ToUpper(strings.TrimSpace(line))
	if code == "" {
		return "", fmt.Errorf("empty code for %q", challenge.Username)
	}
	return code, nil
}

// promptPassword reads a password without echo when stdin is a
// terminal, falling back to a plain line read otherwise (piped
// input, tests).
func (p *prompter) promptPassword(username string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "[%s] password: ", username)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
