// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"sync"
)

// Result is the terminal outcome of one session run.
type Result int

const (
	// ResultUnknown is the initial value. A session that was stopped
	// before reaching any outcome returns it.
	ResultUnknown Result = iota
	// ResultSuccess means the workflow completed.
	ResultSuccess
	// ResultAccountBanned means the account carries a ban. The
	// session may still have run its workflow.
	ResultAccountBanned
	// ResultRateLimit means the service throttled the login.
	ResultRateLimit
	// ResultCode2FAWrong means a supplied second-factor code was
	// rejected.
	ResultCode2FAWrong
	// ResultAlreadyLoggedInElsewhere means another session holds the
	// account.
	ResultAlreadyLoggedInElsewhere
	// ResultNoMatches means a match query returned an empty list.
	ResultNoMatches
	// ResultGenericFailure covers every other way a session can end.
	ResultGenericFailure
)

var resultNames = map[Result]string{
	ResultUnknown:                  "unknown",
	ResultSuccess:                  "success",
	ResultAccountBanned:            "account-banned",
	ResultRateLimit:                "rate-limited",
	ResultCode2FAWrong:             "two-factor-code-wrong",
	ResultAlreadyLoggedInElsewhere: "logged-in-elsewhere",
	ResultNoMatches:                "no-matches",
	ResultGenericFailure:           "generic-failure",
}

func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// resultSink holds the session's terminal Result with write-once
// semantics: the first value other than ResultUnknown sticks, every
// later write is dropped. Safe for concurrent use; the run loop
// writes, Stop and observers read.
type resultSink struct {
	mu    sync.Mutex
	value Result
}

// Set records r if no outcome has been recorded yet. It reports
// whether the write took effect. Setting ResultUnknown never takes
// effect.
func (s *resultSink) Set(r Result) bool {
	if r == ResultUnknown {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value != ResultUnknown {
		return false
	}
	s.value = r
	return true
}

// Load returns the recorded Result, ResultUnknown if none.
func (s *resultSink) Load() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
