// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "time"

// retryPolicy decides whether a session may attempt another
// connection after an unexpected disconnect. The attempt counter
// never resets within a run.
type retryPolicy struct {
	maxAttempts int
	backoff     time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxAttempts: 5, backoff: 5 * time.Second}
}

// allow reports whether reconnect attempt number attempt may proceed.
// Every condition must hold: the attempt budget is not exhausted, the
// disconnect was not requested by the caller, no terminal outcome
// that a reconnect cannot improve on has been recorded, and the
// session has not been stopped.
func (p retryPolicy) allow(attempt int, userInitiated bool, result Result, running bool) bool {
	if attempt > p.maxAttempts {
		return false
	}
	if userInitiated {
		return false
	}
	if result == ResultSuccess || result == ResultAlreadyLoggedInElsewhere {
		return false
	}
	return running
}
