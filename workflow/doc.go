// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow defines the scripted actions a session performs
// once authenticated: submitting a report, submitting a commendation,
// or querying match data. A session carries exactly one Request;
// BuildPayload turns it into the application message to send after
// the service's welcome, and Dispatcher interprets inbound application
// messages until one of them completes the workflow.
package workflow
