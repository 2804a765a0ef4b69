// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"log/slog"

	"github.com/warden-foundation/warden/gateway"
	"github.com/warden-foundation/warden/lib/codec"
)

// ActionKind classifies what an inbound application message means for
// the active workflow.
type ActionKind int

const (
	// ActionIgnored: the message does not concern this workflow.
	ActionIgnored ActionKind = iota
	// ActionReady: the service is ready; send the workflow payload.
	ActionReady
	// ActionCompleted: the workflow reached its terminal outcome.
	ActionCompleted
)

// Outcome is the terminal disposition of a completed workflow.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNoMatches
)

// Action is the dispatcher's verdict on one inbound message.
type Action struct {
	Kind    ActionKind
	Outcome Outcome
	// ConfirmationID is set on a completed report.
	ConfirmationID uint64
	// Match is set on a completed match query.
	Match *MatchInfo
}

// Dispatcher interprets inbound application messages for one active
// workflow. Messages belonging to other workflows, and unknown
// message types, are ignored.
type Dispatcher struct {
	request Request
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher scoped to one request. A nil
// logger falls back to slog.Default().
func NewDispatcher(request Request, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{request: request, logger: logger}
}

// Dispatch classifies one inbound message. Decode failures on a
// message that belongs to the active workflow are returned as errors;
// everything irrelevant yields ActionIgnored with no error.
func (d *Dispatcher) Dispatch(message gateway.AppMessage) (Action, error) {
	if message.Type == MsgWelcome {
		return Action{Kind: ActionReady}, nil
	}

	switch d.request.(type) {
	case Report:
		if message.Type != MsgReportResponse {
			return Action{}, nil
		}
		var body reportResponseBody
		if err := codec.Unmarshal(message.Body, &body); err != nil {
			return Action{}, fmt.Errorf("workflow: decoding report response: %w", err)
		}
		d.logger.Info("report accepted", "confirmation_id", body.ConfirmationID)
		return Action{
			Kind:           ActionCompleted,
			Outcome:        OutcomeSuccess,
			ConfirmationID: body.ConfirmationID,
		}, nil

	case Commend:
		if message.Type != MsgCommendResponse {
			return Action{}, nil
		}
		// The service sends no payload worth inspecting; the response
		// itself is the acknowledgement.
		d.logger.Info("commend accepted")
		return Action{Kind: ActionCompleted, Outcome: OutcomeSuccess}, nil

	case MatchQuery:
		if message.Type != MsgMatchList {
			return Action{}, nil
		}
		var body matchListBody
		if err := codec.Unmarshal(message.Body, &body); err != nil {
			return Action{}, fmt.Errorf("workflow: decoding match list: %w", err)
		}
		if len(body.Matches) == 0 {
			d.logger.Info("match list empty")
			return Action{
				Kind:    ActionCompleted,
				Outcome: OutcomeNoMatches,
				Match:   &MatchInfo{MatchID: SentinelMatchID},
			}, nil
		}
		// First in server order. Arbitrary but deterministic.
		match := body.Matches[0]
		d.logger.Info("match list received",
			"matches", len(body.Matches),
			"match_id", match.MatchID)
		return Action{
			Kind:    ActionCompleted,
			Outcome: OutcomeSuccess,
			Match:   &match,
		}, nil

	default:
		return Action{}, nil
	}
}
