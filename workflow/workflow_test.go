// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"testing"

	"github.com/warden-foundation/warden/gateway"
	"github.com/warden-foundation/warden/lib/codec"
)

func TestBuildPayloadReportDefaults(t *testing.T) {
	message, err := BuildPayload(Report{TargetID: 42, MatchID: 7})
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if message.Type != MsgReport {
		t.Fatalf("message type = %d, want %d", message.Type, MsgReport)
	}
	var body reportBody
	if err := codec.Unmarshal(message.Body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	want := reportBody{
		TargetID: 42, MatchID: 7,
		Aimbot: 2, Wallhack: 3, Speedhack: 4,
		TeamHarm: 5, TextAbuse: 6, VoiceAbuse: 7,
	}
	if body != want {
		t.Fatalf("report body = %+v, want %+v", body, want)
	}
}

func TestBuildPayloadReportOverrides(t *testing.T) {
	message, err := BuildPayload(Report{
		TargetID:   42,
		MatchID:    7,
		Severities: Severities{Aimbot: 9},
	})
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	var body reportBody
	if err := codec.Unmarshal(message.Body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Aimbot != 9 {
		t.Fatalf("overridden aimbot = %d, want 9", body.Aimbot)
	}
	if body.Wallhack != 3 {
		t.Fatalf("unoverridden wallhack = %d, want default 3", body.Wallhack)
	}
}

func TestBuildPayloadCommend(t *testing.T) {
	message, err := BuildPayload(Commend{
		TargetID: 42,
		Reasons:  CommendReasons{Friendly: true, Leader: true},
	})
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if message.Type != MsgCommend {
		t.Fatalf("message type = %d, want %d", message.Type, MsgCommend)
	}
	var body commendBody
	if err := codec.Unmarshal(message.Body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !body.Friendly || body.Teaching || !body.Leader {
		t.Fatalf("commend flags = %+v", body)
	}
	if body.Reason != "friendly, a good leader" {
		t.Fatalf("reason = %q", body.Reason)
	}
}

func TestCommendReasonsString(t *testing.T) {
	tests := []struct {
		reasons CommendReasons
		want    string
	}{
		{CommendReasons{}, "commended"},
		{CommendReasons{Friendly: true}, "friendly"},
		{CommendReasons{Teaching: true, Leader: true}, "a good teacher, a good leader"},
	}
	for _, test := range tests {
		if got := test.reasons.String(); got != test.want {
			t.Errorf("%+v → %q, want %q", test.reasons, got, test.want)
		}
	}
}

func TestBuildPayloadMatchQuery(t *testing.T) {
	message, err := BuildPayload(MatchQuery{MatchID: 5})
	if err != nil {
		t.Fatalf("BuildPayload: %v", err)
	}
	if message.Type != MsgMatchListRequest {
		t.Fatalf("message type = %d, want %d", message.Type, MsgMatchListRequest)
	}
	var body matchListRequestBody
	if err := codec.Unmarshal(message.Body, &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.MatchID != 5 {
		t.Fatalf("match id = %d, want 5", body.MatchID)
	}
}

func appMessage(t *testing.T, msgType uint32, body any) gateway.AppMessage {
	t.Helper()
	encoded, err := codec.Marshal(body)
	if err != nil {
		t.Fatalf("encoding %T: %v", body, err)
	}
	return gateway.AppMessage{Type: msgType, Body: encoded}
}

func TestDispatchWelcome(t *testing.T) {
	dispatcher := NewDispatcher(Report{TargetID: 1}, nil)
	action, err := dispatcher.Dispatch(gateway.AppMessage{Type: MsgWelcome})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if action.Kind != ActionReady {
		t.Fatalf("welcome action = %+v, want ActionReady", action)
	}
}

func TestDispatchReportResponse(t *testing.T) {
	dispatcher := NewDispatcher(Report{TargetID: 1}, nil)

	action, err := dispatcher.Dispatch(appMessage(t, MsgReportResponse, reportResponseBody{ConfirmationID: 42}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if action.Kind != ActionCompleted || action.Outcome != OutcomeSuccess {
		t.Fatalf("action = %+v", action)
	}
	if action.ConfirmationID != 42 {
		t.Fatalf("confirmation id = %d, want 42", action.ConfirmationID)
	}
}

func TestDispatchCommendResponse(t *testing.T) {
	dispatcher := NewDispatcher(Commend{TargetID: 1}, nil)

	action, err := dispatcher.Dispatch(gateway.AppMessage{Type: MsgCommendResponse})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if action.Kind != ActionCompleted || action.Outcome != OutcomeSuccess {
		t.Fatalf("action = %+v", action)
	}
}

func TestDispatchMatchListFirstWins(t *testing.T) {
	dispatcher := NewDispatcher(MatchQuery{MatchID: 5}, nil)

	action, err := dispatcher.Dispatch(appMessage(t, MsgMatchList, matchListBody{
		Matches: []MatchInfo{{MatchID: 5}, {MatchID: 9}},
	}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if action.Kind != ActionCompleted || action.Outcome != OutcomeSuccess {
		t.Fatalf("action = %+v", action)
	}
	if action.Match == nil || action.Match.MatchID != 5 {
		t.Fatalf("match = %+v, want first-listed id 5", action.Match)
	}
}

func TestDispatchMatchListEmpty(t *testing.T) {
	dispatcher := NewDispatcher(MatchQuery{MatchID: 5}, nil)

	action, err := dispatcher.Dispatch(appMessage(t, MsgMatchList, matchListBody{}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if action.Kind != ActionCompleted || action.Outcome != OutcomeNoMatches {
		t.Fatalf("action = %+v", action)
	}
	if action.Match == nil || action.Match.MatchID != SentinelMatchID {
		t.Fatalf("match = %+v, want sentinel id %d", action.Match, SentinelMatchID)
	}
}

func TestDispatchIgnoresCrossWorkflowResponses(t *testing.T) {
	dispatcher := NewDispatcher(Commend{TargetID: 1}, nil)

	// A report response while a commend is active means nothing.
	action, err := dispatcher.Dispatch(appMessage(t, MsgReportResponse, reportResponseBody{ConfirmationID: 42}))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if action.Kind != ActionIgnored {
		t.Fatalf("cross-workflow action = %+v, want ActionIgnored", action)
	}
}

func TestDispatchIgnoresUnknownTypes(t *testing.T) {
	dispatcher := NewDispatcher(Report{TargetID: 1}, nil)

	action, err := dispatcher.Dispatch(gateway.AppMessage{Type: 9999, Body: []byte{0x01}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if action.Kind != ActionIgnored {
		t.Fatalf("unknown-type action = %+v, want ActionIgnored", action)
	}
}
