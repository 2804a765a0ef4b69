// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"

	"github.com/warden-foundation/warden/gateway"
	"github.com/warden-foundation/warden/lib/codec"
)

// Application message types. Client-to-service types are even,
// service-to-client responses odd.
const (
	// MsgHello announces the client after the application
	// registration; the service answers with MsgWelcome once the
	// session is ready for workflow traffic.
	MsgHello   uint32 = 100
	MsgWelcome uint32 = 101

	MsgReport         uint32 = 110
	MsgReportResponse uint32 = 111

	MsgCommend         uint32 = 112
	MsgCommendResponse uint32 = 113

	MsgMatchListRequest uint32 = 114
	MsgMatchList        uint32 = 115
)

// Wire bodies for the application messages. CBOR keys are the wire
// contract with the reference gateway.

type reportBody struct {
	TargetID   uint64 `cbor:"target_id"`
	MatchID    uint64 `cbor:"match_id"`
	Aimbot     int    `cbor:"aimbot"`
	Wallhack   int    `cbor:"wallhack"`
	Speedhack  int    `cbor:"speedhack"`
	TeamHarm   int    `cbor:"team_harm"`
	TextAbuse  int    `cbor:"text_abuse"`
	VoiceAbuse int    `cbor:"voice_abuse"`
}

type reportResponseBody struct {
	ConfirmationID uint64 `cbor:"confirmation_id"`
}

type commendBody struct {
	TargetID uint64 `cbor:"target_id"`
	Friendly bool   `cbor:"friendly"`
	Teaching bool   `cbor:"teaching"`
	Leader   bool   `cbor:"leader"`
	Reason   string `cbor:"reason"`
}

type matchListRequestBody struct {
	MatchID uint64 `cbor:"match_id"`
}

type matchListBody struct {
	Matches []MatchInfo `cbor:"matches"`
}

// BuildHello returns the post-login hello message.
func BuildHello() (gateway.AppMessage, error) {
	return gateway.AppMessage{Type: MsgHello}, nil
}

// BuildPayload returns the application message that starts the given
// workflow. Pure: no I/O, no session state.
func BuildPayload(request Request) (gateway.AppMessage, error) {
	switch r := request.(type) {
	case Report:
		severities := r.Severities.withDefaults()
		body, err := codec.Marshal(reportBody{
			TargetID:   r.TargetID,
			MatchID:    r.MatchID,
			Aimbot:     severities.Aimbot,
			Wallhack:   severities.Wallhack,
			Speedhack:  severities.Speedhack,
			TeamHarm:   severities.TeamHarm,
			TextAbuse:  severities.TextAbuse,
			VoiceAbuse: severities.VoiceAbuse,
		})
		if err != nil {
			return gateway.AppMessage{}, fmt.Errorf("workflow: encoding report: %w", err)
		}
		return gateway.AppMessage{Type: MsgReport, Body: body}, nil

	case Commend:
		body, err := codec.Marshal(commendBody{
			TargetID: r.TargetID,
			Friendly: r.Reasons.Friendly,
			Teaching: r.Reasons.Teaching,
			Leader:   r.Reasons.Leader,
			Reason:   r.Reasons.String(),
		})
		if err != nil {
			return gateway.AppMessage{}, fmt.Errorf("workflow: encoding commend: %w", err)
		}
		return gateway.AppMessage{Type: MsgCommend, Body: body}, nil

	case MatchQuery:
		body, err := codec.Marshal(matchListRequestBody{MatchID: r.MatchID})
		if err != nil {
			return gateway.AppMessage{}, fmt.Errorf("workflow: encoding match request: %w", err)
		}
		return gateway.AppMessage{Type: MsgMatchListRequest, Body: body}, nil

	default:
		return gateway.AppMessage{}, fmt.Errorf("workflow: unsupported request type %T", request)
	}
}
