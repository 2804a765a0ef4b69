// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"strings"
	"time"
)

// Request is the closed set of workflow variants. Exactly one Request
// is active per session and it never changes after the session starts.
type Request interface {
	isRequest()
	// Name is the workflow's short name for logs.
	Name() string
}

// Severities are the per-category weights attached to a report. A
// zero field means "use the default for that category".
type Severities struct {
	Aimbot     int
	Wallhack   int
	Speedhack  int
	TeamHarm   int
	TextAbuse  int
	VoiceAbuse int
}

// DefaultSeverities returns the standard report weights.
func DefaultSeverities() Severities {
	return Severities{
		Aimbot:     2,
		Wallhack:   3,
		Speedhack:  4,
		TeamHarm:   5,
		TextAbuse:  6,
		VoiceAbuse: 7,
	}
}

// withDefaults fills zero fields from DefaultSeverities.
func (s Severities) withDefaults() Severities {
	defaults := DefaultSeverities()
	if s.Aimbot == 0 {
		s.Aimbot = defaults.Aimbot
	}
	if s.Wallhack == 0 {
		s.Wallhack = defaults.Wallhack
	}
	if s.Speedhack == 0 {
		s.Speedhack = defaults.Speedhack
	}
	if s.TeamHarm == 0 {
		s.TeamHarm = defaults.TeamHarm
	}
	if s.TextAbuse == 0 {
		s.TextAbuse = defaults.TextAbuse
	}
	if s.VoiceAbuse == 0 {
		s.VoiceAbuse = defaults.VoiceAbuse
	}
	return s
}

// Report asks the service to file a report against a player in a
// match.
type Report struct {
	TargetID uint64
	MatchID  uint64
	// Severities may override individual category weights; zero
	// fields fall back to the defaults.
	Severities Severities
}

func (Report) isRequest()   {}
func (Report) Name() string { return "report" }

// CommendReasons selects which qualities a commendation praises.
type CommendReasons struct {
	Friendly bool
	Teaching bool
	Leader   bool
}

// String renders the selected reasons for the service's free-form
// reason field.
func (r CommendReasons) String() string {
	var parts []string
	if r.Friendly {
		parts = append(parts, "friendly")
	}
	if r.Teaching {
		parts = append(parts, "a good teacher")
	}
	if r.Leader {
		parts = append(parts, "a good leader")
	}
	if len(parts) == 0 {
		return "commended"
	}
	return strings.Join(parts, ", ")
}

// Commend asks the service to record a commendation for a player.
type Commend struct {
	TargetID uint64
	Reasons  CommendReasons
}

func (Commend) isRequest()   {}
func (Commend) Name() string { return "commend" }

// MatchQuery asks the service for the details of a match.
type MatchQuery struct {
	MatchID uint64
}

func (MatchQuery) isRequest()   {}
func (MatchQuery) Name() string { return "match-query" }

// SentinelMatchID is the reserved match identifier used when a match
// list response contains no matches.
const SentinelMatchID uint64 = 8

// RoundStat is the per-round statistics block of a match.
type RoundStat struct {
	Round         int    `cbor:"round"`
	Kills         []int  `cbor:"kills,omitempty"`
	Assists       []int  `cbor:"assists,omitempty"`
	Deaths        []int  `cbor:"deaths,omitempty"`
	Scores        []int  `cbor:"scores,omitempty"`
	ReservationID uint64 `cbor:"reservation_id,omitempty"`
}

// MatchInfo is the data a successful MatchQuery yields. For an empty
// match list it holds SentinelMatchID and nothing else.
type MatchInfo struct {
	MatchID   uint64    `cbor:"match_id"`
	MatchTime time.Time `cbor:"match_time,omitempty"`
	// WatchableID identifies the spectate stream, zero when the match
	// is not watchable.
	WatchableID uint64      `cbor:"watchable_id,omitempty"`
	RoundStats  []RoundStat `cbor:"round_stats,omitempty"`
}
