// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/warden-foundation/warden/session"
)

var (
	summaryHeaderStyle = lipgloss.NewStyle().Bold(true)
	summaryGoodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	summaryWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	summaryBadStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func resultStyle(result session.Result) lipgloss.Style {
	switch result {
	case session.ResultSuccess:
		return summaryGoodStyle
	case session.ResultNoMatches, session.ResultAccountBanned, session.ResultUnknown:
		return summaryWarnStyle
	default:
		return summaryBadStyle
	}
}

// renderSummary formats the per-account outcomes as an aligned,
// colored table.
func renderSummary(results []accountResult) string {
	nameWidth := len("account")
	for _, r := range results {
		if len(r.Username) > nameWidth {
			nameWidth = len(r.Username)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n",
		summaryHeaderStyle.Render(pad("account", nameWidth)),
		summaryHeaderStyle.Render("outcome"))

	for _, r := range results {
		var outcome string
		switch {
		case r.Err != nil:
			outcome = summaryBadStyle.Render(fmt.Sprintf("error: %v", r.Err))
		case r.ConfirmationID != 0:
			outcome = resultStyle(r.Result).Render(
				fmt.Sprintf("%s (confirmation %d)", r.Result, r.ConfirmationID))
		case r.Match != nil:
			outcome = resultStyle(r.Result).Render(
				fmt.Sprintf("%s (match %d)", r.Result, r.Match.MatchID))
		default:
			outcome = resultStyle(r.Result).Render(r.Result.String())
		}
		fmt.Fprintf(&b, "%s  %s\n", pad(r.Username, nameWidth), outcome)
	}
	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
