// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package banlookup queries an account's standing against the ban
// service. Sessions consult it once per successful login; a banned
// account is reported but the session is allowed to proceed.
package banlookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// BanInfo is the ban standing of one account.
type BanInfo struct {
	// VACBanned is true when the account carries an anti-cheat ban.
	VACBanned bool `json:"vac_banned"`
	// GameBanCount is the number of game bans on record.
	GameBanCount int `json:"game_ban_count"`
	// DaysSinceLastBan is days since the most recent ban, zero when
	// never banned.
	DaysSinceLastBan int `json:"days_since_last_ban"`
	// CommunityBanned is true for a community-feature ban; it does not
	// make the account Banned.
	CommunityBanned bool `json:"community_banned"`
}

// Banned reports whether the account's standing blocks normal play.
func (b BanInfo) Banned() bool {
	return b.VACBanned || b.GameBanCount > 0
}

// Lookup answers ban queries. The production implementation is
// Client; tests substitute fakes.
type Lookup interface {
	Bans(ctx context.Context, identity uint64) (BanInfo, error)
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the ban service root, e.g. "https://bans.example.com".
	BaseURL string
	// APIKey authenticates requests. Sent as a query parameter.
	APIKey string
	// HTTPClient is the transport to use. Defaults to a client with a
	// 10-second timeout.
	HTTPClient *http.Client
	// Logger receives request activity. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client queries the ban service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Lookup = (*Client)(nil)

// NewClient creates a ban service client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("banlookup: BaseURL is required")
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Bans fetches the ban standing for the given account identity.
func (c *Client) Bans(ctx context.Context, identity uint64) (BanInfo, error) {
	query := url.Values{}
	query.Set("identity", strconv.FormatUint(identity, 10))
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	requestURL := c.baseURL + "/v1/bans?" + query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return BanInfo{}, fmt.Errorf("banlookup: building request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return BanInfo{}, fmt.Errorf("banlookup: querying bans for %d: %w", identity, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return BanInfo{}, fmt.Errorf("banlookup: reading response: %w", err)
	}
	if response.StatusCode != http.StatusOK {
		return BanInfo{}, fmt.Errorf("banlookup: ban service returned %s: %s",
			response.Status, truncate(body, 200))
	}

	var info BanInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return BanInfo{}, fmt.Errorf("banlookup: decoding response: %w", err)
	}
	c.logger.Debug("ban lookup",
		"identity", identity,
		"vac_banned", info.VACBanned,
		"game_bans", info.GameBanCount)
	return info, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
