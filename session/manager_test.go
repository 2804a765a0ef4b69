// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/zeebo/blake3"

	"github.com/warden-foundation/warden/banlookup"
	"github.com/warden-foundation/warden/gateway"
	"github.com/warden-foundation/warden/guard"
	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/lib/codec"
	"github.com/warden-foundation/warden/lib/secret"
	"github.com/warden-foundation/warden/lib/testutil"
	"github.com/warden-foundation/warden/sentry"
	"github.com/warden-foundation/warden/workflow"
)

// fakeConn is a scripted gateway.Conn. Tests feed inbound events
// through Events and observe outbound calls through the recorded
// slices. The onLogOn hook lets a test answer each login attempt.
type fakeConn struct {
	events chan gateway.Event

	mu          sync.Mutex
	connects    int
	disconnects int
	logOffs     int
	logOns      []gateway.LogOnDetails
	presence    []bool
	announced   []uint32
	sent        []gateway.AppMessage
	confirmed   []gateway.SentryConfirm

	onLogOn func(attempt int, details gateway.LogOnDetails)
}

var _ gateway.Conn = (*fakeConn)(nil)

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan gateway.Event, 32)}
}

func (c *fakeConn) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connects++
	c.mu.Unlock()
	c.events <- gateway.Connected{}
	return nil
}

func (c *fakeConn) Disconnect() {
	c.mu.Lock()
	c.disconnects++
	c.mu.Unlock()
}

func (c *fakeConn) LogOn(details gateway.LogOnDetails) error {
	c.mu.Lock()
	c.logOns = append(c.logOns, details)
	attempt := len(c.logOns)
	hook := c.onLogOn
	c.mu.Unlock()
	if hook != nil {
		hook(attempt, details)
	}
	return nil
}

func (c *fakeConn) LogOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logOffs++
	return nil
}

func (c *fakeConn) SetPresence(online bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence = append(c.presence, online)
	return nil
}

func (c *fakeConn) AnnounceApp(appID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.announced = append(c.announced, appID)
	return nil
}

func (c *fakeConn) SendAppMessage(message gateway.AppMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, message)
	return nil
}

func (c *fakeConn) ConfirmSentry(confirm gateway.SentryConfirm) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed = append(c.confirmed, confirm)
	return nil
}

func (c *fakeConn) Events() <-chan gateway.Event { return c.events }

func (c *fakeConn) sentMessages() []gateway.AppMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gateway.AppMessage(nil), c.sent...)
}

func (c *fakeConn) logOnAttempts() []gateway.LogOnDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]gateway.LogOnDetails(nil), c.logOns...)
}

// fakeBans is a canned banlookup.Lookup.
type fakeBans struct {
	info    banlookup.BanInfo
	err     error
	queries int
}

func (b *fakeBans) Bans(ctx context.Context, identity uint64) (banlookup.BanInfo, error) {
	b.queries++
	return b.info, b.err
}

// failingProvider fails the test if the session ever asks it for a
// code.
type failingProvider struct{ t *testing.T }

func (p failingProvider) RequestCode(ctx context.Context, challenge guard.Challenge) (string, error) {
	p.t.Errorf("code provider consulted for %v, expected local generation", challenge.Kind)
	return "", guard.ErrCancelled
}

func testAccount(t *testing.T, sharedSecret string) Account {
	t.Helper()
	password, err := secret.NewFromBytes([]byte("hunter2"))
	if err != nil {
		t.Fatalf("secret.NewFromBytes: %v", err)
	}
	t.Cleanup(func() { password.Close() })

	account := Account{Username: "alice", Password: password}
	if sharedSecret != "" {
		buffer, err := secret.NewFromBytes([]byte(sharedSecret))
		if err != nil {
			t.Fatalf("secret.NewFromBytes: %v", err)
		}
		t.Cleanup(func() { buffer.Close() })
		account.SharedSecret = buffer
	}
	return account
}

func encodeBody(t *testing.T, body any) []byte {
	t.Helper()
	encoded, err := codec.Marshal(body)
	if err != nil {
		t.Fatalf("codec.Marshal: %v", err)
	}
	return encoded
}

// startSession runs manager.Start in a goroutine and returns the
// channel its Result lands on.
func startSession(t *testing.T, manager *Manager) <-chan Result {
	t.Helper()
	results := make(chan Result, 1)
	go func() { results <- manager.Start(context.Background()) }()
	return results
}

// settle advances the fake clock past the post-announcement delay
// once the session is waiting on it.
func settle(clk *clock.FakeClock) {
	clk.WaitForTimers(1)
	clk.Advance(5 * time.Second)
}

func TestReportWorkflowSuccess(t *testing.T) {
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnOK, Identity: 9001}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))
	bans := &fakeBans{}

	manager, err := New(Config{Conn: conn, Clock: clk, Bans: bans},
		testAccount(t, ""), workflow.Report{TargetID: 7, MatchID: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	settle(clk)
	conn.events <- gateway.AppMessage{Type: workflow.MsgWelcome}
	conn.events <- gateway.AppMessage{
		Type: workflow.MsgReportResponse,
		Body: encodeBody(t, map[string]any{"confirmation_id": 42}),
	}

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultSuccess {
		t.Fatalf("result = %v, want success", result)
	}
	if got := manager.ConfirmationID(); got != 42 {
		t.Fatalf("confirmation id = %d, want 42", got)
	}
	if bans.queries != 1 {
		t.Fatalf("ban lookups = %d, want 1", bans.queries)
	}

	// The workflow payload went out after the hello.
	sent := conn.sentMessages()
	if len(sent) != 2 || sent[0].Type != workflow.MsgHello || sent[1].Type != workflow.MsgReport {
		types := make([]uint32, len(sent))
		for i, m := range sent {
			types[i] = m.Type
		}
		t.Fatalf("sent message types = %v, want [hello report]", types)
	}

	// Teardown unwound presence, logged off, and disconnected.
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.presence) != 2 || !conn.presence[0] || conn.presence[1] {
		t.Fatalf("presence calls = %v, want [true false]", conn.presence)
	}
	if conn.logOffs != 1 {
		t.Fatalf("logoffs = %d, want 1", conn.logOffs)
	}
	if conn.disconnects == 0 {
		t.Fatal("session never disconnected")
	}
	if len(conn.announced) != 1 || conn.announced[0] != DefaultAppID {
		t.Fatalf("announced apps = %v, want [%d]", conn.announced, DefaultAppID)
	}
}

func TestSharedSecretAnswersChallengeLocally(t *testing.T) {
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		if attempt == 1 {
			conn.events <- gateway.LogOnResult{Code: gateway.LogOnNeedTwoFactor}
			return
		}
		if details.TwoFactorCode == "" {
			t.Errorf("retry attempt carried no two-factor code")
		}
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnOK, Identity: 9001}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))

	// A valid base64 shared secret; the code value itself does not
	// matter, only that one was generated without the provider.
	manager, err := New(Config{Conn: conn, Clock: clk, Codes: failingProvider{t}},
		testAccount(t, "MDEyMzQ1Njc4OWFiY2RlZmdoaWo="), workflow.Commend{TargetID: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	settle(clk)
	conn.events <- gateway.AppMessage{Type: workflow.MsgWelcome}
	conn.events <- gateway.AppMessage{Type: workflow.MsgCommendResponse}

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultSuccess {
		t.Fatalf("result = %v, want success", result)
	}
	if attempts := conn.logOnAttempts(); len(attempts) != 2 {
		t.Fatalf("login attempts = %d, want 2", len(attempts))
	}
}

func TestExternalProviderAnswersChallenge(t *testing.T) {
	provider := guard.NewOneShot()
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		if attempt == 1 {
			conn.events <- gateway.LogOnResult{Code: gateway.LogOnNeedTwoFactor}
			return
		}
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnOK, Identity: 9001}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk, Codes: provider},
		testAccount(t, ""), workflow.Commend{TargetID: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	provider.Supply("G7KMP")

	settle(clk)
	conn.events <- gateway.AppMessage{Type: workflow.MsgWelcome}
	conn.events <- gateway.AppMessage{Type: workflow.MsgCommendResponse}

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultSuccess {
		t.Fatalf("result = %v, want success", result)
	}
	attempts := conn.logOnAttempts()
	if len(attempts) != 2 {
		t.Fatalf("login attempts = %d, want 2", len(attempts))
	}
	if attempts[1].TwoFactorCode != "G7KMP" {
		t.Fatalf("retry code = %q, want supplied code", attempts[1].TwoFactorCode)
	}
}

func TestReconnectBudget(t *testing.T) {
	conn := newFakeConn()
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk},
		testAccount(t, ""), workflow.Commend{TargetID: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	// Five unexpected drops are retried after the fixed backoff; the
	// sixth exhausts the budget.
	for drop := 1; drop <= 6; drop++ {
		conn.events <- gateway.Disconnected{}
		if drop <= 5 {
			clk.WaitForTimers(1)
			clk.Advance(5 * time.Second)
		}
	}

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultGenericFailure {
		t.Fatalf("result = %v, want generic failure", result)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	// Initial connect plus five reconnects.
	if conn.connects != 6 {
		t.Fatalf("connects = %d, want 6", conn.connects)
	}
}

func TestBanRecordedButWorkflowRuns(t *testing.T) {
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnOK, Identity: 9001}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))
	bans := &fakeBans{info: banlookup.BanInfo{VACBanned: true}}

	manager, err := New(Config{Conn: conn, Clock: clk, Bans: bans},
		testAccount(t, ""), workflow.Report{TargetID: 7, MatchID: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	settle(clk)
	conn.events <- gateway.AppMessage{Type: workflow.MsgWelcome}
	conn.events <- gateway.AppMessage{
		Type: workflow.MsgReportResponse,
		Body: encodeBody(t, map[string]any{"confirmation_id": 42}),
	}

	// The ban outcome sticks even though the workflow succeeded.
	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultAccountBanned {
		t.Fatalf("result = %v, want account-banned", result)
	}

	sent := conn.sentMessages()
	if len(sent) != 2 || sent[1].Type != workflow.MsgReport {
		t.Fatalf("banned account did not run its workflow: sent = %v", sent)
	}
}

func TestMatchQueryFirstListedWins(t *testing.T) {
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnOK, Identity: 9001}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk},
		testAccount(t, ""), workflow.MatchQuery{MatchID: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	settle(clk)
	conn.events <- gateway.AppMessage{Type: workflow.MsgWelcome}
	conn.events <- gateway.AppMessage{
		Type: workflow.MsgMatchList,
		Body: encodeBody(t, map[string]any{
			"matches": []map[string]any{{"match_id": 5}, {"match_id": 9}},
		}),
	}

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultSuccess {
		t.Fatalf("result = %v, want success", result)
	}
	match := manager.MatchInfo()
	if match == nil || match.MatchID != 5 {
		t.Fatalf("match = %+v, want first-listed id 5", match)
	}
}

func TestMatchQueryEmptyList(t *testing.T) {
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnOK, Identity: 9001}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk},
		testAccount(t, ""), workflow.MatchQuery{MatchID: 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	settle(clk)
	conn.events <- gateway.AppMessage{Type: workflow.MsgWelcome}
	conn.events <- gateway.AppMessage{
		Type: workflow.MsgMatchList,
		Body: encodeBody(t, map[string]any{"matches": []map[string]any{}}),
	}

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultNoMatches {
		t.Fatalf("result = %v, want no-matches", result)
	}
	match := manager.MatchInfo()
	if match == nil || match.MatchID != workflow.SentinelMatchID {
		t.Fatalf("match = %+v, want sentinel id %d", match, workflow.SentinelMatchID)
	}
}

func TestLoginFailureMappings(t *testing.T) {
	tests := []struct {
		name string
		code gateway.LogOnCode
		want Result
	}{
		{"rate limited", gateway.LogOnRateLimited, ResultRateLimit},
		{"service unavailable", gateway.LogOnServiceUnavailable, ResultGenericFailure},
		{"code mismatch", gateway.LogOnCodeMismatch, ResultCode2FAWrong},
		{"logged in elsewhere", gateway.LogOnLoggedInElsewhere, ResultAlreadyLoggedInElsewhere},
		{"other failure", gateway.LogOnFailed, ResultGenericFailure},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conn := newFakeConn()
			conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
				conn.events <- gateway.LogOnResult{Code: test.code}
			}
			clk := clock.Fake(time.Unix(1700000000, 0))

			manager, err := New(Config{Conn: conn, Clock: clk},
				testAccount(t, ""), workflow.Commend{TargetID: 7})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			results := startSession(t, manager)

			result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
			if result != test.want {
				t.Fatalf("result = %v, want %v", result, test.want)
			}
		})
	}
}

func TestDisplacedSessionEndsElsewhere(t *testing.T) {
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnOK, Identity: 9001}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk},
		testAccount(t, ""), workflow.Commend{TargetID: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	settle(clk)
	conn.events <- gateway.LoggedOff{Code: gateway.LogOnLoggedInElsewhere}

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultAlreadyLoggedInElsewhere {
		t.Fatalf("result = %v, want logged-in-elsewhere", result)
	}
}

func TestStopBeforeOutcomeReturnsUnknown(t *testing.T) {
	conn := newFakeConn()
	// Logins go unanswered; the session idles in logging-on.
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk},
		testAccount(t, ""), workflow.Commend{TargetID: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	manager.Stop()

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultUnknown {
		t.Fatalf("result = %v, want unknown", result)
	}
}

func TestStopReleasesCodeWait(t *testing.T) {
	provider := guard.NewOneShot()
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnNeedTwoFactor}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk, Codes: provider},
		testAccount(t, ""), workflow.Commend{TargetID: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	// Never supply a code; Stop must unblock the wait.
	manager.Stop()

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultUnknown {
		t.Fatalf("result = %v, want unknown", result)
	}
}

func TestSentryChunkPersistedAndConfirmed(t *testing.T) {
	store, err := sentry.Open(sentry.StoreConfig{
		Path: filepath.Join(t.TempDir(), "sentries.db"),
	})
	if err != nil {
		t.Fatalf("sentry.Open: %v", err)
	}
	defer store.Close()

	content := []byte("device authorization record")
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		if attempt == 1 {
			if details.SentryHash != nil {
				t.Errorf("first login carried a sentry hash")
			}
			conn.events <- gateway.SentryChunk{
				JobID:     17,
				Name:      "sentry.bin",
				Offset:    0,
				Data:      content,
				Length:    len(content),
				TotalSize: int64(len(content)),
			}
			conn.events <- gateway.Disconnected{}
			return
		}
		want := blake3.Sum256(content)
		if !bytes.Equal(details.SentryHash, want[:]) {
			t.Errorf("second login hash = %x, want %x", details.SentryHash, want[:])
		}
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnRateLimited}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk, Sentries: store},
		testAccount(t, ""), workflow.Commend{TargetID: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := startSession(t, manager)

	// Backoff before the reconnect that carries the hash.
	clk.WaitForTimers(1)
	clk.Advance(5 * time.Second)

	result := testutil.RequireReceive(t, results, 5*time.Second, "session result")
	if result != ResultRateLimit {
		t.Fatalf("result = %v, want rate-limited", result)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.confirmed) != 1 {
		t.Fatalf("sentry confirmations = %d, want 1", len(conn.confirmed))
	}
	confirm := conn.confirmed[0]
	want := blake3.Sum256(content)
	if confirm.JobID != 17 || !bytes.Equal(confirm.Hash, want[:]) {
		t.Fatalf("confirmation = %+v", confirm)
	}
}

func TestStartTwiceFails(t *testing.T) {
	conn := newFakeConn()
	conn.onLogOn = func(attempt int, details gateway.LogOnDetails) {
		conn.events <- gateway.LogOnResult{Code: gateway.LogOnRateLimited}
	}
	clk := clock.Fake(time.Unix(1700000000, 0))

	manager, err := New(Config{Conn: conn, Clock: clk},
		testAccount(t, ""), workflow.Commend{TargetID: 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := manager.Start(context.Background())
	if first != ResultRateLimit {
		t.Fatalf("first run result = %v, want rate-limited", first)
	}
	second := manager.Start(context.Background())
	if second != ResultGenericFailure {
		t.Fatalf("second Start = %v, want generic failure", second)
	}
}
