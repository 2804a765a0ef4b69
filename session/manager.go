// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warden-foundation/warden/banlookup"
	"github.com/warden-foundation/warden/gateway"
	"github.com/warden-foundation/warden/guard"
	"github.com/warden-foundation/warden/lib/clock"
	"github.com/warden-foundation/warden/sentry"
	"github.com/warden-foundation/warden/workflow"
)

// Phase is where a session currently is in its lifecycle. Owned by
// the run loop; exposed only through logs.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseLoggingOn
	PhaseAwaitingChallenge
	PhaseAuthenticated
	PhaseAwaitingHello
	PhaseActive
	PhaseTerminated
)

var phaseNames = map[Phase]string{
	PhaseIdle:              "idle",
	PhaseConnecting:        "connecting",
	PhaseLoggingOn:         "logging-on",
	PhaseAwaitingChallenge: "awaiting-challenge",
	PhaseAuthenticated:     "authenticated",
	PhaseAwaitingHello:     "awaiting-hello",
	PhaseActive:            "active",
	PhaseTerminated:        "terminated",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Config holds the collaborators and tunables for one session.
type Config struct {
	// Conn is the connection to drive. Required. The session is its
	// sole user.
	Conn gateway.Conn
	// Sentries persists device-authorization records. Optional; with
	// no store the session never presents a sentry hash and drops
	// inbound chunks.
	Sentries *sentry.Store
	// Bans is consulted once after a successful login. Optional.
	Bans banlookup.Lookup
	// Codes answers second-factor challenges that the account's
	// shared secret cannot. Optional; without it such challenges end
	// the session.
	Codes guard.CodeProvider
	// Clock defaults to the real clock.
	Clock clock.Clock
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// AppID is the application announced after login. Defaults to 730.
	AppID uint32
	// SettleDelay is the pause between the application announcement
	// and the hello payload. Defaults to 5 seconds.
	SettleDelay time.Duration
	// BackoffDelay is the fixed wait before each reconnect attempt.
	// Defaults to 5 seconds.
	BackoffDelay time.Duration
	// MaxAttempts caps reconnect attempts per run. Defaults to 5.
	MaxAttempts int
}

// DefaultAppID is the application a session announces when none is
// configured.
const DefaultAppID uint32 = 730

// Manager runs one account's session. Create with New, run once with
// Start; a Manager is not reusable.
type Manager struct {
	conn     gateway.Conn
	sentries *sentry.Store
	bans     banlookup.Lookup
	codes    guard.CodeProvider
	clk      clock.Clock
	logger   *slog.Logger
	appID    uint32
	settle   time.Duration
	policy   retryPolicy

	account    Account
	request    workflow.Request
	dispatcher *workflow.Dispatcher

	result resultSink

	mu             sync.Mutex
	cancel         context.CancelFunc
	started        bool
	stopped        bool
	running        bool
	match          *workflow.MatchInfo
	confirmationID uint64

	// Everything below is owned by the run loop.
	phase         Phase
	reconnects    int
	identity      uint64
	online        bool
	loggedOn      bool
	authCode      string
	twoFactorCode string
}

// New creates a session for one account and one workflow request.
func New(config Config, account Account, request workflow.Request) (*Manager, error) {
	if config.Conn == nil {
		return nil, fmt.Errorf("session: Conn is required")
	}
	if request == nil {
		return nil, fmt.Errorf("session: a workflow request is required")
	}
	if err := account.validate(); err != nil {
		return nil, err
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()[:8]
	logger = logger.With("session", runID, "username", account.Username)

	appID := config.AppID
	if appID == 0 {
		appID = DefaultAppID
	}
	policy := defaultRetryPolicy()
	if config.MaxAttempts > 0 {
		policy.maxAttempts = config.MaxAttempts
	}
	if config.BackoffDelay > 0 {
		policy.backoff = config.BackoffDelay
	}
	settle := config.SettleDelay
	if settle == 0 {
		settle = 5 * time.Second
	}

	return &Manager{
		conn:       config.Conn,
		sentries:   config.Sentries,
		bans:       config.Bans,
		codes:      config.Codes,
		clk:        clk,
		logger:     logger,
		appID:      appID,
		settle:     settle,
		policy:     policy,
		account:    account,
		request:    request,
		dispatcher: workflow.NewDispatcher(request, logger),
	}, nil
}

// Start runs the session to completion and returns its terminal
// Result. It blocks until the workflow finishes, a terminal failure
// is reached, Stop is called, or ctx is cancelled (which behaves like
// Stop). Start may be called at most once.
func (m *Manager) Start(ctx context.Context) Result {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		m.logger.Error("session started twice")
		return ResultGenericFailure
	}
	m.started = true
	if m.stopped {
		// Stop won the race; never even dial.
		m.mu.Unlock()
		return m.result.Load()
	}
	m.running = true
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("session starting", "workflow", m.request.Name())
	m.setPhase(PhaseConnecting)

	if err := m.conn.Connect(runCtx); err != nil {
		m.logger.Warn("initial connection failed", "error", err)
		if !m.reconnect(runCtx) {
			m.finish(ResultGenericFailure)
		}
	}

	for m.phase != PhaseTerminated {
		select {
		case <-runCtx.Done():
			m.logger.Info("session cancelled")
			m.teardown()
		case event := <-m.conn.Events():
			m.handleEvent(runCtx, event)
		}
	}

	result := m.result.Load()
	m.logger.Info("session finished", "result", result)
	return result
}

// Stop requests termination from any goroutine. Idempotent; safe to
// call before, during, or after Start. A result already recorded is
// never displaced — a session stopped before any outcome returns
// ResultUnknown.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.stopped = true
	m.running = false
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// MatchInfo returns the match data a completed match query produced,
// nil otherwise.
func (m *Manager) MatchInfo() *workflow.MatchInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.match
}

// ConfirmationID returns the confirmation id of a completed report,
// zero otherwise.
func (m *Manager) ConfirmationID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confirmationID
}

// Result returns the terminal result recorded so far, ResultUnknown
// while the session is still running toward one.
func (m *Manager) Result() Result {
	return m.result.Load()
}

func (m *Manager) setPhase(next Phase) {
	if m.phase == next {
		return
	}
	m.logger.Debug("phase transition", "from", m.phase, "to", next)
	m.phase = next
}

func (m *Manager) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// finish records the terminal result (write-once) and tears the
// session down.
func (m *Manager) finish(result Result) {
	m.result.Set(result)
	m.teardown()
}

// teardown unwinds whatever is still up, in reverse order of
// establishment, then marks the session terminated. Errors here are
// logged and otherwise ignored; the connection is going away
// regardless.
func (m *Manager) teardown() {
	if m.online {
		if err := m.conn.SetPresence(false); err != nil {
			m.logger.Debug("clearing presence failed", "error", err)
		}
		m.online = false
	}
	if m.loggedOn {
		if err := m.conn.LogOff(); err != nil {
			m.logger.Debug("logoff failed", "error", err)
		}
		m.loggedOn = false
	}
	m.conn.Disconnect()

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.setPhase(PhaseTerminated)
}

func (m *Manager) handleEvent(ctx context.Context, event gateway.Event) {
	switch ev := event.(type) {
	case gateway.Connected:
		m.handleConnected()
	case gateway.Disconnected:
		m.handleDisconnected(ctx, ev)
	case gateway.LogOnResult:
		m.handleLogOnResult(ctx, ev)
	case gateway.LoggedOff:
		m.handleLoggedOff(ev)
	case gateway.SentryChunk:
		m.handleSentryChunk(ev)
	case gateway.AppMessage:
		m.handleAppMessage(ev)
	default:
		m.logger.Debug("unhandled event", "event", fmt.Sprintf("%T", event))
	}
}

func (m *Manager) handleConnected() {
	m.setPhase(PhaseLoggingOn)
	m.logOn()
}

// logOn submits a login attempt with whatever challenge answers have
// been collected so far. A fresh login id is drawn per attempt so the
// service treats retries as distinct instances.
func (m *Manager) logOn() {
	details := gateway.LogOnDetails{
		Username:      m.account.Username,
		Password:      m.account.Password,
		AuthCode:      m.authCode,
		TwoFactorCode: m.twoFactorCode,
		LoginID:       rand.Uint32(),
	}
	if m.sentries != nil {
		hash, err := m.sentries.Hash(m.account.Username)
		if err != nil {
			m.logger.Warn("sentry lookup failed", "error", err)
		} else if hash != nil {
			details.SentryHash = hash
		}
	}
	if err := m.conn.LogOn(details); err != nil {
		// The transport will report the underlying failure as a
		// Disconnected event; nothing more to do here.
		m.logger.Warn("submitting login failed", "error", err)
	}
}

func (m *Manager) handleLogOnResult(ctx context.Context, result gateway.LogOnResult) {
	m.logger.Debug("login result", "code", result.Code)

	switch result.Code {
	case gateway.LogOnOK:
		m.identity = result.Identity
		m.loggedOn = true
		m.authCode = ""
		m.twoFactorCode = ""
		m.setPhase(PhaseAuthenticated)
		m.logger.Info("authenticated", "identity", m.identity)

		m.checkBans(ctx)

		if err := m.conn.SetPresence(true); err != nil {
			m.logger.Warn("setting presence failed", "error", err)
		} else {
			m.online = true
		}
		if err := m.conn.AnnounceApp(m.appID); err != nil {
			m.logger.Warn("announcing application failed", "error", err)
		}
		// Give the service a moment to register the announcement
		// before starting application traffic.
		if err := m.wait(ctx, m.settle); err != nil {
			m.teardown()
			return
		}
		hello, err := workflow.BuildHello()
		if err != nil {
			m.logger.Error("building hello failed", "error", err)
			m.finish(ResultGenericFailure)
			return
		}
		if err := m.conn.SendAppMessage(hello); err != nil {
			m.logger.Warn("sending hello failed", "error", err)
		}
		m.setPhase(PhaseAwaitingHello)

	case gateway.LogOnNeedTwoFactor:
		m.answerChallenge(ctx, guard.Challenge{
			Kind:     guard.ChallengeTwoFactor,
			Username: m.account.Username,
		})

	case gateway.LogOnNeedEmailCode:
		m.answerChallenge(ctx, guard.Challenge{
			Kind:        guard.ChallengeEmail,
			Username:    m.account.Username,
			EmailDomain: result.EmailDomain,
		})

	case gateway.LogOnRateLimited:
		m.logger.Warn("login rate limited")
		m.finish(ResultRateLimit)

	case gateway.LogOnServiceUnavailable:
		m.logger.Warn("service unavailable")
		m.finish(ResultGenericFailure)

	case gateway.LogOnCodeMismatch:
		m.logger.Warn("second-factor code rejected")
		m.finish(ResultCode2FAWrong)

	case gateway.LogOnLoggedInElsewhere:
		m.finish(ResultAlreadyLoggedInElsewhere)

	default:
		m.logger.Warn("login failed", "code", result.Code)
		m.finish(ResultGenericFailure)
	}
}

// answerChallenge obtains a second-factor code and retries the login.
// With a shared secret on file the two-factor code is generated
// locally; otherwise the configured provider is asked, blocking until
// it answers or the run is cancelled.
func (m *Manager) answerChallenge(ctx context.Context, challenge guard.Challenge) {
	if challenge.Kind == guard.ChallengeTwoFactor &&
		m.account.SharedSecret != nil && m.account.SharedSecret.Len() > 0 {
		code, err := guard.GenerateCode(m.account.SharedSecret, m.clk.Now())
		if err != nil {
			m.logger.Error("generating two-factor code failed", "error", err)
			m.finish(ResultGenericFailure)
			return
		}
		m.twoFactorCode = code
		m.setPhase(PhaseLoggingOn)
		m.logOn()
		return
	}

	if m.codes == nil {
		m.logger.Error("second-factor challenge with no code source", "kind", challenge.Kind)
		m.finish(ResultGenericFailure)
		return
	}

	m.setPhase(PhaseAwaitingChallenge)
	m.logger.Info("waiting for second-factor code",
		"kind", challenge.Kind,
		"email_domain", challenge.EmailDomain)

	code, err := m.codes.RequestCode(ctx, challenge)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			// Stopped while waiting; no outcome to record.
			m.teardown()
			return
		}
		m.logger.Error("obtaining second-factor code failed", "error", err)
		m.finish(ResultGenericFailure)
		return
	}

	switch challenge.Kind {
	case guard.ChallengeEmail:
		m.authCode = code
	default:
		m.twoFactorCode = code
	}
	m.setPhase(PhaseLoggingOn)
	m.logOn()
}

// checkBans looks up the account's standing. Advisory: lookup
// failures are logged, and a positive ban records AccountBanned but
// does not stop the workflow.
func (m *Manager) checkBans(ctx context.Context) {
	if m.bans == nil {
		return
	}
	lookupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	info, err := m.bans.Bans(lookupCtx, m.identity)
	if err != nil {
		m.logger.Warn("ban lookup failed", "error", err)
		return
	}
	if info.Banned() {
		m.logger.Warn("account has bans, proceeding with caution",
			"vac_banned", info.VACBanned,
			"game_bans", info.GameBanCount)
		m.result.Set(ResultAccountBanned)
	}
}

func (m *Manager) handleLoggedOff(ev gateway.LoggedOff) {
	m.logger.Warn("logged off by service", "code", ev.Code)
	m.loggedOn = false
	if ev.Code == gateway.LogOnLoggedInElsewhere {
		m.finish(ResultAlreadyLoggedInElsewhere)
		return
	}
	// Any other server-side logoff ends the run; the result, if one
	// was recorded already, stands.
	m.finish(ResultGenericFailure)
}

func (m *Manager) handleSentryChunk(chunk gateway.SentryChunk) {
	if m.sentries == nil {
		m.logger.Debug("sentry chunk dropped, no store configured")
		return
	}
	saved, err := m.sentries.Save(
		m.account.Username, chunk.Name,
		chunk.Offset, chunk.Data, chunk.Length, chunk.TotalSize)
	if err != nil {
		// Not fatal: the service reissues the challenge on the next
		// login attempt.
		m.logger.Warn("persisting sentry chunk failed", "error", err)
		return
	}
	if !saved.Complete {
		return
	}
	confirm := gateway.SentryConfirm{
		JobID:           chunk.JobID,
		Name:            chunk.Name,
		Offset:          chunk.Offset,
		Length:          chunk.Length,
		TotalSize:       chunk.TotalSize,
		Hash:            saved.Hash,
		OneTimePassword: chunk.OneTimePassword,
	}
	if err := m.conn.ConfirmSentry(confirm); err != nil {
		m.logger.Warn("confirming sentry failed", "error", err)
	}
}

func (m *Manager) handleAppMessage(message gateway.AppMessage) {
	action, err := m.dispatcher.Dispatch(message)
	if err != nil {
		m.logger.Warn("dispatching application message failed",
			"type", message.Type, "error", err)
		return
	}

	switch action.Kind {
	case workflow.ActionIgnored:

	case workflow.ActionReady:
		if m.phase != PhaseAwaitingHello {
			m.logger.Debug("welcome outside awaiting-hello phase", "phase", m.phase)
			return
		}
		payload, err := workflow.BuildPayload(m.request)
		if err != nil {
			m.logger.Error("building workflow payload failed", "error", err)
			m.finish(ResultGenericFailure)
			return
		}
		if err := m.conn.SendAppMessage(payload); err != nil {
			m.logger.Warn("sending workflow payload failed", "error", err)
			return
		}
		m.setPhase(PhaseActive)

	case workflow.ActionCompleted:
		m.mu.Lock()
		m.match = action.Match
		m.confirmationID = action.ConfirmationID
		m.mu.Unlock()

		switch action.Outcome {
		case workflow.OutcomeNoMatches:
			m.finish(ResultNoMatches)
		default:
			m.finish(ResultSuccess)
		}
	}
}

func (m *Manager) handleDisconnected(ctx context.Context, ev gateway.Disconnected) {
	m.loggedOn = false
	m.online = false

	if m.phase == PhaseTerminated {
		return
	}
	if ev.UserInitiated {
		// Our own teardown already decided the outcome.
		m.setPhase(PhaseTerminated)
		return
	}

	m.logger.Warn("connection lost", "reconnects", m.reconnects)
	if !m.reconnect(ctx) {
		m.finish(ResultGenericFailure)
	}
}

// reconnect waits out the backoff and re-dials, repeating on dial
// failure, until a connection is live or the policy refuses another
// attempt. Returns false when the session should give up.
func (m *Manager) reconnect(ctx context.Context) bool {
	for {
		attempt := m.reconnects + 1
		if !m.policy.allow(attempt, false, m.result.Load(), m.isRunning()) {
			m.logger.Warn("reconnect refused", "attempt", attempt)
			return false
		}
		m.reconnects = attempt
		m.setPhase(PhaseConnecting)
		m.logger.Info("reconnecting", "attempt", attempt, "backoff", m.policy.backoff)

		if err := m.wait(ctx, m.policy.backoff); err != nil {
			return false
		}
		if err := m.conn.Connect(ctx); err != nil {
			m.logger.Warn("reconnect failed", "attempt", attempt, "error", err)
			continue
		}
		return true
	}
}

// wait sleeps for d on the session clock, cut short by cancellation.
func (m *Manager) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-m.clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
