package session

import (
	"context"
	"time"

	apperrors "github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/jrsteele09/connectin-session/token"
)

type refreshPhase int

const (
	refreshIdle refreshPhase = iota
	refreshInFlight
)

// refreshState is idle, or in flight with the callers waiting on its outcome.
// The waiter list is drained and reset at exactly one point, in settle.
type refreshState struct {
	phase   refreshPhase
	waiters []chan refreshOutcome
}

// refreshOutcome is what every waiter of one exchange receives. An empty
// accessToken is the failure signal; err then matches ErrRefreshFailed.
type refreshOutcome struct {
	accessToken string
	err         error
}

// Refresh exchanges the refresh token for a new pair and returns the new
// access token. Concurrent callers share a single exchange and all observe
// the same outcome. A failed refresh ends the session. If ctx ends first the
// caller stops waiting, but the exchange still settles for everyone else.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	return m.refreshReplacing(ctx, "")
}

// refreshReplacing is Refresh, except that it returns the installed access
// token straight away when stale is set and has already been replaced.
func (m *Manager) refreshReplacing(ctx context.Context, stale string) (string, error) {
	waiter := make(chan refreshOutcome, 1)

	m.mu.Lock()
	if current := m.currentCredential(); stale != "" && current != "" && current != stale {
		m.mu.Unlock()
		return current, nil
	}
	m.refresh.waiters = append(m.refresh.waiters, waiter)
	var inline func()
	if m.refresh.phase == refreshIdle {
		m.refresh.phase = refreshInFlight
		refreshToken := m.session.RefreshToken
		generation := m.generation
		exchange := func() { m.runRefresh(refreshToken, generation) }
		if !m.goBackgroundLocked(exchange) {
			inline = exchange
		}
	}
	m.mu.Unlock()

	if inline != nil {
		// A closed manager runs the exchange on the caller's goroutine
		inline()
	}

	select {
	case outcome := <-waiter:
		return outcome.accessToken, outcome.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// runRefresh performs the one network exchange for the current in-flight refresh
func (m *Manager) runRefresh(refreshToken string, generation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	if refreshToken == "" {
		m.settle(ctx, generation, "", time.Time{}, "", apperrors.ErrNoRefreshToken)
		return
	}

	tokens, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		m.settle(ctx, generation, "", time.Time{}, "", err)
		return
	}

	claims, err := token.Decode(tokens.AccessToken)
	if err != nil {
		m.settle(ctx, generation, "", time.Time{}, "", err)
		return
	}
	m.settle(ctx, generation, tokens.AccessToken, claims.ExpiresAt, tokens.RefreshToken, nil)
}

// settle commits the exchange result, returns the state machine to idle and
// resolves every waiter with the same outcome.
func (m *Manager) settle(ctx context.Context, generation uint64, accessToken string, expiresAt time.Time, refreshToken string, cause error) {
	var (
		outcome    refreshOutcome
		event      *Event
		endSession bool
		hadSession bool
	)

	m.mu.Lock()
	switch {
	case m.generation != generation:
		// Logged out or replaced while the exchange was in flight; the result belongs to nobody
		outcome.err = apperrors.Join(apperrors.ErrRefreshFailed, apperrors.ErrSessionExpired)
	case cause != nil:
		hadSession = m.session.AccessToken != "" || m.session.RefreshToken != ""
		endSession = true
		m.clearLocked(ctx)
		outcome.err = apperrors.Join(apperrors.ErrRefreshFailed, cause)
	default:
		if refreshToken == "" {
			refreshToken = m.session.RefreshToken
		}
		m.session.AccessToken = accessToken
		m.session.RefreshToken = refreshToken
		m.session.ExpiresAt = expiresAt
		m.persistLocked(ctx)
		m.installLocked(accessToken)
		m.scheduleLocked(expiresAt)
		outcome.accessToken = accessToken
		event = &Event{Kind: EventRefreshed, Session: m.session.clone()}
	}

	waiters := m.refresh.waiters
	m.refresh = refreshState{}
	m.mu.Unlock()

	// Subscribers hear about the transition before any waiter resumes
	switch {
	case event != nil:
		m.logger.Debug().Time("expires_at", expiresAt).Int("waiters", len(waiters)).Msg("access token refreshed")
		m.publish(*event)
	case endSession:
		m.logger.Info().Err(cause).Int("waiters", len(waiters)).Msg("refresh failed, session ended")
		if hadSession {
			m.publish(Event{Kind: EventSessionExpired, Notice: SessionExpiredNotice})
		}
	}

	for _, waiter := range waiters {
		waiter <- outcome
	}
}

// scheduleLocked arms the proactive refresh refreshLead before expiresAt,
// replacing any previously armed timer. A token that lives no longer than
// refreshLead is refreshed at half its remaining lifetime, and never sooner
// than minRefreshDelay.
func (m *Manager) scheduleLocked(expiresAt time.Time) {
	m.cancelTimerLocked()
	if m.closed || expiresAt.IsZero() {
		return
	}

	remaining := expiresAt.Sub(m.nowFunc())
	delay := remaining - m.refreshLead
	if delay <= 0 {
		// Lifetime already inside the lead: refresh halfway through what is left
		delay = remaining / 2
	}
	if delay < minRefreshDelay {
		delay = minRefreshDelay
	}
	id := m.timerID
	m.timer = m.afterFunc(delay, func() { m.onTimer(id) })
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerID++
}

// onTimer ignores timers that were replaced after they had already started to
// fire. A firing that gets through counts as background work for Close.
func (m *Manager) onTimer(id uint64) {
	m.mu.Lock()
	current := id == m.timerID && m.timer != nil && !m.closed
	if current {
		m.background.Add(1)
	}
	m.mu.Unlock()
	if !current {
		return
	}
	defer m.background.Done()

	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()
	if _, err := m.Refresh(ctx); err != nil {
		m.logger.Info().Err(err).Msg("proactive refresh failed")
	}
}
