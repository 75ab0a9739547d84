package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/connectin-session/authapi"
	apperrors "github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/jrsteele09/connectin-session/token"
	"github.com/jrsteele09/connectin-session/tokenstore"
	"github.com/jrsteele09/connectin-session/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultRefreshLead    = 60 * time.Second
	defaultRefreshTimeout = 15 * time.Second
	minRefreshDelay       = time.Second
)

// Stopper cancels a scheduled call. *time.Timer satisfies it.
type Stopper interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d. f must run on its own
// goroutine, never synchronously inside the AfterFunc call.
type AfterFunc func(d time.Duration, f func()) Stopper

func realAfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Manager owns the token pair for one application instance. It attaches
// credentials to outgoing requests, refreshes the access token before it
// expires, and serializes concurrent refresh attempts into one exchange.
type Manager struct {
	api            authapi.API
	store          tokenstore.Store
	oauth          authapi.OAuthExchanger
	logger         zerolog.Logger
	nowFunc        func() time.Time
	afterFunc      AfterFunc
	refreshLead    time.Duration
	refreshTimeout time.Duration

	// credential is read on every outgoing request without taking mu
	credential atomic.Pointer[string]

	mu          sync.Mutex
	session     Session
	generation  uint64 // bumped whenever the session is replaced or cleared
	initialized bool
	refresh     refreshState
	timer       Stopper
	timerID     uint64
	closed      bool
	background  sync.WaitGroup

	subsLock    sync.Mutex
	subscribers []subscription
	nextSubID   int
}

type subscription struct {
	id int
	fn func(Event)
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithAfterFunc replaces time.AfterFunc for proactive refresh scheduling
func WithAfterFunc(afterFunc AfterFunc) Option {
	return func(m *Manager) {
		m.afterFunc = afterFunc
	}
}

// WithRefreshLead sets how long before expiry the proactive refresh fires
func WithRefreshLead(lead time.Duration) Option {
	return func(m *Manager) {
		m.refreshLead = lead
	}
}

// WithRefreshTimeout bounds a single refresh exchange
func WithRefreshTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.refreshTimeout = timeout
	}
}

func WithOAuth(exchanger authapi.OAuthExchanger) Option {
	return func(m *Manager) {
		m.oauth = exchanger
	}
}

func New(api authapi.API, store tokenstore.Store, options ...Option) (*Manager, error) {
	if api == nil {
		return nil, errors.New("[session.New] api is required")
	}
	if store == nil {
		return nil, errors.New("[session.New] store is required")
	}

	m := &Manager{
		api:            api,
		store:          store,
		logger:         log.Logger,
		nowFunc:        time.Now,
		afterFunc:      realAfterFunc,
		refreshLead:    defaultRefreshLead,
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range options {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "session").Logger()
	return m, nil
}

// Initialize restores a persisted session. Only the first call does any work.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	m.initialized = true
	m.mu.Unlock()

	pair, err := m.store.Load(ctx)
	if err != nil {
		m.mu.Lock()
		m.initialized = false
		m.mu.Unlock()
		return errors.Wrap(err, "[Manager.Initialize] store.Load")
	}
	if pair.AccessToken == "" {
		return nil
	}

	claims, err := token.Decode(pair.AccessToken)
	if err != nil {
		m.logger.Warn().Err(err).Msg("persisted access token is unusable")
		m.restoreUnusable(ctx, pair)
		return nil
	}

	m.mu.Lock()
	m.generation++
	m.session = Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    claims.ExpiresAt,
	}
	m.installLocked(pair.AccessToken)
	m.scheduleLocked(claims.ExpiresAt)
	generation := m.generation
	m.goBackgroundLocked(func() { m.loadUser(generation) })
	m.mu.Unlock()

	m.logger.Info().Time("expires_at", claims.ExpiresAt).Msg("session restored")
	return nil
}

// restoreUnusable handles a persisted pair whose access token cannot be decoded.
// The bad token is never installed; a refresh token gets one chance to recover.
func (m *Manager) restoreUnusable(ctx context.Context, pair tokenstore.Pair) {
	if pair.RefreshToken == "" {
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("failed clearing unusable tokens")
		}
		return
	}

	m.mu.Lock()
	m.generation++
	m.session = Session{RefreshToken: pair.RefreshToken}
	generation := m.generation
	m.goBackgroundLocked(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
		defer cancel()
		if _, err := m.Refresh(ctx); err != nil {
			m.logger.Info().Err(err).Msg("could not recover persisted session")
			return
		}
		m.loadUser(generation)
	})
	m.mu.Unlock()
}

// Login exchanges credentials for a session. On failure the current state is
// left untouched and the error matches ErrInvalidCredentials or ErrNetwork.
func (m *Manager) Login(ctx context.Context, identifier, secret string) error {
	result, err := m.api.Login(ctx, identifier, secret)
	if err != nil {
		m.logger.Info().Err(err).Str("identifier", identifier).Msg("login failed")
		return errors.Wrap(err, "[Manager.Login]")
	}
	if err := m.establish(ctx, result); err != nil {
		return errors.Wrap(err, "[Manager.Login]")
	}
	return nil
}

// Register creates an account and then logs in with the same credentials
func (m *Manager) Register(ctx context.Context, registration authapi.Registration) error {
	if err := m.api.Register(ctx, registration); err != nil {
		return errors.Wrap(err, "[Manager.Register]")
	}
	return m.Login(ctx, registration.Username, registration.Password)
}

// LoginWithOAuth completes an OAuth callback by exchanging the authorization code
func (m *Manager) LoginWithOAuth(ctx context.Context, code, verifier string) error {
	if m.oauth == nil {
		return ErrOAuthNotConfigured
	}
	result, err := m.oauth.Exchange(ctx, code, verifier)
	if err != nil {
		return errors.Wrap(err, "[Manager.LoginWithOAuth]")
	}
	if err := m.establish(ctx, result); err != nil {
		return errors.Wrap(err, "[Manager.LoginWithOAuth]")
	}
	return nil
}

// OAuthURL returns the provider URL for state and the PKCE verifier to keep for the callback
func (m *Manager) OAuthURL(state string) (string, string, error) {
	if m.oauth == nil {
		return "", "", ErrOAuthNotConfigured
	}
	authURL, verifier := m.oauth.AuthCodeURL(state)
	return authURL, verifier, nil
}

// establish installs a freshly issued pair as the new session
func (m *Manager) establish(ctx context.Context, result *authapi.LoginResult) error {
	claims, err := token.Decode(result.Tokens.AccessToken)
	if err != nil {
		return err
	}

	user := result.User
	if user == nil {
		user, err = m.api.CurrentUser(ctx, result.Tokens.AccessToken)
		if err != nil {
			m.logger.Warn().Err(err).Msg("could not fetch current user")
			user = nil
		}
	}

	m.mu.Lock()
	m.generation++
	m.session = Session{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		User:         user,
		ExpiresAt:    claims.ExpiresAt,
	}
	m.persistLocked(ctx)
	m.installLocked(result.Tokens.AccessToken)
	m.scheduleLocked(claims.ExpiresAt)
	snapshot := m.session.clone()
	m.mu.Unlock()

	m.logger.Info().Str("user", user.Name()).Time("expires_at", claims.ExpiresAt).Msg("logged in")
	m.publish(Event{Kind: EventLoggedIn, Session: snapshot})
	return nil
}

// Logout ends the session locally and tells the API on a best-effort basis.
// It always succeeds.
func (m *Manager) Logout(ctx context.Context) {
	m.end(ctx, EventLoggedOut, true)
}

// end clears the session and publishes kind if there was anything to clear
func (m *Manager) end(ctx context.Context, kind EventKind, notifyRemote bool) {
	m.mu.Lock()
	previous := m.session
	m.clearLocked(ctx)
	m.mu.Unlock()

	if previous.AccessToken == "" && previous.RefreshToken == "" {
		return
	}

	if notifyRemote {
		if err := m.api.Logout(ctx, previous.AccessToken, previous.RefreshToken); err != nil {
			m.logger.Debug().Err(err).Msg("remote logout failed, ignoring")
		}
	}

	event := Event{Kind: kind}
	if kind == EventSessionExpired {
		event.Notice = SessionExpiredNotice
	}
	m.logger.Info().Stringer("reason", kind).Msg("session ended")
	m.publish(event)
}

// Close cancels the proactive refresh timer and waits for background work
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.cancelTimerLocked()
	m.mu.Unlock()
	m.background.Wait()
}

// Session returns a copy of the current session
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.clone()
}

func (m *Manager) IsAuthenticated() bool {
	return m.currentCredential() != ""
}

// User returns the current user summary, or nil
func (m *Manager) User() *users.Summary {
	return m.Session().User
}

// Subscribe registers fn for session events. Subscribers run in registration
// order on the goroutine that caused the transition.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subsLock.Lock()
	defer m.subsLock.Unlock()
	m.nextSubID++
	id := m.nextSubID
	m.subscribers = append(m.subscribers, subscription{id: id, fn: fn})

	return func() {
		m.subsLock.Lock()
		defer m.subsLock.Unlock()
		for i, sub := range m.subscribers {
			if sub.id == id {
				m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) publish(event Event) {
	m.subsLock.Lock()
	subs := append([]subscription(nil), m.subscribers...)
	m.subsLock.Unlock()

	for _, sub := range subs {
		sub.fn(event)
	}
}

// loadUser fetches the profile for the session identified by generation,
// refreshing once if the API no longer accepts the installed token.
func (m *Manager) loadUser(generation uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
	defer cancel()

	accessToken := m.currentCredential()
	user, err := m.api.CurrentUser(ctx, accessToken)
	if apperrors.Is(err, apperrors.ErrNotAuthenticated) {
		if accessToken, err = m.Refresh(ctx); err == nil {
			user, err = m.api.CurrentUser(ctx, accessToken)
		}
	}
	if err != nil {
		m.logger.Warn().Err(err).Msg("could not load current user")
		return
	}

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		return
	}
	m.session.User = user
	snapshot := m.session.clone()
	m.mu.Unlock()

	m.publish(Event{Kind: EventUserLoaded, Session: snapshot})
}

// goBackgroundLocked runs fn on a goroutine tracked by Close. Once the
// manager is closed it starts nothing and reports false.
func (m *Manager) goBackgroundLocked(fn func()) bool {
	if m.closed {
		return false
	}
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		fn()
	}()
	return true
}

func (m *Manager) currentCredential() string {
	if p := m.credential.Load(); p != nil {
		return *p
	}
	return ""
}

func (m *Manager) installLocked(accessToken string) {
	if accessToken == "" {
		m.credential.Store(nil)
		return
	}
	m.credential.Store(&accessToken)
}

// persistLocked writes the in-memory pair. Store calls happen under mu so a
// late refresh can never resurrect tokens a logout already cleared.
func (m *Manager) persistLocked(ctx context.Context) {
	err := m.store.Save(ctx, tokenstore.Pair{
		AccessToken:  m.session.AccessToken,
		RefreshToken: m.session.RefreshToken,
	})
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed persisting tokens")
	}
}

func (m *Manager) clearLocked(ctx context.Context) {
	m.cancelTimerLocked()
	m.generation++
	m.session = Session{}
	m.installLocked("")
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed clearing persisted tokens")
	}
}
