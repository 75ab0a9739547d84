// Package apifake is an in-process stand-in for the ConnectIn authentication
// API. It issues HS256 access tokens, rotates refresh tokens and exposes
// counters and hooks so tests can observe exactly what the client did.
package apifake

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/connectin-session/authapi"
	"github.com/jrsteele09/connectin-session/token"
	"github.com/jrsteele09/connectin-session/users"
	fakeuserrepo "github.com/jrsteele09/connectin-session/users/repofake"
)

// ProtectedPath is a sample resource that requires a valid access token
const ProtectedPath = "/api/posts/"

type Server struct {
	mux        *http.ServeMux
	endpoints  authapi.Endpoints
	signer     *token.HMACSigner
	accounts   users.AccountRepo
	refreshes  *refreshStore
	revoked    *revokedTokens
	accessTTL  time.Duration
	refreshTTL time.Duration

	clockLock sync.RWMutex
	baseNow   func() time.Time
	offset    time.Duration

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
	failRefresh  atomic.Bool
	failLogout   atomic.Bool

	holdLock    sync.Mutex
	refreshGate chan struct{}
	refreshSeen chan struct{}

	seenLock sync.Mutex
	seen     []string
}

type Option func(*Server)

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.refreshTTL = ttl
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.baseNow = now
	}
}

func WithEndpoints(endpoints authapi.Endpoints) Option {
	return func(s *Server) {
		s.endpoints = endpoints
	}
}

func New(secret string, options ...Option) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		endpoints:  authapi.DefaultEndpoints,
		signer:     token.NewHMACSigner(secret),
		accounts:   fakeuserrepo.NewFakeAccountRepo(),
		refreshes:  newRefreshStore(),
		revoked:    newRevokedTokens(),
		accessTTL:  5 * time.Minute,
		refreshTTL: 24 * time.Hour,
		baseNow:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.mux.HandleFunc("POST "+s.endpoints.Login, ChainMiddleware(s.handleLogin, s.RecordMiddleware))
	s.mux.HandleFunc("POST "+s.endpoints.Register, ChainMiddleware(s.handleRegister, s.RecordMiddleware))
	s.mux.HandleFunc("POST "+s.endpoints.Refresh, ChainMiddleware(s.handleRefresh, s.RecordMiddleware))
	s.mux.HandleFunc("GET "+s.endpoints.CurrentUser, ChainMiddleware(s.handleCurrentUser, s.RecordMiddleware, s.BearerMiddleware))
	s.mux.HandleFunc("POST "+s.endpoints.Logout, ChainMiddleware(s.handleLogout, s.RecordMiddleware))
	s.mux.HandleFunc(ProtectedPath, ChainMiddleware(s.handleProtected, s.RecordMiddleware, s.BearerMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// AddUser registers an account with a bcrypt hash of password
func (s *Server) AddUser(username, password, displayName string) (*users.Account, error) {
	return s.addAccount(&users.Account{
		Username:    username,
		Email:       username + "@connectin.test",
		DisplayName: displayName,
	}, password)
}

// addAccount completes account before storing it; the repo owns it afterwards
func (s *Server) addAccount(account *users.Account, password string) (*users.Account, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, err
	}
	account.PasswordHash = hash
	account.DateJoined = s.Now()
	if err := s.accounts.Upsert(account); err != nil {
		return nil, err
	}
	return account, nil
}

// Account returns the stored record for username
func (s *Server) Account(username string) (*users.Account, error) {
	return s.accounts.GetByUsername(username)
}

// Issue mints a token pair for username outside of any HTTP exchange
func (s *Server) Issue(username string) (authapi.Tokens, error) {
	account, err := s.accounts.GetByUsername(username)
	if err != nil {
		return authapi.Tokens{}, err
	}
	return s.issue(account)
}

// Now is the server clock, including any Advance offset
func (s *Server) Now() time.Time {
	s.clockLock.RLock()
	defer s.clockLock.RUnlock()
	return s.baseNow().Add(s.offset)
}

// Advance moves the server clock forward, expiring tokens server side
func (s *Server) Advance(d time.Duration) {
	s.clockLock.Lock()
	defer s.clockLock.Unlock()
	s.offset += d
}

func (s *Server) LoginCalls() int   { return int(s.loginCalls.Load()) }
func (s *Server) RefreshCalls() int { return int(s.refreshCalls.Load()) }
func (s *Server) LogoutCalls() int  { return int(s.logoutCalls.Load()) }

// FailRefresh makes every refresh exchange answer 401
func (s *Server) FailRefresh(fail bool) { s.failRefresh.Store(fail) }

// FailLogout makes the logout endpoint answer 500
func (s *Server) FailLogout(fail bool) { s.failLogout.Store(fail) }

// HoldRefresh blocks refresh exchanges until the returned release func is
// called. The returned channel receives once per refresh that reaches the hold.
func (s *Server) HoldRefresh() (<-chan struct{}, func()) {
	s.holdLock.Lock()
	defer s.holdLock.Unlock()
	gate := make(chan struct{})
	seen := make(chan struct{}, 16)
	s.refreshGate = gate
	s.refreshSeen = seen
	var once sync.Once
	return seen, func() { once.Do(func() { close(gate) }) }
}

// SeenTokens returns the bearer token (or "") of every request in arrival order
func (s *Server) SeenTokens() []string {
	s.seenLock.Lock()
	defer s.seenLock.Unlock()
	return append([]string(nil), s.seen...)
}

func (s *Server) record(r *http.Request) {
	raw := r.Header.Get("Authorization")
	if len(raw) > len("Bearer ") {
		raw = raw[len("Bearer "):]
	} else {
		raw = ""
	}
	s.seenLock.Lock()
	defer s.seenLock.Unlock()
	s.seen = append(s.seen, raw)
}

func (s *Server) issue(account *users.Account) (authapi.Tokens, error) {
	now := s.Now()
	access, err := s.signer.Sign(jwt.MapClaims{
		"sub":      account.ID,
		"username": account.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.accessTTL).Unix(),
		"jti":      uuid.New().String(),
	})
	if err != nil {
		return authapi.Tokens{}, err
	}
	refresh, err := s.refreshes.Create(account.ID, now)
	if err != nil {
		return authapi.Tokens{}, err
	}
	return authapi.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
