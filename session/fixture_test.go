package session_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/connectin-session/authapi"
	"github.com/jrsteele09/connectin-session/authapi/apifake"
	"github.com/jrsteele09/connectin-session/session"
	tokenstorefake "github.com/jrsteele09/connectin-session/tokenstore/repofake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	secretStr        = "1234"
	testUsername     = "ada"
	testUserPassword = "Analytical1"
	testDisplayName  = "Ada Lovelace"
)

type testFixture struct {
	api     *apifake.Server
	http    *httptest.Server
	store   *tokenstorefake.FakeStore
	timers  *fakeTimers
	manager *session.Manager
	events  *eventLog
}

type fixtureOption func(*fixtureSettings)

type fixtureSettings struct {
	store      *tokenstorefake.FakeStore
	options    []session.Option
	apiOptions []apifake.Option
}

func withStore(store *tokenstorefake.FakeStore) fixtureOption {
	return func(s *fixtureSettings) {
		s.store = store
	}
}

func withManagerOptions(options ...session.Option) fixtureOption {
	return func(s *fixtureSettings) {
		s.options = append(s.options, options...)
	}
}

func withAPIOptions(options ...apifake.Option) fixtureOption {
	return func(s *fixtureSettings) {
		s.apiOptions = append(s.apiOptions, options...)
	}
}

func newTestFixture(t *testing.T, options ...fixtureOption) *testFixture {
	t.Helper()

	settings := &fixtureSettings{store: tokenstorefake.NewFakeStore()}
	for _, opt := range options {
		opt(settings)
	}

	api := apifake.New(secretStr, settings.apiOptions...)
	_, err := api.AddUser(testUsername, testUserPassword, testDisplayName)
	require.NoError(t, err)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	f := &testFixture{
		api:    api,
		http:   srv,
		store:  settings.store,
		timers: &fakeTimers{},
		events: &eventLog{},
	}

	managerOptions := append([]session.Option{
		session.WithLogger(zerolog.Nop()),
		session.WithAfterFunc(f.timers.AfterFunc),
		session.WithRefreshTimeout(5 * time.Second),
	}, settings.options...)

	f.manager, err = session.New(authapi.NewClient(srv.URL), f.store, managerOptions...)
	require.NoError(t, err)
	f.manager.Subscribe(f.events.record)
	t.Cleanup(f.manager.Close)
	return f
}

func (f *testFixture) login(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.manager.Login(context.Background(), testUsername, testUserPassword))
	accessToken := f.manager.Session().AccessToken
	require.NotEmpty(t, accessToken)
	return accessToken
}

// call sends a request through the manager the way the transport does
func (f *testFixture) call(t *testing.T, method, path, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, f.http.URL+path, reader)
	require.NoError(t, err)

	do := f.http.Client().Transport.RoundTrip
	sent := f.manager.AttachCredential(req)
	resp, err := do(sent)
	require.NoError(t, err)
	if resp.StatusCode == http.StatusUnauthorized {
		resp, err = f.manager.HandleUnauthorized(req.Context(), sent, resp, do)
		require.NoError(t, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// fakeTimers records every scheduled refresh instead of arming a real timer
type fakeTimers struct {
	lock   sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped atomic.Bool
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) session.Stopper {
	ft.lock.Lock()
	defer ft.lock.Unlock()
	timer := &fakeTimer{delay: d, f: f}
	ft.timers = append(ft.timers, timer)
	return timer
}

func (ft *fakeTimers) All() []*fakeTimer {
	ft.lock.Lock()
	defer ft.lock.Unlock()
	return append([]*fakeTimer(nil), ft.timers...)
}

func (ft *fakeTimers) Active() []*fakeTimer {
	var active []*fakeTimer
	for _, timer := range ft.All() {
		if !timer.stopped.Load() {
			active = append(active, timer)
		}
	}
	return active
}

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true)
}

// Fire runs the callback as an expiring timer would
func (t *fakeTimer) Fire() {
	if !t.stopped.Load() {
		t.f()
	}
}

// FireLate runs the callback even when stopped, as a timer whose Stop lost the race would
func (t *fakeTimer) FireLate() {
	t.f()
}

type eventLog struct {
	lock   sync.Mutex
	events []session.Event
}

func (l *eventLog) record(event session.Event) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) Kinds() []session.EventKind {
	l.lock.Lock()
	defer l.lock.Unlock()
	kinds := make([]session.EventKind, 0, len(l.events))
	for _, event := range l.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func (l *eventLog) Count(kind session.EventKind) int {
	count := 0
	for _, k := range l.Kinds() {
		if k == kind {
			count++
		}
	}
	return count
}

func (l *eventLog) Last(kind session.EventKind) (session.Event, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind == kind {
			return l.events[i], true
		}
	}
	return session.Event{}, false
}
