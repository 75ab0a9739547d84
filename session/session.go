package session

import (
	"time"

	"github.com/jrsteele09/connectin-session/users"
)

// Session is a snapshot of the current authentication context. The zero
// value is the anonymous session.
type Session struct {
	AccessToken  string         // Installed bearer credential
	RefreshToken string         // Exchanged for a new pair when the access token expires
	User         *users.Summary // Profile snapshot, nil until known
	ExpiresAt    time.Time      // Access token exp claim
}

// Authenticated reports whether an access token is installed
func (s Session) Authenticated() bool {
	return s.AccessToken != ""
}

func (s Session) clone() Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

type EventKind int

const (
	EventLoggedIn EventKind = iota + 1
	EventRefreshed
	EventUserLoaded
	EventLoggedOut
	EventSessionExpired
)

func (k EventKind) String() string {
	switch k {
	case EventLoggedIn:
		return "logged_in"
	case EventRefreshed:
		return "refreshed"
	case EventUserLoaded:
		return "user_loaded"
	case EventLoggedOut:
		return "logged_out"
	case EventSessionExpired:
		return "session_expired"
	}
	return "unknown"
}

// Event is published to subscribers on every session transition
type Event struct {
	Kind    EventKind
	Session Session
	Notice  string // human readable, set for EventSessionExpired
}

// SessionExpiredNotice is shown when a session ends because it could not be renewed
const SessionExpiredNotice = "Your session has expired. Please log in again."
