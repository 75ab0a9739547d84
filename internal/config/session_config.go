package config

import "time"

type SessionConfig interface {
	GetRefreshLead() time.Duration
	GetRefreshTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetRefreshLead is how long before access token expiry the proactive refresh fires
func (Session) GetRefreshLead() time.Duration {
	return GetDuration("SESSION_REFRESH_LEAD", 60*time.Second)
}

func (Session) GetRefreshTimeout() time.Duration {
	return GetDuration("SESSION_REFRESH_TIMEOUT", 15*time.Second)
}
