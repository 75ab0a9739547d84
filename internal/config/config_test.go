package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/connectin-session/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("CONNECTIN_API_URL", "")
	t.Setenv("SESSION_REFRESH_LEAD", "")
	t.Setenv("TOKEN_STORE", "")

	c := config.New()
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, "http://localhost:8000", c.GetAPIBaseURL())
	require.Equal(t, 60*time.Second, c.GetRefreshLead())
	require.Equal(t, "file", c.GetTokenStore())
	require.Equal(t, []string{"openid", "profile", "email", "offline_access"}, c.GetOAuthScopes())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("ENV", "PROD")
	t.Setenv("CONNECTIN_API_URL", "https://api.connectin.dev")
	t.Setenv("SESSION_REFRESH_LEAD", "2m")
	t.Setenv("SESSION_REFRESH_TIMEOUT", "not-a-duration")
	t.Setenv("TOKEN_STORE", "redis")
	t.Setenv("OAUTH_SCOPES", "openid  email")

	c := config.New()
	require.Equal(t, "PROD", c.GetEnv())
	require.Equal(t, "https://api.connectin.dev", c.GetAPIBaseURL())
	require.Equal(t, 2*time.Minute, c.GetRefreshLead())
	require.Equal(t, 15*time.Second, c.GetRefreshTimeout())
	require.Equal(t, "redis", c.GetTokenStore())
	require.Equal(t, []string{"openid", "email"}, c.GetOAuthScopes())
}
