package config

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	appNameVar        = "APP_NAME"
	logLevelVar       = "LOG_LEVEL"
	apiBaseURLVar     = "CONNECTIN_API_URL"
	requestTimeoutVar = "CONNECTIN_REQUEST_TIMEOUT"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "ConnectIn")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

type API struct{}

var _ APIConfig = API{}

// GetAPIBaseURL returns the ConnectIn API root (e.g., "https://api.connectin.dev")
func (API) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "http://localhost:8000")
}

func (API) GetRequestTimeout() time.Duration {
	return GetDuration(requestTimeoutVar, 30*time.Second)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses envVar with time.ParseDuration, falling back to
// defaultValue when unset or invalid.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("var", envVar).Str("value", value).Dur("default", defaultValue).Msg("invalid duration, using default")
		return defaultValue
	}
	return d
}
