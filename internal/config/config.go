package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	APIConfig
	SessionConfig
	StorageConfig
	OAuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	Session
	Storage
	OAuth
}

var loadDotEnv sync.Once

// New loads an optional .env file from the working directory and returns
// a Config backed by environment variables.
func New() Config {
	loadDotEnv.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Debug().Err(err).Msg("no .env file loaded")
		}
	})
	return mainConfig{}
}
