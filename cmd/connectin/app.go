package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/connectin-session/authapi"
	"github.com/jrsteele09/connectin-session/internal/config"
	"github.com/jrsteele09/connectin-session/internal/logging"
	"github.com/jrsteele09/connectin-session/session"
	"github.com/jrsteele09/connectin-session/tokenstore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app holds the wired session stack for one CLI invocation
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	manager *session.Manager
	closers []io.Closer
}

func newApp(ctx context.Context, cfg config.Config, notices io.Writer) (*app, error) {
	logger := logging.New(os.Stderr, cfg.GetEnv(), cfg.GetLogLevel())
	log.Logger = logger

	a := &app{cfg: cfg, logger: logger}

	store, err := a.newStore()
	if err != nil {
		return nil, err
	}

	api := authapi.NewClient(cfg.GetAPIBaseURL(),
		authapi.WithTimeout(cfg.GetRequestTimeout()),
		authapi.WithLogger(logger),
	)

	options := []session.Option{
		session.WithLogger(logger),
		session.WithRefreshLead(cfg.GetRefreshLead()),
		session.WithRefreshTimeout(cfg.GetRefreshTimeout()),
	}
	if exchanger := a.newOAuth(ctx); exchanger != nil {
		options = append(options, session.WithOAuth(exchanger))
	}

	a.manager, err = session.New(api, store, options...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.manager.Subscribe(func(event session.Event) {
		if event.Kind == session.EventSessionExpired && event.Notice != "" {
			_, _ = io.WriteString(notices, event.Notice+"\n")
		}
	})

	if err := a.manager.Initialize(ctx); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "newApp Initialize")
	}
	return a, nil
}

func (a *app) newStore() (tokenstore.Store, error) {
	switch strings.ToLower(a.cfg.GetTokenStore()) {
	case "", "file":
		folder := a.cfg.GetDataFolder()
		a.logger.Debug().Str("path", filepath.Join(folder, "session.json")).Msg("using file token store")
		return tokenstore.NewFileStore(folder), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.GetRedisAddr(),
			Password: a.cfg.GetRedisPassword(),
		})
		a.closers = append(a.closers, client)
		a.logger.Debug().Str("addr", a.cfg.GetRedisAddr()).Msg("using redis token store")
		return tokenstore.NewRedisStore(client, a.cfg.GetRedisKeyPrefix()), nil
	}
	return nil, errors.Errorf("unknown TOKEN_STORE %q", a.cfg.GetTokenStore())
}

// newOAuth returns nil when no provider is configured or discovery fails
func (a *app) newOAuth(ctx context.Context) authapi.OAuthExchanger {
	if a.cfg.GetOAuthIssuer() == "" || a.cfg.GetOAuthClientID() == "" {
		return nil
	}
	provider, err := authapi.DiscoverOAuthProvider(ctx,
		a.cfg.GetOAuthIssuer(),
		a.cfg.GetOAuthClientID(),
		a.cfg.GetOAuthClientSecret(),
		a.cfg.GetOAuthRedirectURL(),
		a.cfg.GetOAuthScopes(),
	)
	if err != nil {
		a.logger.Warn().Err(err).Str("issuer", a.cfg.GetOAuthIssuer()).Msg("oauth provider unavailable")
		return nil
	}
	return provider
}

func (a *app) Close() {
	if a.manager != nil {
		a.manager.Close()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("close failed")
		}
	}
}
