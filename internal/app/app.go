// Package app wires the credential store, directory, and transports together
// and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/directory"
	"github.com/vovakirdan/linechat-server/internal/session"
	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/flatfile"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
	"github.com/vovakirdan/linechat-server/internal/transport/httpadmin"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// App holds all wired components.
type App struct {
	cfg     config.Config
	backend store.Backend
	creds   *auth.Service
	dir     *directory.Directory
	tcp     *tcp.Server
	admin   *httpadmin.Server // nil when disabled
	log     *zerolog.Logger
}

// New constructs the application and loads the persisted account set.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	backend, err := newBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	creds := auth.NewService(backend)
	if err := creds.Load(context.Background()); err != nil {
		_ = backend.Close()
		return nil, err
	}
	logger.Info().
		Str("driver", cfg.Storage.Driver).
		Str("path", cfg.Storage.Path).
		Int("accounts", creds.Count()).
		Msg("credential store loaded")

	dir := directory.New(logger)
	limiter := session.NewLimiter(cfg.MaxSessions)

	a := &App{
		cfg:     cfg,
		backend: backend,
		creds:   creds,
		dir:     dir,
		tcp:     tcp.NewServer(cfg.ListenAddr, limiter, creds, dir, logger),
		log:     logger,
	}
	if cfg.Admin.Enabled {
		a.admin = httpadmin.NewServer(cfg.Admin.Addr, creds, dir, limiter, logger)
	}
	return a, nil
}

func newBackend(cfg config.Storage) (store.Backend, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.New(cfg.Path)
	default:
		return flatfile.New(cfg.Path), nil
	}
}

// Run starts the transports and blocks until context cancellation or a fatal
// listener error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 2)

	go func() {
		serverErr <- a.tcp.Run(ctx)
	}()

	if a.admin != nil {
		a.log.Info().Str("addr", a.cfg.Admin.Addr).Msg("admin http server enabled")
		go func() {
			if err := a.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		if a.admin != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()
			if err := a.admin.Shutdown(shutdownCtx); err != nil {
				a.log.Warn().Err(err).Msg("admin server shutdown failed")
			}
		}
		// The chat listener closes with the context; give it a moment to
		// report back before closing shared resources.
		select {
		case <-serverErr:
		case <-time.After(a.cfg.ShutdownTimeout):
		}
		a.cleanup()
		return nil
	}
}

func (a *App) cleanup() {
	if err := a.backend.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close storage backend")
	} else {
		a.log.Info().Msg("storage backend closed")
	}
}
