// Package app wires configuration, storage, the membership registry, the
// dispatcher, and the HTTP transport into a runnable server.
package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/upchat/upchat-server/internal/config"
	"github.com/upchat/upchat-server/internal/core"
	"github.com/upchat/upchat-server/internal/dispatch"
	"github.com/upchat/upchat-server/internal/store"
	"github.com/upchat/upchat-server/internal/store/memory"
	"github.com/upchat/upchat-server/internal/store/sqlite"
	transporthttp "github.com/upchat/upchat-server/internal/transport/http"
)

// App ties the core and transport layers together for one process lifetime.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := newStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.Storage).Msg("chat store initialized")

	registry := core.NewRegistry(logger)
	dispatcher := dispatch.New(registry, st, logger)
	server := transporthttp.NewServer(dispatcher, st, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

func newStore(cfg *config.Config, logger *zerolog.Logger) (store.Store, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		return sqlite.New(cfg.DatabasePath, logger)
	case config.StorageMemory:
		return memory.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
