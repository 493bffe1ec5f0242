// Package forge assembles the platform: encrypted file store, schema
// engine, route flow interpreter, and the HTTP surface serving them.
package forge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/contentforge/forge/config"
	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/handlers"
	"github.com/contentforge/forge/store"
)

// Engine owns the running pieces of one server process.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	server  *http.Server
	limiter *handlers.RateLimiter
	watcher *config.FileWatcher
}

// NewEngine opens the store under cfg.DataRoot, installs the
// constraint catalog, and builds the HTTP surface.
func NewEngine(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(cfg.DataRoot, cfg.TmpPassword, logger)
	if err != nil {
		return nil, err
	}
	if err := st.InstallConstraints(); err != nil {
		return nil, err
	}

	srv := handlers.NewServer(st, logger, cfg.JWTSecret, cfg.LoopCap)
	handler, limiter := srv.Router(cfg.RateLimit, cfg.RateBurst)

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		limiter: limiter,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	// Edits to the constraints file take effect without a restart.
	constraintsPath, err := st.FilePath("constraints")
	if err != nil {
		limiter.Stop()
		return nil, err
	}
	e.watcher = config.NewFileWatcher(constraintsPath, e.reloadConstraints,
		config.WithWatchLogger(logger))

	return e, nil
}

// Store exposes the engine's persistence layer.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Handler exposes the HTTP surface for embedding and tests.
func (e *Engine) Handler() http.Handler {
	return e.server.Handler
}

// reloadConstraints reinstalls the catalog after an on-disk edit.
func (e *Engine) reloadConstraints() {
	c, err := e.store.LoadConstraints()
	if err != nil {
		e.logger.Error("constraint catalog reload failed", "error", err)
		return
	}
	constraint.SetDefault(c)
	e.logger.Info("constraint catalog reloaded")
}

// Start launches the constraints watcher and the HTTP listener. It
// returns once the listener is up; serve errors surface on the
// returned channel.
func (e *Engine) Start() (<-chan error, error) {
	if err := e.watcher.Start(); err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("server listening", "addr", e.server.Addr)
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// Shutdown drains the HTTP server and stops the background pieces.
func (e *Engine) Shutdown(ctx context.Context) error {
	err := e.server.Shutdown(ctx)
	e.limiter.Stop()
	if werr := e.watcher.Stop(); werr != nil && err == nil {
		err = werr
	}
	return err
}
