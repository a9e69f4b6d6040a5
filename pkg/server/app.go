package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "MarketPull/internal/domain/repository"
	"MarketPull/internal/usecase"
	"MarketPull/pkg/cache"
	"MarketPull/pkg/config"
	xhttp "MarketPull/pkg/http"
	applogger "MarketPull/pkg/logger"
)

// App encapsulates the entire application lifecycle: the periodic pipeline
// scheduler, the HTTP query surface, and graceful teardown of the
// infrastructure clients.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	runner     *usecase.Runner
	handler    xhttp.Handler
	store      drepo.Store
	publisher  drepo.Publisher
	cache      cache.Service
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. publisher may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	runner *usecase.Runner,
	handler xhttp.Handler,
	store drepo.Store,
	publisher drepo.Publisher,
	c cache.Service,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		runner:    runner,
		handler:   handler,
		store:     store,
		publisher: publisher,
		cache:     c,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()
	if err := a.store.Init(initCtx); err != nil {
		return err
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	go a.schedule(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// schedule triggers pipeline runs on the polling interval until ctx is
// cancelled. A run still in flight when the ticker fires is skipped, not
// queued.
func (a *App) schedule(ctx context.Context) {
	if a.cfg.Pipeline.RunOnStart {
		a.runOnce(ctx)
	}

	ticker := time.NewTicker(a.cfg.Pipeline.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *App) runOnce(ctx context.Context) {
	summary, err := a.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, usecase.ErrRunInProgress) {
			a.log.Warn("previous run still in progress, skipping tick")
			return
		}
		a.log.Error("pipeline run failed", applogger.Error(err))
		return
	}
	a.log.Info("pipeline run summary",
		applogger.String("phase", string(summary.Phase)),
		applogger.Int("fetched", summary.TotalFetched()),
		applogger.Int("written", summary.Written),
		applogger.Int("conflicts", summary.Conflicts))
}

// shutdown gracefully stops the HTTP server and closes the infrastructure
// clients.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
