// Package bootstrap wires config, logging, telemetry, the durable store,
// the engine, and the HTTP/websocket surface into one process, and owns
// the signal-driven graceful shutdown.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"hedgegrid/internal/config"
	"hedgegrid/internal/engine"
	"hedgegrid/internal/httpapi"
	"hedgegrid/internal/logging"
	"hedgegrid/internal/state"
	"hedgegrid/internal/telemetry"
	"hedgegrid/pkg/liveserver"
)

// App holds every long-lived dependency the server needs.
type App struct {
	Cfg       *config.Config
	Logger    logging.Logger
	Telemetry *telemetry.Telemetry
	Store     state.Store
	Engine    *engine.Engine
	Hub       *liveserver.Hub
	WS        *liveserver.Server
	httpSrv   *http.Server
}

// NewApp bootstraps every dependency from a config file path.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	tel, err := telemetry.Setup("hedgegrid")
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if cfg.Telemetry.EnableMetrics {
		if _, err := telemetry.InitMetrics(telemetry.GetMeter("hedgegrid")); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	store, err := state.New(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	graceWindow := time.Duration(cfg.Engine.GraceWindowSecs) * time.Second
	buySettings := cfg.Sides.Buy.ToUserSettings()
	sellSettings := cfg.Sides.Sell.ToUserSettings()

	eng, err := engine.New(ctx, buySettings, sellSettings, cfg.Engine.CyclicOnByDefault, graceWindow, store, logger)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	hub := liveserver.NewHub(logger)
	ws := liveserver.NewServer(hub, logger, []string{cfg.Server.CORSAllowOrigin})

	return &App{
		Cfg:       cfg,
		Logger:    logger,
		Telemetry: tel,
		Store:     store,
		Engine:    eng,
		Hub:       hub,
		WS:        ws,
	}, nil
}

// Runner is one component of the process's lifecycle.
type Runner interface {
	Run(ctx context.Context) error
}

// Run starts every runner under one errgroup, canceled on SIGINT/SIGTERM,
// and returns once all of them have stopped. Dependencies are torn down
// separately by Shutdown.
func (a *App) Run(runners ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("starting hedgegrid")

	g.Go(func() error {
		a.Hub.Run(ctx)
		return nil
	})

	for _, r := range runners {
		runner := r
		g.Go(func() error {
			return runner.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		a.Logger.Error("hedgegrid stopped with error", "error", err)
		return err
	}

	a.Logger.Info("hedgegrid shut down gracefully")
	return nil
}

// Shutdown closes the store and telemetry providers with a bounded timeout.
func (a *App) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.Telemetry.Shutdown(ctx); err != nil {
		a.Logger.Warn("telemetry shutdown error", "error", err)
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("store close error", "error", err)
	}
	_ = a.Logger.Sync()
}

// HTTPRunner adapts an *http.Server to the Runner interface, handling
// graceful shutdown on context cancellation.
type HTTPRunner struct {
	Srv *http.Server
}

func NewHTTPRunner(addr string, handler http.Handler) *HTTPRunner {
	return &HTTPRunner{Srv: &http.Server{Addr: addr, Handler: handler}}
}

func (h *HTTPRunner) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.Srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return h.Srv.Shutdown(shutdownCtx)
	}
}

// metricsOnDedicatedPort reports whether telemetry is enabled with its own
// listener port, as opposed to sharing the main API's /metrics route.
func (a *App) metricsOnDedicatedPort() bool {
	return a.Cfg.Telemetry.EnableMetrics && a.Cfg.Telemetry.MetricsPort != 0
}

// BuildAPI assembles the REST+websocket router from App's dependencies.
// /metrics is mounted here only when telemetry is enabled and no dedicated
// metrics port is configured; otherwise MetricsRunner serves it separately.
func (a *App) BuildAPI() http.Handler {
	mountMetrics := a.Cfg.Telemetry.EnableMetrics && !a.metricsOnDedicatedPort()
	api := httpapi.New(a.Engine, a.WS, a.Logger, a.Cfg.Server.CORSAllowOrigin, a.Cfg.Server.RateLimitPerSec, a.Cfg.Server.RateLimitBurst, mountMetrics)
	return api.Router()
}

// MetricsRunner returns a Runner serving /metrics on its own port, or nil
// when telemetry is disabled or shares the main API's router instead.
func (a *App) MetricsRunner() Runner {
	if !a.metricsOnDedicatedPort() {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", httpapi.MetricsHandler())
	addr := fmt.Sprintf(":%d", a.Cfg.Telemetry.MetricsPort)
	return NewHTTPRunner(addr, mux)
}
