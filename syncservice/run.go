// Package syncservice runs the anchor sync HTTP server.
package syncservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/jwgray1010/PawCoin/internal/api"
	"github.com/jwgray1010/PawCoin/internal/config"
	"github.com/jwgray1010/PawCoin/internal/factory"
	"github.com/jwgray1010/PawCoin/internal/health"
	"github.com/jwgray1010/PawCoin/internal/logger"
	"github.com/jwgray1010/PawCoin/internal/store"
)

// Run starts the sync server and blocks until shutdown or error.
func Run() error {
	log := logger.New("anchor-sync")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log = log.Level(logger.ParseLevel(cfg.LogLevel))

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Anchor sync service starting")

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	set, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := set.Close(); err != nil {
			log.Error().Stack().Err(err).Msg("close anchor store")
		}
	}()

	svcHealth := startHealthCheckers(ctx, cfg, log, set)
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	hub := api.NewHub(log)
	router := buildRouter(set, hub, svcHealth.IsHealthy, cfg, log)

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		hub.Close()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		hub.Close()
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.AnchorSet, error) {
	set, err := factory.NewAnchorSet(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Anchor store unavailable")
		return nil, err
	}
	return set, nil
}

func buildRouter(set store.AnchorSet, hub *api.Hub, isHealthy func() bool, cfg *config.Config, log zerolog.Logger) *mux.Router {
	return api.NewRouter(api.Deps{
		Set:       set,
		Hub:       hub,
		Token:     cfg.APIToken,
		IsHealthy: isHealthy,
		Log:       log,
	})
}

// startHealthCheckers starts the store probe and the service aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, set store.AnchorSet) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(set, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

// Watch connections are hijacked, so WriteTimeout does not cut them off.
func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns interval*2 seconds, at least 30.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 30 {
		return 30
	}
	return timeout
}

// waitUntilHealthy blocks until the service reports healthy or the startup
// window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: %v not healthy within %d seconds", svcHealth.Unhealthy(), timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
