package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/simqueue/config"
	httpx "github.com/target/simqueue/internal/http"
	"golang.org/x/net/netutil"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config    *config.AppConfig
	Services  ServiceContainer
	Readiness []httpx.ReadinessCheck
	Logger    *slog.Logger
}

// StartHTTPServer binds the listener and serves the API in the background.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		Simulations:    cfg.Services.Simulations,
		Imports:        cfg.Services.Imports,
		Auth:           cfg.Services.Auth,
		Readiness:      cfg.Readiness,
		MaxImportBytes: appCfg.HTTP.MaxImportBytes,
		Logger:         logger,
	}
	if cfg.Services.Observability.MetricsHandler != nil {
		services.Metrics = cfg.Services.Observability.MetricsHandler
		services.MetricsPath = appCfg.Observability.Prometheus.Path
	}

	handler := buildHTTPHandler(logger, services)
	return startServer(logger, handler, appCfg.HTTP)
}

func buildHTTPHandler(logger *slog.Logger, services httpx.RouterServices) http.Handler {
	// Order: Recover -> Logging -> Router
	h := httpx.NewRouter(services)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h
}

func startServer(logger *slog.Logger, handler http.Handler, cfg config.HTTPConfig) (*http.Server, error) {
	// Guard against empty addr to avoid listening on Go default
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String(), "max_connections", cfg.MaxConnections)
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", serveErr)
		}
	}()

	return server, nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(cfg.Context, 10*time.Second)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
