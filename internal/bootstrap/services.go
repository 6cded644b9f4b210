package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/adapters/rabbitmq"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data"
	httpx "github.com/target/simqueue/internal/http"
	"github.com/target/simqueue/internal/observability/metrics"
	"github.com/target/simqueue/internal/observability/notify/pagerduty"
	"github.com/target/simqueue/internal/observability/notify/slack"
	"github.com/target/simqueue/internal/observability/statsd"
	"github.com/target/simqueue/internal/ports"
	"github.com/target/simqueue/internal/service"
	"github.com/target/simqueue/internal/service/failurenotifier"
)

// cacheKeyPrefix namespaces every key simqueue writes to Redis.
const cacheKeyPrefix = "simqueue:"

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Simulations   *service.SimulationService
	Imports       *service.ImportService
	Auth          ports.Authenticator
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// MetricsSink fans out to every enabled backend; nil when none is.
	MetricsSink     statsd.Sink
	StatsdClient    *statsd.Client
	MetricsHandler  http.Handler
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// Close releases observability resources.
func (o ObservabilityContainer) Close() error {
	if o.StatsdClient == nil {
		return nil
	}
	return o.StatsdClient.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Auth        ports.Authenticator
	Logger      *slog.Logger
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var (
		sinks        []statsd.Sink
		statsdClient *statsd.Client
		handler      http.Handler
	)

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "simqueue",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			statsdClient = client
			sinks = append(sinks, client)
		}
	}

	if cfg.Prometheus.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sinks = append(sinks, metrics.NewPrometheusSink(metrics.PrometheusOptions{
			Namespace:  cfg.Prometheus.Namespace,
			Registerer: reg,
			Logger:     obsLogger,
		}))
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	return ObservabilityContainer{
		MetricsSink:     metrics.NewMulti(sinks...),
		StatsdClient:    statsdClient,
		MetricsHandler:  handler,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}
}

// NewServices builds the application services backed by db and, when caching is enabled, redis.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observability := buildObservability(logger, deps.Config.Observability)

	var cache core.CacheRepository
	if deps.Config.Cache.Enabled && deps.RedisClient != nil {
		cache = data.NewRedisCacheRepo(deps.RedisClient, cacheKeyPrefix)
	} else if deps.Config.Cache.Enabled {
		logger.Warn("cache enabled but redis client not configured; results and idempotency keys are not cached")
	}

	sims, err := service.NewSimulationService(service.SimulationServiceOptions{
		Repo:           data.NewSimulationRepo(deps.DB, data.SimulationRepoConfig{Logger: logger}),
		Cache:          cache,
		Queue:          deps.Config.AMQP.Queue,
		ResultTTL:      deps.Config.Cache.ResultTTL,
		IdempotencyTTL: deps.Config.Cache.IdempotencyTTL,
		Logger:         logger,
		Metrics:        observability.MetricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create simulation service: %w", err)
	}

	return ServiceContainer{
		Simulations:   sims,
		Imports:       service.NewImportService(service.ImportServiceOptions{}),
		Auth:          deps.Auth,
		Observability: observability,
	}, nil
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:    cfg.Slack.WebhookURL,
			Channel:       cfg.Slack.Channel,
			Username:      cfg.Slack.Username,
			Timeout:       cfg.Timeout,
			RetryLimit:    cfg.RetryLimit,
			LinkURLPrefix: cfg.Slack.LinkURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Broker      *rabbitmq.Coordinator // Required when worker or relay is enabled
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// readinessChecks probes the dependencies this process actually holds.
func readinessChecks(cfg *ServiceOrchestrationConfig) []httpx.ReadinessCheck {
	var checks []httpx.ReadinessCheck
	if cfg.DB != nil {
		checks = append(checks, httpx.ReadinessCheck{Name: "postgres", Check: cfg.DB.PingContext})
	}
	if cfg.RedisClient != nil {
		checks = append(checks, httpx.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return cfg.RedisClient.Ping(ctx).Err() },
		})
	}
	if cfg.Broker != nil {
		broker := cfg.Broker
		checks = append(checks, httpx.ReadinessCheck{
			Name: "broker",
			Check: func(context.Context) error {
				if !broker.Healthy() {
					return errors.New("broker connection not established")
				}
				return nil
			},
		})
	}
	return checks
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) (*http.Server, error) {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil, nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:    deps.cfg.Config,
		Services:  deps.cfg.Services,
		Readiness: readinessChecks(deps.cfg),
		Logger:    deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWorker,
		name: "simulation worker",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Config == nil {
				return nil
			}
			return RunWorker(ctx, WorkerConfig{
				DB:              deps.cfg.DB,
				Broker:          deps.cfg.Broker,
				Logger:          deps.logger,
				Queue:           deps.cfg.Config.AMQP.Queue,
				Worker:          deps.cfg.Config.Worker,
				Metrics:         deps.cfg.Services.Observability.MetricsSink,
				FailureNotifier: deps.cfg.Services.Observability.FailureNotifier,
			})
		},
	}
}

func newRelayBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeRelay,
		name: "outbox relay",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Config == nil {
				return nil
			}
			return RunRelay(ctx, RelayConfig{
				DB:      deps.cfg.DB,
				Broker:  deps.cfg.Broker,
				Logger:  deps.logger,
				Config:  deps.cfg.Config.Relay,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			return RunReaper(ctx, ReaperConfig{
				DB:      deps.cfg.DB,
				Logger:  deps.logger,
				Config:  reaperCfg,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newWorkerBackgroundService(deps),
		newRelayBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) (ServiceStartupResult, error) {
	server, err := startHTTPServerIfEnabled(deps)
	if err != nil {
		return ServiceStartupResult{}, err
	}
	return ServiceStartupResult{
		HTTPServer: server,
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}, nil
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	if (enabledServices[config.ServiceModeWorker] || enabledServices[config.ServiceModeRelay]) && cfg.Broker == nil {
		return errors.New("worker and relay services require a broker coordinator")
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result, err := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})
	if err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		// The service context is already cancelled; shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
