package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/adapters/jobrunner"
	"github.com/target/simqueue/internal/adapters/rabbitmq"
	"github.com/target/simqueue/internal/adapters/reaper"
	"github.com/target/simqueue/internal/adapters/relayrunner"
	"github.com/target/simqueue/internal/observability/statsd"
	"github.com/target/simqueue/internal/service/failurenotifier"
)

// BrokerConfig contains configuration for the broker coordinator.
type BrokerConfig struct {
	AMQP   config.AMQPConfig
	Logger *slog.Logger
}

// NewBroker builds the per-process broker coordinator. No connection is made until a channel is requested.
func NewBroker(cfg BrokerConfig) (*rabbitmq.Coordinator, error) {
	coord, err := rabbitmq.NewCoordinator(rabbitmq.CoordinatorOptions{
		URL:             cfg.AMQP.URL,
		ConnectionName:  cfg.AMQP.ConnectionName,
		PublishConfirms: cfg.AMQP.PublishConfirms,
		ReconnectMin:    cfg.AMQP.ReconnectMin,
		ReconnectMax:    cfg.AMQP.ReconnectMax,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create broker coordinator: %w", err)
	}
	return coord, nil
}

// WorkerConfig contains configuration for the simulation worker.
type WorkerConfig struct {
	DB              *sql.DB
	Broker          *rabbitmq.Coordinator
	Logger          *slog.Logger
	Queue           string
	Worker          config.WorkerConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunWorker consumes simulation messages until ctx is cancelled.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	if cfg.Broker == nil {
		return errors.New("broker coordinator is required")
	}
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerOptions{
		Coordinator: cfg.Broker,
		Tag:         cfg.Worker.ConsumerTag,
		Prefetch:    1,
		Logger:      cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create broker consumer: %w", err)
	}

	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		DB:              cfg.DB,
		Consumer:        consumer,
		Logger:          cfg.Logger,
		Queue:           cfg.Queue,
		Concurrency:     cfg.Worker.Concurrency,
		TimeScale:       cfg.Worker.TimeScale,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return fmt.Errorf("create simulation worker: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run simulation worker: %w", runErr)
	}
	return nil
}

// RelayConfig contains configuration for the outbox relay.
type RelayConfig struct {
	DB      *sql.DB
	Broker  *rabbitmq.Coordinator
	Logger  *slog.Logger
	Config  config.RelayConfig
	Metrics statsd.Sink
}

// RunRelay publishes committed outbox entries until ctx is cancelled.
func RunRelay(ctx context.Context, cfg RelayConfig) error {
	if cfg.Broker == nil {
		return errors.New("broker coordinator is required")
	}
	publisher, err := rabbitmq.NewPublisher(cfg.Broker)
	if err != nil {
		return fmt.Errorf("create broker publisher: %w", err)
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil && cfg.Logger != nil {
			cfg.Logger.Warn("close broker publisher", "error", closeErr)
		}
	}()

	runner, err := relayrunner.NewRunner(relayrunner.RunnerOptions{
		DB:        cfg.DB,
		Publisher: publisher,
		Config:    cfg.Config,
		Logger:    cfg.Logger,
		Metrics:   cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create relay runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
