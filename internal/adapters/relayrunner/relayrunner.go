// Package relayrunner runs the outbox relay that publishes committed simulation messages.
package relayrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data"
	"github.com/target/simqueue/internal/domain/outbox"
	"github.com/target/simqueue/internal/observability/statsd"
	"github.com/target/simqueue/internal/service"
)

// RunnerOptions configures the relay runner adapter.
type RunnerOptions struct {
	DB        *sql.DB
	Publisher core.MessagePublisher
	Config    config.RelayConfig
	Logger    *slog.Logger

	// Optional dependency injections (useful for tests/decoupling)
	Outbox   core.OutboxRepository
	Notifier outbox.Notifier
	Metrics  statsd.Sink
}

// Runner drives the relay service and owns its notifier.
type Runner struct {
	relay    *service.RelayService
	notifier outbox.Notifier
	logger   *slog.Logger
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// NewRunner wires the outbox repository, notifier and relay service.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Outbox == nil {
		return nil, errors.New("either DB or Outbox must be provided")
	}
	if opts.Publisher == nil {
		return nil, errors.New("message publisher is required")
	}
	logger := resolveLogger(opts.Logger)

	repo := opts.Outbox
	if repo == nil {
		repo = data.NewOutboxRepo(opts.DB, data.OutboxRepoConfig{Logger: logger})
	}

	notifier := opts.Notifier
	if notifier == nil {
		n, err := outbox.NewNotifier(outbox.NotifierOptions{
			Waiter:     repo,
			WaitWindow: opts.Config.PollInterval,
			Backoff:    250 * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("create outbox notifier: %w", err)
		}
		notifier = n
	}

	relay, err := service.NewRelayService(service.RelayServiceOptions{
		Outbox:       repo,
		Publisher:    opts.Publisher,
		Notifier:     notifier,
		BatchSize:    opts.Config.BatchSize,
		PollInterval: opts.Config.PollInterval,
		PublishRate:  opts.Config.PublishRate,
		PublishBurst: opts.Config.PublishBurst,
		Logger:       logger,
		Metrics:      opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create relay service: %w", err)
	}

	return &Runner{relay: relay, notifier: notifier, logger: logger}, nil
}

// Run relays outbox entries until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting outbox relay runner")
	defer r.notifier.StopAll()
	return r.relay.Run(ctx)
}
