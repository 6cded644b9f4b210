// Package jobrunner runs simulation workers against the broker queue.
package jobrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data"
	"github.com/target/simqueue/internal/domain/simulation"
	"github.com/target/simqueue/internal/observability/statsd"
	"github.com/target/simqueue/internal/service"
	"github.com/target/simqueue/internal/service/failurenotifier"
	"golang.org/x/sync/errgroup"
)

// RunnerOptions configures the simulation worker runner.
type RunnerOptions struct {
	DB       *sql.DB
	Consumer core.MessageConsumer
	Logger   *slog.Logger

	// Worker settings
	Queue       string  // defaults to config.DefaultQueue
	Concurrency int     // number of consumers, each with its own channel; defaults to 1
	TimeScale   float64 // wall-clock seconds per unit of declared duration

	// Optional dependency injections (useful for tests/decoupling)
	Repo            core.SimulationRepository
	Scorer          simulation.Scorer
	Sleep           simulation.SleepFunc
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner consumes simulation messages and hands them to the worker service.
type Runner struct {
	worker   *service.WorkerService
	consumer core.MessageConsumer
	logger   *slog.Logger
	queue    string
	workers  int
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func resolveRepo(opts RunnerOptions) core.SimulationRepository {
	if opts.Repo != nil {
		return opts.Repo
	}
	return data.NewSimulationRepo(opts.DB, data.SimulationRepoConfig{Logger: opts.Logger})
}

// NewRunner wires the executor and worker service and constructs a runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Repo == nil {
		return nil, errors.New("either DB or Repo must be provided")
	}
	if opts.Consumer == nil {
		return nil, errors.New("message consumer is required")
	}

	logger := resolveLogger(opts.Logger)

	scorer := opts.Scorer
	if scorer == nil {
		scorer = simulation.NewTumorModel(simulation.TumorModelOptions{})
	}
	executor, err := simulation.NewExecutor(simulation.ExecutorOptions{
		Scorer:    scorer,
		TimeScale: opts.TimeScale,
		Sleep:     opts.Sleep,
	})
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}

	worker, err := service.NewWorkerService(service.WorkerServiceOptions{
		Repo:            resolveRepo(opts),
		Executor:        executor,
		Logger:          logger,
		Metrics:         opts.Metrics,
		FailureNotifier: opts.FailureNotifier,
	})
	if err != nil {
		return nil, fmt.Errorf("create worker service: %w", err)
	}

	queue := opts.Queue
	if queue == "" {
		queue = config.DefaultQueue
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}

	return &Runner{
		worker:   worker,
		consumer: opts.Consumer,
		logger:   logger,
		queue:    queue,
		workers:  workers,
	}, nil
}

// Run starts the consumers and blocks until the context is cancelled or one consumer fails.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting simulation worker", "queue", r.queue, "workers", r.workers)

	group, gctx := errgroup.WithContext(ctx)
	for i := range r.workers {
		group.Go(func() error {
			if err := r.consumer.Consume(gctx, r.queue, r.worker.HandleDelivery); err != nil {
				return fmt.Errorf("consumer %d: %w", i, err)
			}
			return nil
		})
	}
	return group.Wait()
}
