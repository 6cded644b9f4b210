// Package reaper provides adapters for running the simulation store reaper.
package reaper

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
	"github.com/target/simqueue/internal/domain/model"
	"github.com/target/simqueue/internal/observability/statsd"
	"github.com/target/simqueue/internal/service"
)

// Runner provides a simple adapter to run the reaper loop.
// It constructs the reaper service and runs the maintenance loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Repo    core.ReaperRepository
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	reaper, err := wireReaperService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wireReaperService wires up all dependencies for the reaper service.
func wireReaperService(opts RunnerOptions) (*service.ReaperService, error) {
	repo := opts.Repo
	if repo == nil {
		repo = NewRepoAdapter(
			data.NewSimulationRepo(opts.DB, data.SimulationRepoConfig{Logger: opts.Logger}),
			data.NewOutboxRepo(opts.DB, data.OutboxRepoConfig{Logger: opts.Logger}),
		)
	}

	return service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}

// RunOnce performs a single maintenance pass.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.reaper.RunOnce(ctx)
}

// RepoAdapter combines the simulation and outbox repositories into a ReaperRepository.
type RepoAdapter struct {
	sims   *data.SimulationRepo
	outbox *data.OutboxRepo
}

// NewRepoAdapter constructs a RepoAdapter.
func NewRepoAdapter(sims *data.SimulationRepo, outbox *data.OutboxRepo) *RepoAdapter {
	return &RepoAdapter{sims: sims, outbox: outbox}
}

func (a *RepoAdapter) DeletePublishedOutbox(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error) {
	return a.outbox.DeletePublishedBefore(ctx, olderThan, batchSize)
}

func (a *RepoAdapter) CountStale(ctx context.Context, q core.StaleQuery) (int64, error) {
	return a.sims.CountStale(ctx, q)
}

func (a *RepoAdapter) ListStale(ctx context.Context, q core.StaleQuery) ([]model.StuckSimulation, error) {
	return a.sims.ListStale(ctx, q)
}

func (a *RepoAdapter) PendingStats(ctx context.Context, failingLimit int) (*model.OutboxStats, error) {
	return a.outbox.PendingStats(ctx, failingLimit)
}

var _ core.ReaperRepository = (*RepoAdapter)(nil)
