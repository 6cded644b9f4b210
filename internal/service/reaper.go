package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/domain/model"
	obserrors "github.com/target/simqueue/internal/observability/errors"
	"github.com/target/simqueue/internal/observability/metrics"
	"github.com/target/simqueue/internal/observability/statsd"
)

const reaperFailingSample = 5

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required: reaper repository
	Config  config.ReaperConfig   // Required: reaper configuration
	Logger  *slog.Logger          // Optional: structured logger
	Metrics statsd.Sink           // Optional: metrics sink (StatsD-compatible)
	Now     func() time.Time      // Optional: clock used for backlog age
}

// ReaperService performs periodic maintenance of the simulation store.
//
// This service manages:
// - Deleting published outbox rows past their retention.
// - Reporting simulations stuck in Running or Submitted.
// - Reporting the unpublished outbox backlog.
//
// It never changes a simulation's status.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
	now     func() time.Time
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"outbox_retention", opts.Config.OutboxRetention,
			"running_max_age", opts.Config.RunningMaxAge,
			"submitted_max_age", opts.Config.SubmittedMaxAge,
		)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return errors.New("reaper interval must be greater than zero")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps replicas that start together from hitting the database in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter sleeps for a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// RunOnce performs one maintenance pass. Every step runs even when an earlier one fails.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := time.Now()
	var (
		errs               []error
		allContextCanceled = true
		m                  = cleanupMetrics{}
	)

	steps := []cleanupStep{
		{fn: s.pruneOutbox, label: "prune published outbox", count: &m.PrunedCount, metricErr: &m.PrunedErr},
		{fn: s.reportStaleRunning, label: "report stale running", count: &m.RunningCount, metricErr: &m.RunningErr},
		{fn: s.reportStaleSubmitted, label: "report stale submitted", count: &m.SubmittedCount, metricErr: &m.SubmittedErr},
		{fn: s.reportOutboxBacklog, label: "report outbox backlog", count: &m.BacklogCount, metricErr: &m.BacklogErr},
	}

	for _, step := range steps {
		outcome := s.executeCleanupStep(ctx, step.fn, step.label)
		*step.count = outcome.count
		*step.metricErr = outcome.metricErr
		if outcome.aggregateErr != nil {
			errs = append(errs, outcome.aggregateErr)
			allContextCanceled = allContextCanceled && outcome.canceled
		}
	}

	m.Elapsed = time.Since(start)
	s.emitCleanupMetrics(m)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}

	return nil
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	fn        cleanupFunc
	label     string
	count     *int64
	metricErr *error
}

type cleanupStepOutcome struct {
	count        int64
	metricErr    error
	aggregateErr error
	canceled     bool
}

func (s *ReaperService) executeCleanupStep(
	ctx context.Context,
	fn cleanupFunc,
	label string,
) cleanupStepOutcome {
	count, err := fn(ctx)
	outcome := cleanupStepOutcome{
		count:     count,
		metricErr: suppressContextCancellation(err),
		canceled:  isContextCancellation(err),
	}
	if err != nil {
		outcome.aggregateErr = fmt.Errorf("%s: %w", label, err)
	}
	return outcome
}

// pruneOutbox deletes published outbox rows older than the retention.
// Loops until no more rows are affected to handle large backlogs in batches.
func (s *ReaperService) pruneOutbox(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := s.repo.DeletePublishedOutbox(ctx, s.config.OutboxRetention, s.config.BatchSize)
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "deleted published outbox entries",
			"count", total,
			"retention", s.config.OutboxRetention,
		)
	}
	metrics.EmitReaperDeleted(s.metrics, "outbox", total)
	return total, nil
}

func (s *ReaperService) reportStaleRunning(ctx context.Context) (int64, error) {
	return s.reportStale(ctx, model.SimulationStatusRunning, s.config.RunningMaxAge)
}

func (s *ReaperService) reportStaleSubmitted(ctx context.Context) (int64, error) {
	return s.reportStale(ctx, model.SimulationStatusSubmitted, s.config.SubmittedMaxAge)
}

// reportStale counts simulations that have not left status within maxAge and logs a sample of them.
func (s *ReaperService) reportStale(ctx context.Context, status model.SimulationStatus, maxAge time.Duration) (int64, error) {
	q := core.StaleQuery{Status: status, MaxAge: maxAge, Limit: reaperFailingSample}
	count, err := s.repo.CountStale(ctx, q)
	if err != nil {
		return 0, err
	}
	metrics.EmitStuck(s.metrics, status, count)
	if count == 0 || s.logger == nil {
		return count, nil
	}

	ids := []int64{}
	if sample, listErr := s.repo.ListStale(ctx, q); listErr == nil {
		for _, sim := range sample {
			ids = append(ids, sim.ID)
		}
	} else if !isContextCancellation(listErr) {
		s.logger.WarnContext(ctx, "list stale simulations failed", "status", status, "error", listErr)
	}

	s.logger.WarnContext(ctx, "simulations stuck",
		"status", status,
		"count", count,
		"max_age", maxAge,
		"sample_ids", ids,
	)
	return count, nil
}

// reportOutboxBacklog measures unpublished outbox entries.
func (s *ReaperService) reportOutboxBacklog(ctx context.Context) (int64, error) {
	stats, err := s.repo.PendingStats(ctx, reaperFailingSample)
	if err != nil {
		return 0, err
	}
	now := s.now()
	metrics.EmitOutboxBacklog(s.metrics, stats, now)
	if stats.Pending == 0 || stats.OldestPending == nil || s.logger == nil {
		return stats.Pending, nil
	}

	age := now.Sub(*stats.OldestPending)
	attrs := []any{"pending", stats.Pending, "oldest_age", age.Round(time.Second)}
	if len(stats.Failing) > 0 && stats.Failing[0].LastError != nil {
		attrs = append(attrs, "last_error", *stats.Failing[0].LastError)
	}
	if age > s.config.SubmittedMaxAge {
		s.logger.WarnContext(ctx, "outbox backlog is not draining", attrs...)
	} else {
		s.logger.DebugContext(ctx, "outbox backlog", attrs...)
	}
	return stats.Pending, nil
}

type cleanupMetrics struct {
	PrunedCount    int64
	PrunedErr      error
	RunningCount   int64
	RunningErr     error
	SubmittedCount int64
	SubmittedErr   error
	BacklogCount   int64
	BacklogErr     error
	Elapsed        time.Duration
}

func (s *ReaperService) emitCleanupMetrics(m cleanupMetrics) {
	if s.metrics == nil {
		return
	}

	firstErr := firstError(m.PrunedErr, m.RunningErr, m.SubmittedErr, m.BacklogErr)

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if m.PrunedCount == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)

	if m.Elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", m.Elapsed, metrics.CloneTags(tags))
	}

	s.emitCleanupOperationMetric("prune_outbox", m.PrunedCount, m.PrunedErr)
	s.emitCleanupOperationMetric("stale_running", m.RunningCount, m.RunningErr)
	s.emitCleanupOperationMetric("stale_submitted", m.SubmittedCount, m.SubmittedErr)
	s.emitCleanupOperationMetric("outbox_backlog", m.BacklogCount, m.BacklogErr)

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *ReaperService) emitCleanupOperationMetric(operation string, count int64, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}

	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
