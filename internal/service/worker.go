package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/domain/model"
	obserrors "github.com/target/simqueue/internal/observability/errors"
	"github.com/target/simqueue/internal/observability/metrics"
	"github.com/target/simqueue/internal/observability/notify"
	"github.com/target/simqueue/internal/observability/statsd"
	"github.com/target/simqueue/internal/service/failurenotifier"
)

// SimulationExecutor runs one simulation and returns its result.
type SimulationExecutor interface {
	Execute(ctx context.Context, params model.SimulationParams) (*model.SimulationResult, error)
}

// WorkerServiceOptions groups dependencies for WorkerService.
type WorkerServiceOptions struct {
	Repo            core.SimulationRepository // Required: simulation repository
	Executor        SimulationExecutor        // Required: pacing and scoring
	Logger          *slog.Logger              // Optional: structured logger
	Metrics         statsd.Sink               // Optional: metrics sink
	FailureNotifier *failurenotifier.Service  // Optional: notified for every dropped message
}

// WorkerService processes simulation messages: decode, claim, execute, complete, ack.
type WorkerService struct {
	repo     core.SimulationRepository
	executor SimulationExecutor
	logger   *slog.Logger
	metrics  statsd.Sink
	notifier *failurenotifier.Service
}

// NewWorkerService constructs a new WorkerService.
func NewWorkerService(opts WorkerServiceOptions) (*WorkerService, error) {
	if opts.Repo == nil {
		return nil, errors.New("SimulationRepository is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("SimulationExecutor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerService{
		repo:     opts.Repo,
		executor: opts.Executor,
		logger:   logger.With("component", "simulation_worker"),
		metrics:  opts.Metrics,
		notifier: opts.FailureNotifier,
	}, nil
}

// inflight tracks one message through the pipeline for logging, metrics and notifications.
type inflight struct {
	d     core.Delivery
	msg   *model.SimulationMessage
	start time.Time
}

func (d *inflight) simulationID() int64 {
	if d.msg == nil {
		return 0
	}
	return d.msg.SimulationID
}

// HandleDelivery processes one message. Any failure before the ack rejects the message without
// requeue. When ctx is cancelled mid-flight the delivery is left unsettled so the broker
// redelivers it once the channel closes.
func (s *WorkerService) HandleDelivery(ctx context.Context, d core.Delivery) error {
	cur := &inflight{d: d, start: time.Now()}

	msg, err := model.DecodeSimulationMessage(d.Body())
	if err != nil {
		return s.drop(ctx, cur, notify.StageDecode, err)
	}
	cur.msg = msg

	claimed, err := s.repo.Claim(ctx, msg.SimulationID)
	if err != nil {
		return s.fail(ctx, cur, notify.StageClaim, err)
	}
	if !claimed {
		// Redelivery or a duplicate publish: the row already left Submitted.
		s.logger.InfoContext(ctx, "simulation claim missed; continuing",
			"simulation_id", msg.SimulationID,
			"message_id", d.MessageID(),
			"redelivered", d.Redelivered(),
		)
	}

	result, err := s.executor.Execute(ctx, msg.SimulationParams)
	if err != nil {
		return s.fail(ctx, cur, notify.StageExecute, err)
	}
	if result == nil {
		return s.drop(ctx, cur, notify.StageExecute, errors.New("scorer returned no result"))
	}

	found, err := s.repo.Complete(ctx, msg.SimulationID, result)
	if err != nil {
		return s.fail(ctx, cur, notify.StageComplete, err)
	}

	if err := d.Ack(); err != nil {
		s.logger.ErrorContext(ctx, "ack simulation message failed",
			"simulation_id", msg.SimulationID,
			"message_id", d.MessageID(),
			"error", err,
		)
		s.emit(cur, notify.StageAck, metrics.ResultError, err)
		return fmt.Errorf("ack simulation %d: %w", msg.SimulationID, err)
	}

	outcome := metrics.ResultSuccess
	if !found {
		outcome = metrics.ResultNoop
		s.logger.WarnContext(ctx, "simulation deleted before completion",
			"simulation_id", msg.SimulationID,
		)
	}
	s.emit(cur, notify.StageAck, outcome, nil)
	s.logger.InfoContext(ctx, "simulation completed",
		"simulation_id", msg.SimulationID,
		"user_id", msg.UserID,
		"survival_rate", result.SurvivalRate,
		"elapsed", time.Since(cur.start),
	)
	return nil
}

// fail drops the message unless the failure came from shutdown.
func (s *WorkerService) fail(ctx context.Context, cur *inflight, stage notify.Stage, err error) error {
	if ctx.Err() != nil && isContextCancellation(err) {
		s.logger.InfoContext(ctx, "shutdown interrupted simulation; leaving message for redelivery",
			"simulation_id", cur.simulationID(),
			"stage", stage,
		)
		return nil
	}
	return s.drop(ctx, cur, stage, err)
}

// drop rejects the message without requeue and reports it.
func (s *WorkerService) drop(ctx context.Context, cur *inflight, stage notify.Stage, cause error) error {
	rejectErr := cur.d.Reject(false)

	s.logger.ErrorContext(ctx, "simulation message dropped",
		"simulation_id", cur.simulationID(),
		"message_id", cur.d.MessageID(),
		"stage", stage,
		"redelivered", cur.d.Redelivered(),
		"error", cause,
	)
	s.emit(cur, stage, metrics.ResultError, cause)

	if s.notifier.Enabled() {
		payload := notify.SimulationFailurePayload{
			SimulationID: cur.simulationID(),
			MessageID:    cur.d.MessageID(),
			Stage:        stage,
			Redelivered:  cur.d.Redelivered(),
			Error:        cause.Error(),
			ErrorClass:   obserrors.Classify(cause),
		}
		if cur.msg != nil {
			payload.UserID = cur.msg.UserID
			payload.Title = cur.msg.Title
		}
		s.notifier.NotifySimulationFailure(context.WithoutCancel(ctx), payload)
	}

	err := fmt.Errorf("%s simulation %d: %w", stage, cur.simulationID(), cause)
	if rejectErr != nil {
		err = errors.Join(err, fmt.Errorf("reject: %w", rejectErr))
	}
	return err
}

func (s *WorkerService) emit(cur *inflight, stage notify.Stage, result string, err error) {
	metrics.EmitSimulationOutcome(s.metrics, metrics.SimulationMetric{
		Stage:       string(stage),
		Result:      result,
		Redelivered: cur.d.Redelivered(),
		Duration:    time.Since(cur.start),
		Err:         err,
	})
}
