// Package failurenotifier fans dropped-simulation events out to the configured notification sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/target/simqueue/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	Now    func() time.Time
}

// Service dispatches failure events to all registered sinks.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
	now    func() time.Time
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}

	return &Service{
		logger: logger.With("component", "failure_notifier"),
		sinks:  sinks,
		now:    now,
	}
}

// NotifySimulationFailure fans the payload out to all sinks and waits for them.
// A message that could not be decoded is reported as a warning; every other drop is critical.
func (s *Service) NotifySimulationFailure(ctx context.Context, payload notify.SimulationFailurePayload) {
	if s == nil || len(s.sinks) == 0 {
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
		if payload.Stage == notify.StageDecode {
			payload.Severity = notify.SeverityWarning
		}
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = s.now()
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendSimulationFailure(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "failure notifier delivery error",
					"sink", entry.Name,
					"simulation_id", payload.SimulationID,
					"message_id", payload.MessageID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}
