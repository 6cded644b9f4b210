package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/domain/model"
	"github.com/target/simqueue/internal/domain/outbox"
	"github.com/target/simqueue/internal/observability/metrics"
	"github.com/target/simqueue/internal/observability/statsd"
	"golang.org/x/time/rate"
)

// RelayServiceOptions groups dependencies for RelayService.
type RelayServiceOptions struct {
	Outbox       core.OutboxRepository // Required: outbox repository
	Publisher    core.MessagePublisher // Required: broker publisher
	Notifier     outbox.Notifier       // Optional: wakes the relay when producers commit
	BatchSize    int                   // Optional: rows claimed per drain (default 100)
	PollInterval time.Duration         // Optional: fallback wake-up (default 5s)
	PublishRate  float64               // Optional: messages per second, 0 = unlimited
	PublishBurst int                   // Optional: limiter burst (default 1)
	Logger       *slog.Logger          // Optional: structured logger
	Metrics      statsd.Sink           // Optional: metrics sink
}

// RelayService moves committed outbox entries onto the broker.
type RelayService struct {
	outbox       core.OutboxRepository
	publisher    core.MessagePublisher
	notifier     outbox.Notifier
	batchSize    int
	pollInterval time.Duration
	limiter      *rate.Limiter
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewRelayService constructs a new RelayService.
func NewRelayService(opts RelayServiceOptions) (*RelayService, error) {
	if opts.Outbox == nil {
		return nil, errors.New("OutboxRepository is required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("MessagePublisher is required")
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if opts.PublishRate > 0 {
		burst := max(opts.PublishBurst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.PublishRate), burst)
	}

	return &RelayService{
		outbox:       opts.Outbox,
		publisher:    opts.Publisher,
		notifier:     opts.Notifier,
		batchSize:    batch,
		pollInterval: poll,
		limiter:      limiter,
		logger:       logger.With("component", "outbox_relay"),
		metrics:      opts.Metrics,
	}, nil
}

// Run drains the outbox whenever producers signal new entries or the poll interval elapses.
// It returns nil once ctx is cancelled.
func (s *RelayService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting outbox relay",
		"batch_size", s.batchSize,
		"poll_interval", s.pollInterval,
		"rate_limited", s.limiter != nil,
	)

	var notify <-chan struct{}
	if s.notifier != nil {
		unsub, ch := s.notifier.Subscribe()
		defer unsub()
		notify = ch
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if err := s.drainAll(ctx); err != nil && !isContextCancellation(err) {
			s.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "outbox relay stopping", "reason", ctx.Err())
			return nil
		case _, ok := <-notify:
			if !ok {
				notify = nil
			}
		case <-ticker.C:
		}
	}
}

// drainAll drains full batches until the outbox is empty or a publish fails.
func (s *RelayService) drainAll(ctx context.Context) error {
	for ctx.Err() == nil {
		res, err := s.DrainOnce(ctx)
		if err != nil {
			return err
		}
		if res.Failed > 0 || res.Claimed < s.batchSize {
			return nil
		}
	}
	return ctx.Err()
}

// DrainOnce publishes at most one batch of pending entries.
func (s *RelayService) DrainOnce(ctx context.Context) (model.DrainResult, error) {
	start := time.Now()
	res, err := s.outbox.DrainBatch(ctx, s.batchSize, s.publish)
	metrics.EmitRelayPass(s.metrics, res, time.Since(start))
	if err != nil {
		return res, fmt.Errorf("drain outbox: %w", err)
	}
	if res.Claimed > 0 {
		s.logger.DebugContext(ctx, "outbox drained",
			"claimed", res.Claimed,
			"published", res.Published,
			"failed", res.Failed,
		)
	}
	if res.Failed > 0 {
		s.logger.WarnContext(ctx, "outbox publish failed; remaining entries stay pending",
			"published", res.Published,
			"pending", res.Claimed-res.Published,
		)
	}
	return res, nil
}

func (s *RelayService) publish(ctx context.Context, entry model.OutboxEntry) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return s.publisher.Publish(ctx, core.OutboundMessage{
		Queue:     entry.Queue,
		MessageID: entry.MessageID,
		Body:      entry.Payload,
	})
}
