// Package metrics holds the metric names and tag conventions for the simulation pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/target/simqueue/internal/domain/model"
	obserrors "github.com/target/simqueue/internal/observability/errors"
	"github.com/target/simqueue/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Metric names.
const (
	SimulationProcessed = "worker.message"
	SimulationDuration  = "worker.message_duration"
	SimulationCreated   = "simulation.batch_created"
	RelayPublished      = "relay.published"
	RelayFailed         = "relay.publish_failed"
	RelayPassDuration   = "relay.pass_duration"
	OutboxPending       = "reaper.outbox_pending"
	OutboxOldestAge     = "reaper.outbox_oldest_pending_seconds"
	SimulationStuck     = "reaper.stuck_simulations"
	ReaperDeleted       = "reaper.deleted"
)

// SimulationMetric captures one worker outcome.
type SimulationMetric struct {
	// Stage is the last step reached: decode, claim, execute, complete or ack.
	Stage       string
	Result      string
	Redelivered bool
	Duration    time.Duration
	Err         error
}

// EmitSimulationOutcome emits the per-message worker outcome.
func EmitSimulationOutcome(sink statsd.Sink, in SimulationMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"stage":       in.Stage,
		"result":      in.Result,
		"redelivered": strconv.FormatBool(in.Redelivered),
	}
	if in.Err != nil && in.Result != ResultSuccess {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(SimulationProcessed, 1, tags)
	if in.Duration > 0 {
		sink.Timing(SimulationDuration, in.Duration, CloneTags(tags))
	}
}

// EmitBatchCreated counts simulations committed by a producer call.
func EmitBatchCreated(sink statsd.Sink, count int) {
	if sink == nil || count <= 0 {
		return
	}
	sink.Count(SimulationCreated, int64(count), nil)
}

// EmitRelayPass emits counters for one outbox drain.
func EmitRelayPass(sink statsd.Sink, res model.DrainResult, elapsed time.Duration) {
	if sink == nil || res.Claimed == 0 {
		return
	}
	if res.Published > 0 {
		sink.Count(RelayPublished, int64(res.Published), nil)
	}
	if res.Failed > 0 {
		sink.Count(RelayFailed, int64(res.Failed), nil)
	}
	sink.Timing(RelayPassDuration, elapsed, nil)
}

// EmitOutboxBacklog reports the unpublished backlog as gauges.
func EmitOutboxBacklog(sink statsd.Sink, stats *model.OutboxStats, now time.Time) {
	if sink == nil || stats == nil {
		return
	}
	sink.Gauge(OutboxPending, float64(stats.Pending), nil)
	age := 0.0
	if stats.OldestPending != nil {
		age = max(now.Sub(*stats.OldestPending).Seconds(), 0)
	}
	sink.Gauge(OutboxOldestAge, age, nil)
}

// EmitStuck reports how many simulations have overstayed status.
func EmitStuck(sink statsd.Sink, status model.SimulationStatus, count int64) {
	if sink == nil {
		return
	}
	sink.Gauge(SimulationStuck, float64(count), map[string]string{"status": string(status)})
}

// EmitReaperDeleted counts rows removed by a reaper step.
func EmitReaperDeleted(sink statsd.Sink, step string, count int64) {
	if sink == nil || count <= 0 {
		return
	}
	sink.Count(ReaperDeleted, count, map[string]string{"step": step})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Multi fans every metric out to each non-nil sink.
type Multi []statsd.Sink

// NewMulti drops nil sinks and returns nil when none remain.
func NewMulti(sinks ...statsd.Sink) statsd.Sink {
	var out Multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

func (m Multi) Count(name string, value int64, tags map[string]string) {
	for _, s := range m {
		s.Count(name, value, tags)
	}
}

func (m Multi) Gauge(name string, value float64, tags map[string]string) {
	for _, s := range m {
		s.Gauge(name, value, tags)
	}
}

func (m Multi) Timing(name string, value time.Duration, tags map[string]string) {
	for _, s := range m {
		s.Timing(name, value, tags)
	}
}
