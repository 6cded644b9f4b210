package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the simulation queue consumer.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeRelay runs the outbox relay that publishes pending messages.
	ServiceModeRelay ServiceMode = "relay"
	// ServiceModeReaper runs periodic outbox pruning and stuck-job reporting.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
		ServiceModeRelay,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP,
			ServiceModeWorker,
			ServiceModeRelay,
			ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, relay, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains simulation worker configuration.
type WorkerConfig struct {
	// Concurrency is the number of consumers per process. Each consumer owns one
	// broker channel with prefetch 1.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"1"`

	// TimeScale multiplies a simulation's declared duration to get the execution delay.
	// 1.0 reproduces one second per unit of duration; 0 runs without delay.
	TimeScale float64 `env:"WORKER_TIME_SCALE" envDefault:"1.0"`

	// ConsumerTag prefixes the broker consumer tag.
	ConsumerTag string `env:"WORKER_CONSUMER_TAG" envDefault:"simqueue-worker"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Concurrency > 64 {
		w.Concurrency = 64
	}
	if w.TimeScale < 0 {
		w.TimeScale = 0
	}
	if strings.TrimSpace(w.ConsumerTag) == "" {
		w.ConsumerTag = "simqueue-worker"
	}
}

// RelayConfig contains outbox relay configuration.
type RelayConfig struct {
	// BatchSize is the maximum number of outbox rows claimed per drain.
	BatchSize int `env:"RELAY_BATCH_SIZE" envDefault:"100"`

	// PollInterval is the fallback wake-up when no notification arrives.
	PollInterval time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"5s"`

	// PublishRate caps messages published per second. Zero disables the limit.
	PublishRate float64 `env:"RELAY_PUBLISH_RATE" envDefault:"0"`

	// PublishBurst is the limiter burst when PublishRate is set.
	PublishBurst int `env:"RELAY_PUBLISH_BURST" envDefault:"50"`
}

// Sanitize applies guardrails to relay configuration values.
func (r *RelayConfig) Sanitize() {
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 1000 {
		r.BatchSize = 1000
	}
	if r.PollInterval < 100*time.Millisecond {
		r.PollInterval = 100 * time.Millisecond
	}
	if r.PublishRate < 0 {
		r.PublishRate = 0
	}
	if r.PublishBurst < 1 {
		r.PublishBurst = 1
	}
}

// ReaperConfig contains reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// OutboxRetention is how long published outbox rows are kept before deletion.
	OutboxRetention time.Duration `env:"REAPER_OUTBOX_RETENTION" envDefault:"72h"`

	// RunningMaxAge is the age after which a Running simulation is reported as stuck.
	RunningMaxAge time.Duration `env:"REAPER_RUNNING_MAX_AGE" envDefault:"1h"`

	// SubmittedMaxAge is the age after which a Submitted simulation is reported as stuck.
	SubmittedMaxAge time.Duration `env:"REAPER_SUBMITTED_MAX_AGE" envDefault:"1h"`

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.OutboxRetention < 1*time.Hour {
		r.OutboxRetention = 1 * time.Hour
	}
	if r.RunningMaxAge < 5*time.Minute {
		r.RunningMaxAge = 5 * time.Minute
	}
	if r.SubmittedMaxAge < 5*time.Minute {
		r.SubmittedMaxAge = 5 * time.Minute
	}

	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
