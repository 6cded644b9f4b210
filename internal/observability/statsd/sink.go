// Package statsd emits DogStatsD-style metrics over UDP and defines the Sink
// interface every metrics backend in the service implements.
package statsd

import "time"

// Sink receives counters, gauges and timings. Implementations must be safe
// for concurrent use and must never block the caller on I/O failure.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Nop discards every metric.
type Nop struct{}

func (Nop) Count(string, int64, map[string]string)          {}
func (Nop) Gauge(string, float64, map[string]string)        {}
func (Nop) Timing(string, time.Duration, map[string]string) {}
