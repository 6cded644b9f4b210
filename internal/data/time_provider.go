package data

import (
	"sync"
	"time"
)

// TimeProvider is the repositories' clock. Timestamps written by the
// repositories come from here rather than from Postgres now().
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider reads the system clock in UTC.
type RealTimeProvider struct{}

func (*RealTimeProvider) Now() time.Time { return time.Now().UTC() }

// FixedTimeProvider is a manually advanced clock for tests.
type FixedTimeProvider struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{now: t.UTC()}
}

func (f *FixedTimeProvider) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AddTime moves the clock forward by d.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
