package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/target/simqueue/internal/domain/model"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Scorer    Scorer    // Required
	TimeScale float64   // Seconds of wall clock per unit of duration; zero disables pacing
	Sleep     SleepFunc // Optional: defaults to Sleep
}

// Executor runs one simulation: it waits in proportion to the declared duration,
// then invokes the scoring strategy.
type Executor struct {
	scorer Scorer
	scale  float64
	sleep  SleepFunc
}

// NewExecutor constructs an Executor.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	if opts.Scorer == nil {
		return nil, errors.New("Scorer is required")
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	scale := opts.TimeScale
	if scale < 0 {
		scale = 0
	}
	return &Executor{scorer: opts.Scorer, scale: scale, sleep: sleep}, nil
}

// Delay returns the pacing delay for a declared duration.
func (e *Executor) Delay(duration float64) time.Duration {
	if duration <= 0 || e.scale == 0 {
		return 0
	}
	return time.Duration(duration * e.scale * float64(time.Second))
}

// Execute paces and scores params.
func (e *Executor) Execute(ctx context.Context, params model.SimulationParams) (*model.SimulationResult, error) {
	if err := e.sleep(ctx, e.Delay(params.Duration)); err != nil {
		return nil, err
	}
	return e.scorer.Score(ctx, params)
}
