// Package testutil provides testing utilities and helpers for the simulation queue.
package testutil

import (
	"github.com/google/uuid"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/domain/model"
)

// SimulationInputBuilder provides a fluent interface for building SimulationInput values for testing.
type SimulationInputBuilder struct {
	in model.SimulationInput
}

// NewSimulationInput creates a builder with a title and a tumor count, the minimum a batch accepts.
func NewSimulationInput() *SimulationInputBuilder {
	return &SimulationInputBuilder{
		in: model.SimulationInput{
			Title:      StringPtr("Test Simulation"),
			TumorCount: IntPtr(100),
		},
	}
}

// WithTitle sets the title.
func (b *SimulationInputBuilder) WithTitle(title string) *SimulationInputBuilder {
	b.in.Title = &title
	return b
}

// WithMode sets the mode.
func (b *SimulationInputBuilder) WithMode(mode model.Mode) *SimulationInputBuilder {
	b.in.Mode = &mode
	return b
}

// WithZ sets the z dimension.
func (b *SimulationInputBuilder) WithZ(z int) *SimulationInputBuilder {
	b.in.Z = &z
	return b
}

// WithDuration sets the duration.
func (b *SimulationInputBuilder) WithDuration(d float64) *SimulationInputBuilder {
	b.in.Duration = &d
	return b
}

// WithTumorCount sets the tumor count.
func (b *SimulationInputBuilder) WithTumorCount(n int) *SimulationInputBuilder {
	b.in.TumorCount = &n
	return b
}

// WithImmune sets the immune count and movement.
func (b *SimulationInputBuilder) WithImmune(n int, movement string) *SimulationInputBuilder {
	b.in.ImmuneCount = &n
	b.in.ImmuneMovement = &movement
	return b
}

// Build returns a copy of the constructed input.
func (b *SimulationInputBuilder) Build() model.SimulationInput {
	return b.in
}

// BatchParams builds CreateBatchParams for n items derived from in, titled the way the producer titles them.
func BatchParams(owner string, in model.SimulationInput, n int) core.CreateBatchParams {
	base := ""
	if in.Title != nil {
		base = *in.Title
	}
	params := in.Resolve()
	items := make([]core.NewSimulation, n)
	for i := range items {
		items[i] = core.NewSimulation{
			Title:  model.BatchTitle(base, i, n),
			Input:  in,
			Params: params,
		}
	}
	return core.CreateBatchParams{
		BatchID: uuid.NewString(),
		UserID:  owner,
		Queue:   "simulation_jobs",
		Items:   items,
	}
}
