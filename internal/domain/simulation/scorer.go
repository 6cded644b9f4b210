// Package simulation holds the scoring strategy executed by workers for each queued simulation.
package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/target/simqueue/internal/domain/model"
)

// Scorer turns a resolved parameter set into a result payload.
type Scorer interface {
	Score(ctx context.Context, params model.SimulationParams) (*model.SimulationResult, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, params model.SimulationParams) (*model.SimulationResult, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, params model.SimulationParams) (*model.SimulationResult, error) {
	return f(ctx, params)
}

// RandomSource yields uniform values in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() } //nolint:gosec // placeholder model, not security sensitive

const (
	stepsPerDurationUnit = 10
	immuneKillScale      = 0.01
	drugEffectScale      = 0.005
	stemActivation       = 0.3
	volumeFactor3D       = 1.5
	survivalHeadroom     = 10
	// maxCells keeps the population finite so integer conversions stay defined.
	maxCells = 1e15
)

// TumorModel is the placeholder tumour growth model. It is deliberately simple:
// a fixed number of steps proportional to duration, multiplicative growth with a
// random factor, and two secondary effects that remove cells.
type TumorModel struct {
	rng RandomSource
	now func() time.Time
}

// TumorModelOptions configures a TumorModel.
type TumorModelOptions struct {
	Random RandomSource     // Optional: defaults to math/rand/v2 global source
	Now    func() time.Time // Optional: defaults to time.Now
}

// NewTumorModel constructs the default scoring strategy.
func NewTumorModel(opts TumorModelOptions) *TumorModel {
	m := &TumorModel{rng: opts.Random, now: opts.Now}
	if m.rng == nil {
		m.rng = globalSource{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Steps returns the number of discrete time steps simulated for a duration.
func Steps(duration float64) int {
	steps := int(math.Round(duration * stepsPerDurationUnit))
	if steps < 1 {
		return 1
	}
	return steps
}

func (m *TumorModel) factor() float64 {
	return 0.9 + m.rng.Float64()*0.2
}

// Score runs the model. It checks ctx between steps so long simulations can be abandoned on shutdown.
func (m *TumorModel) Score(ctx context.Context, p model.SimulationParams) (*model.SimulationResult, error) {
	steps := Steps(p.Duration)
	growth := p.DivisionRate - p.DecayRate
	initial := float64(max(p.TumorCount, 0))

	tumor := initial
	var killed, drugTotal float64

	for i := range steps {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		tumor = clampCells(tumor * (1 + growth/float64(steps)) * m.factor())

		if p.ImmuneCount > 0 {
			effect := (float64(p.ImmuneCount) / 1000) * immuneKillScale * m.factor()
			k := math.Floor(tumor * effect)
			killed += k
			tumor = clampCells(tumor - k)
		}

		if p.DrugCarrierCount > 0 {
			effect := (float64(p.DrugCarrierCount) / 100) * drugEffectScale * m.factor()
			tumor = clampCells(tumor * (1 - effect))
			drugTotal += effect
		}
	}

	final := math.Max(0, math.Floor(tumor))

	survival := 1.0
	if initial > 0 {
		survival = clamp01(1 - final/(initial*survivalHeadroom))
	}

	var immuneEff float64
	if p.ImmuneCount > 0 && initial+killed > 0 {
		immuneEff = clamp01(killed / (initial + killed))
	}

	var growthRate float64
	if initial > 0 {
		growthRate = (final - initial) / initial * 100
	}

	volume := 1.0
	if p.Mode == model.Mode3D {
		volume = volumeFactor3D
	}

	var fibroblast float64
	if p.FibroblastCount > 0 {
		fibroblast = round2(m.rng.Float64()*50 + 25)
	}

	return &model.SimulationResult{
		InitialTumorCount:        p.TumorCount,
		FinalTumorCount:          int64(math.Floor(final * volume)),
		TumorGrowthRate:          round2(growthRate),
		ImmuneCellsDeployed:      p.ImmuneCount,
		TumorCellsKilledByImmune: int64(killed),
		ImmuneEfficiency:         round2(immuneEff * 100),
		StemCellsActivated:       int64(math.Floor(float64(max(p.StemCount, 0)) * stemActivation * m.factor())),
		FibroblastActivity:       fibroblast,
		DrugCarriersUsed:         p.DrugCarrierCount,
		DrugEffectiveness:        round2(drugTotal * 100 / float64(steps)),
		SurvivalRate:             round2(survival * 100),
		SimulationDuration:       p.Duration,
		Mode:                     p.Mode,
		Substrate:                p.Substrate,
		Timestamp:                m.now().UTC(),
	}, nil
}

func clampCells(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return math.Min(v, maxCells)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
