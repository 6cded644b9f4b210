// Package model defines the core data types shared by the simulation store, queue and HTTP surface.
package model

import (
	"fmt"
	"strings"
	"time"
)

// SimulationStatus represents the lifecycle state of a simulation.
type SimulationStatus string

const (
	// SimulationStatusSubmitted indicates the row exists and a message has been (or will be) enqueued.
	SimulationStatusSubmitted SimulationStatus = "Submitted"
	// SimulationStatusRunning indicates a worker has claimed the simulation.
	SimulationStatusRunning SimulationStatus = "Running"
	// SimulationStatusDone indicates the result has been persisted.
	SimulationStatusDone SimulationStatus = "Done"
)

// Valid returns true if the status is one of the three lifecycle states.
func (s SimulationStatus) Valid() bool {
	return s == SimulationStatusSubmitted || s == SimulationStatusRunning || s == SimulationStatusDone
}

func (s SimulationStatus) rank() int {
	switch s {
	case SimulationStatusSubmitted:
		return 1
	case SimulationStatusRunning:
		return 2
	case SimulationStatusDone:
		return 3
	default:
		return 0
	}
}

// CanTransitionTo reports whether moving from s to next keeps status monotonic
// over Submitted < Running < Done. Re-writing Done is allowed.
func (s SimulationStatus) CanTransitionTo(next SimulationStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

// Mode is the spatial dimensionality of a simulation.
type Mode string

const (
	// Mode2D is a planar simulation.
	Mode2D Mode = "2D"
	// Mode3D is a volumetric simulation and requires a z dimension.
	Mode3D Mode = "3D"
)

// Valid returns true for 2D and 3D.
func (m Mode) Valid() bool {
	return m == Mode2D || m == Mode3D
}

const (
	// DefaultUntitled is the base title used when a batch request carries no title.
	DefaultUntitled = "Untitled Simulation"

	// MinBatchCount and MaxBatchCount bound a single batch-create request.
	MinBatchCount = 1
	MaxBatchCount = 100
)

// Simulation is a persisted simulation job.
type Simulation struct {
	ID         int64             `json:"id"`
	UserID     string            `json:"userId"`
	BatchID    string            `json:"batchId"`
	Title      string            `json:"title"`
	Status     SimulationStatus  `json:"status"`
	Parameters SimulationInput   `json:"parameters"`
	Result     *SimulationResult `json:"result,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// CreatedSimulation is the per-row outcome of a batch create.
type CreatedSimulation struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// BatchResult is returned by a committed batch create.
type BatchResult struct {
	BatchID     string              `json:"batchId"`
	Simulations []CreatedSimulation `json:"simulations"`
}

// CreateBatchRequest is the producer input: one parameter template and a count.
type CreateBatchRequest struct {
	SimulationData SimulationInput `json:"simulationData"`
	Count          int             `json:"count"`
}

// Validate checks the batch count and the parameter template.
func (r *CreateBatchRequest) Validate() error {
	if r.Count < MinBatchCount || r.Count > MaxBatchCount {
		return &FieldError{
			Field:   "count",
			Message: fmt.Sprintf("count must be between %d and %d", MinBatchCount, MaxBatchCount),
		}
	}
	return r.SimulationData.Validate()
}

// BatchTitle derives the per-instance title for item index (zero based) of a batch of count.
func BatchTitle(base string, index, count int) string {
	title := strings.TrimSpace(base)
	if title == "" {
		title = DefaultUntitled
	}
	if count > 1 {
		return fmt.Sprintf("%s #%d", title, index+1)
	}
	return title
}

// SimulationResult is the derived metrics payload written when a simulation completes.
type SimulationResult struct {
	InitialTumorCount        int       `json:"initialTumorCount"`
	FinalTumorCount          int64     `json:"finalTumorCount"`
	TumorGrowthRate          float64   `json:"tumorGrowthRate"`
	ImmuneCellsDeployed      int       `json:"immuneCellsDeployed"`
	TumorCellsKilledByImmune int64     `json:"tumorCellsKilledByImmune"`
	ImmuneEfficiency         float64   `json:"immuneEfficiency"`
	StemCellsActivated       int64     `json:"stemCellsActivated"`
	FibroblastActivity       float64   `json:"fibroblastActivity"`
	DrugCarriersUsed         int       `json:"drugCarriersUsed"`
	DrugEffectiveness        float64   `json:"drugEffectiveness"`
	SurvivalRate             float64   `json:"survivalRate"`
	SimulationDuration       float64   `json:"simulationDuration"`
	Mode                     Mode      `json:"mode"`
	Substrate                string    `json:"substrate"`
	Timestamp                time.Time `json:"timestamp"`
}

// SimulationStats counts simulations per status.
type SimulationStats struct {
	Submitted int64 `json:"submitted"`
	Running   int64 `json:"running"`
	Done      int64 `json:"done"`
}

// StuckSimulation is a simulation that has stayed in a non-terminal status for too long.
type StuckSimulation struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Status    SimulationStatus `json:"status"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// SimulationListOptions scopes a listing to one owner.
type SimulationListOptions struct {
	UserID string
	Limit  int
	Offset int
}
