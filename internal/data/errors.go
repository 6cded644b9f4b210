package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrSimulationNotFound is returned when a simulation does not exist or belongs to another owner.
	ErrSimulationNotFound = errors.New("simulation not found")
	// ErrSimulationNotSubmitted is returned when requeueing a simulation that has already been claimed.
	ErrSimulationNotSubmitted = errors.New("simulation is not in Submitted status")
	// ErrOutboxEntryNotFound is returned when an outbox entry does not exist.
	ErrOutboxEntryNotFound = errors.New("outbox entry not found")
)
