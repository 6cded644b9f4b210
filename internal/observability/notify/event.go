// Package notify defines the payload and sink contract for dropped-simulation notifications.
package notify

import (
	"context"
	"strconv"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Stage names the worker step at which a simulation message was dropped.
type Stage string

const (
	StageDecode   Stage = "decode"
	StageClaim    Stage = "claim"
	StageExecute  Stage = "execute"
	StageComplete Stage = "complete"
	StageAck      Stage = "ack"
)

// SimulationFailurePayload captures the data emitted when a simulation message is dropped.
type SimulationFailurePayload struct {
	SimulationID int64
	MessageID    string
	UserID       string
	Title        string
	Stage        Stage
	Redelivered  bool
	Error        string
	ErrorClass   string
	Severity     string
	OccurredAt   time.Time
	Metadata     map[string]string
}

// SimulationRef returns the simulation id as text, or "" when the message could not be decoded.
func (p SimulationFailurePayload) SimulationRef() string {
	if p.SimulationID <= 0 {
		return ""
	}
	return strconv.FormatInt(p.SimulationID, 10)
}

// Sink describes a destination capable of consuming failure notifications.
type Sink interface {
	SendSimulationFailure(ctx context.Context, payload SimulationFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload SimulationFailurePayload) error

// SendSimulationFailure implements the Sink interface.
func (f SinkFunc) SendSimulationFailure(ctx context.Context, payload SimulationFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
