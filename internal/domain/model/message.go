package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SimulationMessage is the JSON body published to the simulation queue. The
// parameter fields are flattened next to the identity fields.
type SimulationMessage struct {
	SimulationID int64  `json:"simulationId"`
	UserID       string `json:"userId"`
	Title        string `json:"title"`
	SimulationParams
}

// NewSimulationMessage builds the queue message for a freshly inserted row.
func NewSimulationMessage(id int64, owner, title string, params SimulationParams) SimulationMessage {
	return SimulationMessage{
		SimulationID:     id,
		UserID:           owner,
		Title:            title,
		SimulationParams: params,
	}
}

// ErrInvalidMessage is wrapped by DecodeSimulationMessage for payloads that parse but cannot be executed.
var ErrInvalidMessage = errors.New("invalid simulation message")

// DecodeSimulationMessage parses a queue payload and checks the fields the worker relies on.
func DecodeSimulationMessage(body []byte) (*SimulationMessage, error) {
	var msg SimulationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode simulation message: %w", err)
	}
	switch {
	case msg.SimulationID <= 0:
		return nil, fmt.Errorf("%w: simulationId must be positive", ErrInvalidMessage)
	case !msg.Mode.Valid():
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidMessage, msg.Mode)
	case msg.Duration < 0:
		return nil, fmt.Errorf("%w: duration must be non-negative", ErrInvalidMessage)
	case msg.Duration > maxDuration:
		return nil, fmt.Errorf("%w: duration must not exceed %d", ErrInvalidMessage, maxDuration)
	case msg.TumorCount < 0 || msg.ImmuneCount < 0 || msg.StemCount < 0 ||
		msg.FibroblastCount < 0 || msg.DrugCarrierCount < 0:
		return nil, fmt.Errorf("%w: counts must be non-negative", ErrInvalidMessage)
	}
	return &msg, nil
}

// Encode marshals the message for publishing.
func (m SimulationMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// OutboxEntry is a queue message persisted in the same transaction as its simulation row.
type OutboxEntry struct {
	ID           int64           `json:"id"`
	SimulationID int64           `json:"simulationId"`
	Queue        string          `json:"queue"`
	MessageID    string          `json:"messageId"`
	Payload      json.RawMessage `json:"payload"`
	Attempts     int             `json:"attempts"`
	LastError    *string         `json:"lastError,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	PublishedAt  *time.Time      `json:"publishedAt,omitempty"`
}

// OutboxStats summarises the outbox backlog.
type OutboxStats struct {
	Pending       int64         `json:"pending"`
	OldestPending *time.Time    `json:"oldestPending,omitempty"`
	Failing       []OutboxEntry `json:"failing,omitempty"`
}

// DrainResult reports one relay pass over the outbox.
type DrainResult struct {
	Claimed   int
	Published int
	Failed    int
}
