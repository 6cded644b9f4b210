// Package core defines the ports between the simulation services and their storage, cache and broker adapters.
package core

import (
	"context"
	"time"

	"github.com/target/simqueue/internal/domain/model"
)

// This file contains repository and transport interface definitions (ports in hexagonal architecture).
// Services depend on these interfaces; internal/data and internal/adapters provide implementations.

// NewSimulation is one row of a batch insert.
type NewSimulation struct {
	Title  string
	Input  model.SimulationInput
	Params model.SimulationParams
}

// CreateBatchParams groups the rows written by SimulationRepository.CreateBatch.
type CreateBatchParams struct {
	BatchID string
	UserID  string
	Queue   string
	Items   []NewSimulation
}

// SimulationRepository defines the interface for simulation data operations.
type SimulationRepository interface {
	// CreateBatch inserts every item and its outbox message in a single transaction.
	CreateBatch(ctx context.Context, params CreateBatchParams) ([]model.CreatedSimulation, error)
	// Claim moves a Submitted simulation to Running. It returns false when the row was not Submitted.
	Claim(ctx context.Context, id int64) (bool, error)
	// Complete writes Done and the result regardless of the current status.
	Complete(ctx context.Context, id int64, result *model.SimulationResult) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.Simulation, error)
	GetForOwner(ctx context.Context, id int64, owner string) (*model.Simulation, error)
	ListByOwner(ctx context.Context, opts model.SimulationListOptions) ([]*model.Simulation, error)
	DeleteForOwner(ctx context.Context, id int64, owner string) error
	Stats(ctx context.Context, owner string) (*model.SimulationStats, error)
}

// PublishFunc delivers one outbox entry to the broker. A nil error means the broker confirmed it.
type PublishFunc func(ctx context.Context, entry model.OutboxEntry) error

// OutboxRepository defines the interface for the transactional outbox.
type OutboxRepository interface {
	// DrainBatch locks up to limit unpublished entries, publishes them in id order and records the outcome.
	DrainBatch(ctx context.Context, limit int, publish PublishFunc) (model.DrainResult, error)
	// WaitForNotification blocks until a producer signals new outbox entries or ctx ends.
	WaitForNotification(ctx context.Context) error
	PendingStats(ctx context.Context, failingLimit int) (*model.OutboxStats, error)
	// Requeue writes a fresh outbox entry for a Submitted simulation.
	Requeue(ctx context.Context, simulationID int64) (*model.OutboxEntry, error)
}

// StaleQuery selects simulations that have not left status within MaxAge.
type StaleQuery struct {
	Status model.SimulationStatus
	MaxAge time.Duration
	Limit  int
}

// ReaperRepository defines the maintenance operations used by the reaper.
type ReaperRepository interface {
	DeletePublishedOutbox(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error)
	CountStale(ctx context.Context, q StaleQuery) (int64, error)
	ListStale(ctx context.Context, q StaleQuery) ([]model.StuckSimulation, error)
	PendingStats(ctx context.Context, failingLimit int) (*model.OutboxStats, error)
}

// OutboundMessage is a persistent message bound for a named queue.
type OutboundMessage struct {
	Queue     string
	MessageID string
	Body      []byte
}

// MessagePublisher publishes messages and waits for broker confirmation.
type MessagePublisher interface {
	Publish(ctx context.Context, msg OutboundMessage) error
}

// Delivery is one message received from the queue. Exactly one of Ack or Reject should be called,
// or neither when the consumer is shutting down and the message must return to the queue.
type Delivery interface {
	Body() []byte
	MessageID() string
	Redelivered() bool
	Ack() error
	Reject(requeue bool) error
}

// DeliveryHandler processes and settles one delivery. Consumers log a returned error and keep going.
type DeliveryHandler func(ctx context.Context, d Delivery) error

// MessageConsumer delivers messages from a queue one at a time until ctx is done.
type MessageConsumer interface {
	Consume(ctx context.Context, queue string, handle DeliveryHandler) error
}

// CacheRepository defines the interface for caching operations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	// Returns true if the key was set, false if it already existed.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}
