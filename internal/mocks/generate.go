// Package mocks provides mock implementations of the simqueue ports for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the repository and broker
// interfaces declared in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockSimulationRepository(ctrl)
//	mockRepo.EXPECT().Claim(gomock.Any(), int64(1)).Return(true, nil)
package mocks

// SimulationRepository: CreateBatch, Claim, Complete, GetByID, GetForOwner, ListByOwner, DeleteForOwner, Stats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=simulation_repository_mock.go github.com/target/simqueue/internal/core SimulationRepository

// OutboxRepository: DrainBatch, WaitForNotification, PendingStats, Requeue
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=outbox_repository_mock.go github.com/target/simqueue/internal/core OutboxRepository

// ReaperRepository: DeletePublishedOutbox, CountStale, ListStale, PendingStats
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/target/simqueue/internal/core ReaperRepository

// CacheRepository: Set, Get, Delete, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/simqueue/internal/core CacheRepository

// MessagePublisher: Publish
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=message_publisher_mock.go github.com/target/simqueue/internal/core MessagePublisher
