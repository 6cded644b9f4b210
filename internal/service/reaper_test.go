package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/domain/model"
	"github.com/target/simqueue/internal/observability/metrics"
)

// mockReaperRepo is a simple mock implementation for testing.
type mockReaperRepo struct {
	mu sync.Mutex

	deleteCalled int
	deleteCount  int64
	deleteError  error
	deleteArgs   []time.Duration

	staleCounts map[model.SimulationStatus]int64
	staleError  error
	staleCalls  []core.StaleQuery
	listCalls   int

	stats      *model.OutboxStats
	statsError error
}

func (m *mockReaperRepo) DeletePublishedOutbox(_ context.Context, olderThan time.Duration, _ int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalled++
	m.deleteArgs = append(m.deleteArgs, olderThan)
	if m.deleteError != nil {
		return 0, m.deleteError
	}
	// Return count on first call, then 0 to simulate batch exhaustion
	if m.deleteCalled == 1 {
		return m.deleteCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) CountStale(_ context.Context, q core.StaleQuery) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleCalls = append(m.staleCalls, q)
	if m.staleError != nil {
		return 0, m.staleError
	}
	return m.staleCounts[q.Status], nil
}

func (m *mockReaperRepo) ListStale(_ context.Context, q core.StaleQuery) ([]model.StuckSimulation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return []model.StuckSimulation{{ID: 1, Status: q.Status}}, nil
}

func (m *mockReaperRepo) PendingStats(context.Context, int) (*model.OutboxStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsError != nil {
		return nil, m.statsError
	}
	if m.stats == nil {
		return &model.OutboxStats{}, nil
	}
	return m.stats, nil
}

func (m *mockReaperRepo) deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCalled
}

type recordedGauge struct {
	name  string
	value float64
	tags  map[string]string
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int64
	gauges []recordedGauge
}

func (r *recordingMetrics) Count(name string, value int64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int64{}
	}
	r.counts[name] += value
}

func (r *recordingMetrics) Gauge(name string, value float64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges = append(r.gauges, recordedGauge{name: name, value: value, tags: tags})
}

func (r *recordingMetrics) Timing(string, time.Duration, map[string]string) {}

func (r *recordingMetrics) gauge(name, status string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.gauges {
		if g.name == name && g.tags["status"] == status {
			return g.value, true
		}
	}
	return 0, false
}

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:        5 * time.Minute,
		OutboxRetention: 72 * time.Hour,
		RunningMaxAge:   time.Hour,
		SubmittedMaxAge: 30 * time.Minute,
		BatchSize:       1000,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   &mockReaperRepo{},
			Config: testReaperConfig(),
			Logger: slog.Default(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperRepository is required")
	})
}

func TestReaperService_RunOnce(t *testing.T) {
	t.Run("runs every step and reports", func(t *testing.T) {
		oldest := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
		repo := &mockReaperRepo{
			deleteCount: 12,
			staleCounts: map[model.SimulationStatus]int64{
				model.SimulationStatusRunning:   3,
				model.SimulationStatusSubmitted: 0,
			},
			stats: &model.OutboxStats{Pending: 4, OldestPending: &oldest},
		}
		sink := &recordingMetrics{}
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:    repo,
			Config:  testReaperConfig(),
			Logger:  slog.Default(),
			Metrics: sink,
			Now:     func() time.Time { return oldest.Add(time.Hour) },
		})
		require.NoError(t, err)

		require.NoError(t, svc.RunOnce(context.Background()))

		// Called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.deleteCalled)
		assert.Equal(t, 72*time.Hour, repo.deleteArgs[0])

		require.Len(t, repo.staleCalls, 2)
		assert.Equal(t, model.SimulationStatusRunning, repo.staleCalls[0].Status)
		assert.Equal(t, time.Hour, repo.staleCalls[0].MaxAge)
		assert.Equal(t, model.SimulationStatusSubmitted, repo.staleCalls[1].Status)
		assert.Equal(t, 30*time.Minute, repo.staleCalls[1].MaxAge)
		assert.Equal(t, 1, repo.listCalls, "a sample is only listed for non-zero counts")

		v, ok := sink.gauge(metrics.SimulationStuck, "Running")
		require.True(t, ok)
		assert.InDelta(t, 3, v, 0)
		v, ok = sink.gauge(metrics.OutboxOldestAge, "")
		require.True(t, ok)
		assert.InDelta(t, 3600, v, 0)
		assert.Equal(t, int64(12), sink.counts[metrics.ReaperDeleted])
	})

	t.Run("continues on partial errors", func(t *testing.T) {
		repo := &mockReaperRepo{
			deleteError: errors.New("delete failed"),
			stats:       &model.OutboxStats{},
		}
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})
		require.NoError(t, err)

		err = svc.RunOnce(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "prune published outbox")
		assert.Equal(t, 1, repo.deleteCalled)
		assert.Len(t, repo.staleCalls, 2)
	})

	t.Run("context cancellation collapses to canceled", func(t *testing.T) {
		repo := &mockReaperRepo{
			deleteError: context.Canceled,
			staleError:  context.Canceled,
			statsError:  context.Canceled,
		}
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: testReaperConfig()})
		require.NoError(t, err)

		err = svc.RunOnce(context.Background())
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, context.Canceled, err)
	})
}

func TestReaperService_NeverChangesStatus(t *testing.T) {
	// ReaperRepository exposes no status mutation; the reaper only deletes published outbox rows.
	var repo core.ReaperRepository = &mockReaperRepo{}
	_, isSimRepo := repo.(core.SimulationRepository)
	assert.False(t, isSimRepo)
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		repo := &mockReaperRepo{}
		cfg := testReaperConfig()
		cfg.Interval = 100 * time.Millisecond
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- svc.Run(ctx)
		}()

		require.Eventually(t, func() bool { return repo.deletes() >= 1 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}
	})

	t.Run("continues running despite cleanup errors", func(t *testing.T) {
		repo := &mockReaperRepo{deleteError: errors.New("test error")}
		cfg := testReaperConfig()
		cfg.Interval = 50 * time.Millisecond
		svc, err := NewReaperService(ReaperServiceOptions{Repo: repo, Config: cfg})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err = svc.Run(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.GreaterOrEqual(t, repo.deletes(), 2)
	})

	t.Run("rejects zero interval", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{Repo: &mockReaperRepo{}})
		require.NoError(t, err)
		require.Error(t, svc.Run(context.Background()))
	})
}
