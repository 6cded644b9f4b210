package data

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/internal/domain/model"
	"github.com/target/simqueue/internal/testutil"
)

func TestOutboxRepo_DrainBatchPublishesInOrder(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		sims := NewSimulationRepo(db, SimulationRepoConfig{})
		outbox := NewOutboxRepo(db, OutboxRepoConfig{})
		ctx := context.Background()

		created, err := sims.CreateBatch(ctx, testutil.BatchParams("user-1", testutil.NewSimulationInput().Build(), 3))
		require.NoError(t, err)

		var published []int64
		res, err := outbox.DrainBatch(ctx, 10, func(_ context.Context, e model.OutboxEntry) error {
			published = append(published, e.SimulationID)
			assert.Equal(t, "simulation_jobs", e.Queue)
			assert.NotEmpty(t, e.MessageID)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, model.DrainResult{Claimed: 3, Published: 3}, res)
		assert.Equal(t, []int64{created[0].ID, created[1].ID, created[2].ID}, published)

		// Nothing left to publish.
		res, err = outbox.DrainBatch(ctx, 10, func(context.Context, model.OutboxEntry) error {
			t.Fatal("no entries should remain")
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, res.Claimed)

		stats, err := outbox.PendingStats(ctx, 5)
		require.NoError(t, err)
		assert.Zero(t, stats.Pending)
		assert.Nil(t, stats.OldestPending)
	})
}

func TestOutboxRepo_DrainBatchStopsAtFirstFailure(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		sims := NewSimulationRepo(db, SimulationRepoConfig{})
		outbox := NewOutboxRepo(db, OutboxRepoConfig{})
		ctx := context.Background()

		_, err := sims.CreateBatch(ctx, testutil.BatchParams("user-1", testutil.NewSimulationInput().Build(), 3))
		require.NoError(t, err)

		calls := 0
		res, err := outbox.DrainBatch(ctx, 10, func(context.Context, model.OutboxEntry) error {
			calls++
			if calls == 2 {
				return errors.New("broker unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, model.DrainResult{Claimed: 3, Published: 1, Failed: 1}, res)
		assert.Equal(t, 2, calls)

		stats, err := outbox.PendingStats(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Pending)
		require.NotNil(t, stats.OldestPending)
		require.Len(t, stats.Failing, 1)
		assert.Equal(t, 1, stats.Failing[0].Attempts)
		require.NotNil(t, stats.Failing[0].LastError)
		assert.Contains(t, *stats.Failing[0].LastError, "broker unavailable")
	})
}

func TestOutboxRepo_RequeueOnlySubmitted(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		sims := NewSimulationRepo(db, SimulationRepoConfig{})
		outbox := NewOutboxRepo(db, OutboxRepoConfig{})
		ctx := context.Background()

		in := testutil.NewSimulationInput().WithTitle("Again").Build()
		created, err := sims.CreateBatch(ctx, testutil.BatchParams("user-1", in, 2))
		require.NoError(t, err)

		entry, err := outbox.Requeue(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, created[0].ID, entry.SimulationID)
		assert.Nil(t, entry.PublishedAt)

		msg, err := model.DecodeSimulationMessage(entry.Payload)
		require.NoError(t, err)
		assert.Equal(t, "Again #1", msg.Title)
		assert.Equal(t, model.Mode2D, msg.Mode)

		ok, err := sims.Claim(ctx, created[1].ID)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = outbox.Requeue(ctx, created[1].ID)
		require.ErrorIs(t, err, ErrSimulationNotSubmitted)

		_, err = outbox.Requeue(ctx, created[1].ID+1000)
		require.ErrorIs(t, err, ErrSimulationNotFound)
	})
}

func TestOutboxRepo_DeletePublishedBefore(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(time.Now())
		sims := NewSimulationRepo(db, SimulationRepoConfig{TimeProvider: clock})
		outbox := NewOutboxRepo(db, OutboxRepoConfig{TimeProvider: clock})
		ctx := context.Background()

		_, err := sims.CreateBatch(ctx, testutil.BatchParams("user-1", testutil.NewSimulationInput().Build(), 3))
		require.NoError(t, err)

		published := 0
		_, err = outbox.DrainBatch(ctx, 2, func(context.Context, model.OutboxEntry) error {
			published++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 2, published)

		clock.AddTime(48 * time.Hour)

		deleted, err := outbox.DeletePublishedBefore(ctx, 24*time.Hour, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted, "batch size bounds each pass")

		deleted, err = outbox.DeletePublishedBefore(ctx, 24*time.Hour, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		assert.Equal(t, 1, countRows(t, db, "simulation_outbox"), "unpublished entries are never pruned")

		_, err = outbox.DeletePublishedBefore(ctx, 0, 100)
		assert.Error(t, err)
	})
}

func TestOutboxRepo_WaitForNotification(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		sims := NewSimulationRepo(db, SimulationRepoConfig{})
		outbox := NewOutboxRepo(db, OutboxRepoConfig{})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- outbox.WaitForNotification(ctx) }()

		// Keep producing until the listener is attached and observes a commit.
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case err := <-done:
				require.NoError(t, err)
				return
			case <-ticker.C:
				_, err := sims.CreateBatch(ctx, testutil.BatchParams("user-1", testutil.NewSimulationInput().Build(), 1))
				require.NoError(t, err)
			case <-ctx.Done():
				t.Fatal("timed out waiting for outbox notification")
			}
		}
	})
}

func TestOutboxRepo_WaitForNotificationUnlistensOnCancel(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		// One pooled connection, so the follow-up query lands on the session that listened.
		db.SetMaxOpenConns(1)

		var logs bytes.Buffer
		outbox := NewOutboxRepo(db, OutboxRepoConfig{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := outbox.WaitForNotification(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		var listening int
		require.NoError(t, db.QueryRowContext(context.Background(),
			`SELECT count(*) FROM pg_listening_channels()`).Scan(&listening))
		assert.Zero(t, listening)
		assert.NotContains(t, logs.String(), "unlisten outbox channel")
	})
}
