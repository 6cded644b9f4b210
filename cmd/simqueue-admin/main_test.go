package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/data"
	"github.com/target/simqueue/internal/domain/model"
	"github.com/target/simqueue/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	for _, name := range []string{"migrate", "outbox-status", "outbox-requeue", "stuck"} {
		assert.Contains(t, buf.String(), name)
	}
}

func TestParseStuckFlags(t *testing.T) {
	opts, err := parseStuckFlags([]string{"-status", "submitted", "-older-than", "30m"})
	require.NoError(t, err)
	assert.Equal(t, model.SimulationStatusSubmitted, opts.Status)
	assert.Equal(t, 30*time.Minute, opts.OlderThan)
	assert.Equal(t, defaultStuckLimit, opts.Limit)

	opts, err = parseStuckFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, model.SimulationStatusRunning, opts.Status)

	_, err = parseStuckFlags([]string{"-status", "Done"})
	require.Error(t, err)
	_, err = parseStuckFlags([]string{"-older-than", "0s"})
	require.Error(t, err)
}

func TestParseRequeueFlags(t *testing.T) {
	opts, err := parseRequeueFlags([]string{"-id", "42"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), opts.SimulationID)

	_, err = parseRequeueFlags(nil)
	require.Error(t, err)
}

func TestOutboxStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockOutboxRepository(ctrl)

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	oldest := now.Add(-90 * time.Second)
	lastErr := "channel closed\nby broker"
	repo.EXPECT().PendingStats(gomock.Any(), 5).Return(&model.OutboxStats{
		Pending:       2,
		OldestPending: &oldest,
		Failing: []model.OutboxEntry{
			{ID: 7, SimulationID: 42, Queue: "simulation_jobs", Attempts: 3, LastError: &lastErr},
		},
	}, nil)

	var buf bytes.Buffer
	require.NoError(t, outboxStatus(context.Background(), &buf, repo, outboxStatusOptions{Failing: 5}, now))

	out := buf.String()
	assert.Contains(t, out, "Pending: 2")
	assert.Contains(t, out, "(1m30s ago)")
	assert.Contains(t, out, "channel closed by broker")
	assert.Contains(t, out, "simulation_jobs")
}

func TestOutboxStatusEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockOutboxRepository(ctrl)
	repo.EXPECT().PendingStats(gomock.Any(), defaultFailingLimit).Return(&model.OutboxStats{}, nil)

	var buf bytes.Buffer
	require.NoError(t, outboxStatus(context.Background(), &buf, repo, outboxStatusOptions{Failing: defaultFailingLimit}, time.Now()))
	assert.Equal(t, "Pending: 0\nNo failing entries.\n", buf.String())
}

func TestRequeue(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr string
	}{
		{name: "requeued"},
		{name: "already claimed", err: data.ErrSimulationNotSubmitted, wantErr: "already been claimed"},
		{name: "missing", err: data.ErrSimulationNotFound, wantErr: "not found"},
		{name: "db failure", err: errors.New("db down"), wantErr: "db down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockOutboxRepository(ctrl)
			if tt.err != nil {
				repo.EXPECT().Requeue(gomock.Any(), int64(42)).Return(nil, tt.err)
			} else {
				repo.EXPECT().Requeue(gomock.Any(), int64(42)).Return(&model.OutboxEntry{
					ID: 9, SimulationID: 42, MessageID: "m-9", Queue: "simulation_jobs",
				}, nil)
			}

			var buf bytes.Buffer
			err := requeue(context.Background(), &buf, repo, requeueOptions{SimulationID: 42})
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "Requeued simulation 42 as outbox entry 9")
		})
	}
}

func TestListStuck(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)

	now := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	q := core.StaleQuery{Status: model.SimulationStatusRunning, MaxAge: time.Hour, Limit: 1}
	repo.EXPECT().CountStale(gomock.Any(), q).Return(int64(3), nil)
	repo.EXPECT().ListStale(gomock.Any(), q).Return([]model.StuckSimulation{
		{ID: 5, UserID: "user-1", Title: "Trial", Status: model.SimulationStatusRunning, UpdatedAt: now.Add(-2 * time.Hour)},
	}, nil)

	var buf bytes.Buffer
	opts := stuckOptions{Status: model.SimulationStatusRunning, OlderThan: time.Hour, Limit: 1}
	require.NoError(t, listStuck(context.Background(), &buf, repo, opts, now))

	out := buf.String()
	assert.Contains(t, out, "3 Running simulation(s) older than 1h0m0s (showing 1)")
	assert.Contains(t, out, "user-1")
	assert.Contains(t, out, "2h0m0s")
}

func TestListStuckNone(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)
	repo.EXPECT().CountStale(gomock.Any(), gomock.Any()).Return(int64(0), nil)

	var buf bytes.Buffer
	opts := stuckOptions{Status: model.SimulationStatusSubmitted, OlderThan: time.Hour, Limit: 10}
	require.NoError(t, listStuck(context.Background(), &buf, repo, opts, time.Now()))
	assert.Equal(t, fmt.Sprintf("No Submitted simulations older than %s.\n", time.Hour), buf.String())
}
