package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/domain/model"
	"github.com/target/simqueue/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestNewRunner_RequiresDatabase(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}

func TestRunner_RunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReaperRepository(ctrl)

	cfg := config.ReaperConfig{
		Interval:        time.Minute,
		OutboxRetention: 72 * time.Hour,
		RunningMaxAge:   time.Hour,
		SubmittedMaxAge: time.Hour,
		BatchSize:       500,
	}

	repo.EXPECT().DeletePublishedOutbox(gomock.Any(), 72*time.Hour, 500).Return(int64(0), nil)
	repo.EXPECT().CountStale(gomock.Any(), gomock.Any()).Return(int64(0), nil).Times(2)
	repo.EXPECT().PendingStats(gomock.Any(), gomock.Any()).Return(&model.OutboxStats{}, nil)

	r, err := NewRunner(RunnerOptions{Repo: repo, Config: cfg})
	require.NoError(t, err)
	require.NoError(t, r.RunOnce(context.Background()))
}
