package jobrunner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/core"
	"github.com/target/simqueue/internal/domain/model"
	"github.com/target/simqueue/internal/domain/simulation"
	"github.com/target/simqueue/internal/mocks"
	"github.com/target/simqueue/internal/testutil/brokertest"
	"go.uber.org/mock/gomock"
)

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(RunnerOptions{Consumer: brokertest.New()})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = NewRunner(RunnerOptions{Repo: mocks.NewMockSimulationRepository(ctrl)})
	require.Error(t, err)

	r, err := NewRunner(RunnerOptions{Repo: mocks.NewMockSimulationRepository(ctrl), Consumer: brokertest.New()})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultQueue, r.queue)
	assert.Equal(t, 1, r.workers)
}

func TestRunner_ProcessesQueueWithConcurrentConsumers(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockSimulationRepository(ctrl)
	broker := brokertest.New()

	var slept atomic.Int64
	r, err := NewRunner(RunnerOptions{
		Repo:        repo,
		Consumer:    broker,
		Concurrency: 3,
		TimeScale:   2,
		Scorer: simulation.ScorerFunc(func(_ context.Context, p model.SimulationParams) (*model.SimulationResult, error) {
			return &model.SimulationResult{InitialTumorCount: p.TumorCount}, nil
		}),
		Sleep: func(_ context.Context, d time.Duration) error {
			slept.Add(int64(d))
			return nil
		},
	})
	require.NoError(t, err)

	const n = 5
	for i := 1; i <= n; i++ {
		msg := model.NewSimulationMessage(int64(i), "user-1", "t", model.SimulationParams{
			Mode:       model.Mode2D,
			Duration:   1.5,
			TumorCount: 10,
		})
		body, encErr := msg.Encode()
		require.NoError(t, encErr)
		require.NoError(t, broker.Publish(context.Background(), core.OutboundMessage{
			Queue: config.DefaultQueue, MessageID: "m", Body: body,
		}))
	}

	repo.EXPECT().Claim(gomock.Any(), gomock.Any()).Return(true, nil).Times(n)
	repo.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).Times(n)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return len(broker.Acked()) == n }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(n)*int64(3*time.Second), slept.Load())
}

type failingConsumer struct{}

func (failingConsumer) Consume(context.Context, string, core.DeliveryHandler) error {
	return errors.New("broker gone")
}

func TestRunner_ConsumerErrorStopsRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	r, err := NewRunner(RunnerOptions{Repo: mocks.NewMockSimulationRepository(ctrl), Consumer: failingConsumer{}})
	require.NoError(t, err)
	require.Error(t, r.Run(context.Background()))
}
