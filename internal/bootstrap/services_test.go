package bootstrap

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/config"
	"github.com/target/simqueue/internal/adapters/rabbitmq"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "http only",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  1,
		},
		{
			name:  "worker and relay",
			modes: []config.ServiceMode{config.ServiceModeWorker, config.ServiceModeRelay},
			want:  2,
		},
		{
			name:  "all services enabled",
			modes: config.ValidServiceModes(),
			want:  4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			assert.Equal(t, tt.want, errorChannelCapacity(enabled))
			assert.Equal(t, tt.want+1, errorChannelBufferSize(enabled))
		})
	}
}

func TestGetEnabledServicesOrdered(t *testing.T) {
	cfg := &config.AppConfig{Services: "reaper, http,worker"}
	assert.Equal(t, []string{"http", "worker", "reaper"}, GetEnabledServices(cfg))

	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "scheduler"}))
	assert.Empty(t, GetEnabledServices(nil))
}

func TestValidateServiceConfig(t *testing.T) {
	require.NoError(t, ValidateServiceConfig(&config.AppConfig{Services: "http,relay"}))
	require.Error(t, ValidateServiceConfig(&config.AppConfig{Services: ""}))
	require.Error(t, ValidateServiceConfig(nil))
}

func TestBuildObservability(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		obs := buildObservability(discardLogger(), config.ObservabilityConfig{})
		assert.Nil(t, obs.MetricsSink)
		assert.Nil(t, obs.MetricsHandler)
		require.NotNil(t, obs.FailureNotifier)
		assert.False(t, obs.FailureNotifier.Enabled())
		require.NoError(t, obs.Close())
	})

	t.Run("prometheus", func(t *testing.T) {
		obs := buildObservability(discardLogger(), config.ObservabilityConfig{
			Prometheus: config.ObservabilityPrometheusConfig{Enabled: true, Namespace: "simqueue", Path: "/metrics"},
		})
		require.NotNil(t, obs.MetricsSink)
		require.NotNil(t, obs.MetricsHandler)

		obs.MetricsSink.Count("simulation.batch.created", 3, nil)

		rec := httptest.NewRecorder()
		obs.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "simqueue_simulation_batch_created_total 3")
	})
}

func TestBuildFailureNotifier(t *testing.T) {
	notifier := buildFailureNotifier(discardLogger(), config.ObservabilityNotificationsConfig{
		Enabled: true,
		Slack:   config.SlackNotificationConfig{Enabled: true, WebhookURL: "https://hooks.example.com/x"},
	})
	assert.True(t, notifier.Enabled())

	disabled := buildFailureNotifier(discardLogger(), config.ObservabilityNotificationsConfig{
		Slack: config.SlackNotificationConfig{Enabled: true, WebhookURL: "https://hooks.example.com/x"},
	})
	assert.False(t, disabled.Enabled())
}

func TestNewServices(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)

	cfg := &config.AppConfig{}
	cfg.Cache.Enabled = true
	svc, err := NewServices(&ServiceDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	assert.NotNil(t, svc.Simulations)
	assert.NotNil(t, svc.Imports)
}

func TestReadinessChecksBroker(t *testing.T) {
	coord, err := rabbitmq.NewCoordinator(rabbitmq.CoordinatorOptions{URL: "amqp://localhost:1/"})
	require.NoError(t, err)

	checks := readinessChecks(&ServiceOrchestrationConfig{Broker: coord})
	require.Len(t, checks, 1)
	assert.Equal(t, "broker", checks[0].Name)
	require.Error(t, checks[0].Check(context.Background()), "no connection has been made yet")
}

func TestRunServicesRequiresBroker(t *testing.T) {
	err := RunServicesWithShutdown(&ServiceOrchestrationConfig{
		Config: &config.AppConfig{Services: "worker"},
		Logger: discardLogger(),
	})
	require.ErrorContains(t, err, "broker")
}

func TestStartServerBindsListener(t *testing.T) {
	server, err := startServer(discardLogger(), http.NotFoundHandler(), config.HTTPConfig{
		Addr:           "127.0.0.1:0",
		MaxConnections: 4,
	})
	require.NoError(t, err)
	require.NoError(t, ShutdownHTTPServer(ShutdownConfig{Context: context.Background(), Server: server}))
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newLogHandler(&buf, "warn", "text"))
	logger.Info("hidden")
	logger.Warn("shown", "simulation_id", 7)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "simulation_id=7")

	buf.Reset()
	logger = slog.New(newLogHandler(&buf, "bogus", ""))
	logger.Info("json")
	assert.Contains(t, buf.String(), `"msg":"json"`)
}
