package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/simqueue/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key", Timeout: time.Second})
	require.NoError(t, err)

	event := client.buildEvent(notify.SimulationFailurePayload{
		SimulationID: 7,
		MessageID:    "msg-7",
		Stage:        notify.StageComplete,
		Error:        "boom",
		ErrorClass:   "err_class",
		Metadata:     map[string]string{"error": "shadowed", "queue": "simulation_jobs"},
	})

	assert.Equal(t, "trigger", event.EventAction)
	assert.Equal(t, "simulation:msg-7", event.DedupKey)

	section := event.Payload
	assert.Equal(t, notify.SeverityCritical, section.Severity)
	assert.Equal(t, "simqueue", section.Source)
	assert.Equal(t, "simqueue", section.Component)
	assert.Equal(t, "Simulation 7 dropped at complete", section.Summary)

	custom := section.CustomDetails
	assert.Equal(t, "7", custom["simulation_id"])
	assert.Equal(t, "boom", custom["error"], "metadata never overrides canonical fields")
	assert.Equal(t, "simulation_jobs", custom["queue"])
}

func TestBuildEventWithoutIdentity(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	require.NoError(t, err)

	event := client.buildEvent(notify.SimulationFailurePayload{Severity: "WARNING"})
	assert.Equal(t, "simulation", event.DedupKey)
	assert.Equal(t, "warning", event.Payload.Severity)
	assert.Equal(t, "Simulation unknown dropped at unknown", event.Payload.Summary)
}

func TestSendSimulationFailure(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL})
	require.NoError(t, err)

	require.NoError(t, client.SendSimulationFailure(context.Background(), notify.SimulationFailurePayload{SimulationID: 3}))
	assert.Equal(t, "key", got["routing_key"])
}

func TestSendSimulationFailureError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid routing key", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL})
	require.NoError(t, err)

	err = client.SendSimulationFailure(context.Background(), notify.SimulationFailurePayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid routing key")
}
