// Package pagerduty raises Events API v2 incidents for dropped simulations.
package pagerduty

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/simqueue/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	Endpoint   string // Optional: defaults to APIEndpoint
}

// Client publishes trigger events. Redeliveries of one message share a
// dedup key and therefore a single incident.
type Client struct {
	poster     *notify.Poster
	routingKey string
	source     string
	component  string
}

type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details"`
}

func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}
	endpoint := notify.Or(strings.TrimSpace(cfg.Endpoint), APIEndpoint)
	return &Client{
		poster:     notify.NewPoster("pagerduty api", endpoint, cfg.RetryLimit, cfg.Timeout, cfg.Client),
		routingKey: key,
		source:     notify.Or(strings.TrimSpace(cfg.Source), "simqueue"),
		component:  notify.Or(strings.TrimSpace(cfg.Component), "simqueue"),
	}, nil
}

func (c *Client) SendSimulationFailure(ctx context.Context, p notify.SimulationFailurePayload) error {
	return c.poster.PostJSON(ctx, c.buildEvent(p))
}

func (c *Client) buildEvent(p notify.SimulationFailurePayload) event {
	at := p.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}

	details := map[string]any{}
	for k, v := range p.Metadata {
		details[k] = v
	}
	// Canonical fields are written last so metadata cannot shadow them.
	for k, v := range map[string]any{
		"simulation_id": p.SimulationRef(),
		"message_id":    p.MessageID,
		"user_id":       p.UserID,
		"title":         p.Title,
		"stage":         string(p.Stage),
		"redelivered":   p.Redelivered,
		"error":         p.Error,
		"error_class":   p.ErrorClass,
	} {
		details[k] = v
	}

	dedup := "simulation"
	if ref := notify.Or(p.MessageID, p.SimulationRef()); ref != "" {
		dedup += ":" + ref
	}

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    dedup,
		Payload: eventPayload{
			Summary: fmt.Sprintf("Simulation %s dropped at %s",
				notify.Or(p.SimulationRef(), "unknown"), notify.Or(string(p.Stage), "unknown")),
			Severity:      notify.Or(strings.ToLower(p.Severity), notify.SeverityCritical),
			Source:        c.source,
			Component:     c.component,
			Timestamp:     at.UTC().Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}
