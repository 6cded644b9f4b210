// Package slack posts dropped-simulation notices to an incoming webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/target/simqueue/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL    string
	Channel       string
	Username      string
	Timeout       time.Duration
	RetryLimit    int
	Client        *http.Client
	LinkURLPrefix string // Optional: simulation ids are rendered as links under this prefix
}

// Client delivers dropped-simulation notifications to a Slack webhook.
type Client struct {
	poster   *notify.Poster
	channel  string
	username string
	linkBase *url.URL
}

type message struct {
	Text     string `json:"text"`
	Username string `json:"username"`
	Channel  string `json:"channel,omitempty"`
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func NewClient(cfg Config) (*Client, error) {
	hook := strings.TrimSpace(cfg.WebhookURL)
	if hook == "" {
		return nil, errors.New("slack webhook url is required")
	}
	c := &Client{
		poster:   notify.NewPoster("slack webhook", hook, cfg.RetryLimit, cfg.Timeout, cfg.Client),
		channel:  strings.TrimSpace(cfg.Channel),
		username: notify.Or(strings.TrimSpace(cfg.Username), "simqueue"),
	}
	if u, err := url.Parse(strings.TrimSpace(cfg.LinkURLPrefix)); err == nil && u.Scheme != "" && u.Host != "" {
		c.linkBase = u
	}
	return c, nil
}

func (c *Client) SendSimulationFailure(ctx context.Context, p notify.SimulationFailurePayload) error {
	return c.poster.PostJSON(ctx, c.formatMessage(p))
}

func (c *Client) formatMessage(p notify.SimulationFailurePayload) message {
	var b strings.Builder
	b.WriteString("*Simulation message dropped*")
	if p.Stage != "" {
		fmt.Fprintf(&b, " at `%s`", p.Stage)
	}
	b.WriteByte('\n')

	bullet := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "• %s: %s\n", label, value)
		}
	}
	bullet("Severity", notify.Or(p.Severity, notify.SeverityCritical))
	bullet("Simulation", c.simulationLabel(p.SimulationRef(), p.Title))
	bullet("Owner", escaper.Replace(p.UserID))
	bullet("Message", p.MessageID)
	if p.Redelivered {
		bullet("Redelivered", "yes")
	}
	bullet("Error class", p.ErrorClass)
	bullet("Error", escaper.Replace(p.Error))

	if len(p.Metadata) > 0 {
		b.WriteString("• Metadata:\n")
		for _, k := range slices.Sorted(maps.Keys(p.Metadata)) {
			fmt.Fprintf(&b, "    • %s: %s\n", k, p.Metadata[k])
		}
	}

	at := p.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	b.WriteString("• Timestamp: ")
	b.WriteString(at.UTC().Format(time.RFC3339))

	return message{Text: b.String(), Username: c.username, Channel: c.channel}
}

// simulationLabel renders "#id title", linking the id when a prefix is configured.
func (c *Client) simulationLabel(id, title string) string {
	title = escaper.Replace(strings.TrimSpace(title))
	if id == "" {
		return title
	}
	label := "#" + id
	if c.linkBase != nil {
		label = fmt.Sprintf("<%s|#%s>", c.linkBase.JoinPath(id), id)
	}
	return strings.TrimSpace(label + " " + title)
}
