package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 5 * time.Second
	retryStep      = 200 * time.Millisecond
	maxErrorBody   = 4 << 10
)

// Poster sends JSON documents to an HTTP endpoint with linear backoff
// between attempts. Name prefixes every error so callers can tell sinks apart.
type Poster struct {
	Name    string
	URL     string
	Retries int
	Client  *http.Client
}

// NewPoster fills in a client with the given timeout (5s when unset).
func NewPoster(name, url string, retries int, timeout time.Duration, hc *http.Client) *Poster {
	if hc == nil {
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Poster{Name: name, URL: url, Retries: max(retries, 0), Client: hc}
}

// PostJSON encodes doc once and posts it up to Retries+1 times. It returns
// the last attempt's error, or ctx.Err() if cancelled while backing off.
func (p *Poster) PostJSON(ctx context.Context, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", p.Name, err)
	}

	for attempt := 0; ; attempt++ {
		err = p.post(ctx, body)
		if err == nil || attempt >= p.Retries {
			return err
		}
		timer := time.NewTimer(time.Duration(attempt+1) * retryStep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Poster) post(ctx context.Context, body []byte) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", p.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", p.Name, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close %s response: %w", p.Name, closeErr))
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return fmt.Errorf("%s %s: read body: %w", p.Name, resp.Status, readErr)
	}
	return fmt.Errorf("%s %s: %s", p.Name, resp.Status, strings.TrimSpace(string(msg)))
}

// Or returns value unless it is blank.
func Or(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
