// Package webhook posts best-effort JSON notifications to a configured URL.
// Callers never consume a response body; a non-2xx status is an error the
// caller is expected to log and drop.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultTimeout = 10 * time.Second

// Notifier sends a payload to the webhook endpoint.
type Notifier interface {
	Notify(ctx context.Context, payload any) error
}

// Option configures the client.
type Option func(*client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.http = hc
	}
}

type client struct {
	url  string
	http *http.Client
}

// NewClient creates a notifier posting to the given URL.
func NewClient(url string, opts ...Option) Notifier {
	c := &client{
		url:  url,
		http: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *client) Notify(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "webhook: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "webhook: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "webhook: send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
