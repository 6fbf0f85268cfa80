// Package notify handles downstream cache invalidation after a publish.
// Invalidation is single-shot and best-effort: a failure is reported to the
// caller but never retried, and never fails the publish.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

var webhookClient = &http.Client{Timeout: 10 * time.Second}

// Invalidation is the payload sent to downstream consumers when new data
// for a season and week has been published.
type Invalidation struct {
	Season        int       `json:"season"`
	Week          int       `json:"week"`
	PublicationID string    `json:"publication_id"`
	PublishedAt   time.Time `json:"published_at"`
}

// Notifier tells downstream consumers to drop cached projections.
type Notifier interface {
	Invalidate(ctx context.Context, inv Invalidation) error
}

// WebhookNotifier POSTs invalidations to a fixed URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhook returns a WebhookNotifier for the given URL.
func NewWebhook(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: webhookClient}
}

func (n *WebhookNotifier) Invalidate(ctx context.Context, inv Invalidation) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return eris.Wrap(err, "notify: marshal invalidation")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notify: invalidation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("notify: invalidation returned status %d", resp.StatusCode)
	}

	return nil
}

// NoopNotifier is used when no webhook is configured.
type NoopNotifier struct{}

func (NoopNotifier) Invalidate(context.Context, Invalidation) error { return nil }
