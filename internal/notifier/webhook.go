package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/cachewatch/pkg/models"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithHTTPClient replaces the HTTP client. Default: a client with a 10s timeout.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(n *WebhookNotifier) { n.client = c }
}

// WithWebhookTimeout sets the HTTP client timeout.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(n *WebhookNotifier) { n.client.Timeout = d }
}

// WebhookNotifier POSTs the rendered notification and the raw records as JSON.
// It does not retry; a failed POST leaves the batch pending for the next run.
type WebhookNotifier struct {
	client *http.Client
	url    string
	table  string
	now    func() time.Time
}

// webhookPayload is the JSON body sent to the webhook endpoint.
type webhookPayload struct {
	ID      string                 `json:"id"`
	Subject string                 `json:"subject"`
	Text    string                 `json:"text"`
	Records []models.FailureRecord `json:"records"`
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url, table string, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		client: &http.Client{Timeout: defaultWebhookTimeout},
		url:    url,
		table:  table,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *WebhookNotifier) Name() string { return "webhook" }

func (n *WebhookNotifier) Notify(ctx context.Context, records []models.FailureRecord) (models.Receipt, error) {
	msg, err := BuildMessage(n.table, records)
	if err != nil {
		return models.Receipt{}, err
	}

	payload := webhookPayload{
		ID:      uuid.NewString(),
		Subject: msg.Subject,
		Text:    msg.Body,
		Records: records,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%w: marshal payload: %w", ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%w: build request: %w", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", payload.ID)

	resp, err := n.client.Do(req)
	if err != nil {
		return models.Receipt{}, fmt.Errorf("%w: post: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Receipt{}, fmt.Errorf("%w: webhook returned status %d", ErrDeliveryFailed, resp.StatusCode)
	}

	return models.Receipt{
		MessageID: payload.ID,
		Recipient: n.url,
		Count:     len(records),
		SentAt:    n.now().UTC(),
	}, nil
}
