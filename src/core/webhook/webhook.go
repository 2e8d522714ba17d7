package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"

	"clipsmith/src/infrastructure/log"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 10 * time.Second

// DefaultEvents is the subscription set used when a config names none.
var DefaultEvents = []string{"completed", "failed"}

// Config is a caller-supplied delivery target.
type Config struct {
	URL     string            `json:"url"`
	Events  []string          `json:"events,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Subscribed reports whether the config wants deliveries for an event.
func (c Config) Subscribed(event string) bool {
	events := c.Events
	if len(events) == 0 {
		events = DefaultEvents
	}
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}

// Payload is the outgoing notification body.
type Payload struct {
	Event     string `json:"event"`
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	VideoID   string `json:"video_id,omitempty"`
	VideoURL  string `json:"video_url,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Dispatcher delivers job-outcome notifications. Delivery is best-effort:
// one POST per payload, never retried, and failures never propagate beyond
// the returned bool.
type Dispatcher struct {
	client *http.Client
	node   *snowflake.Node
}

func NewDispatcher(timeout time.Duration) (*Dispatcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &Dispatcher{
		client: &http.Client{Timeout: timeout},
		node:   node,
	}, nil
}

// Send posts the payload to the configured URL if its event is subscribed.
// It returns true only when the endpoint acknowledged with a 2xx.
func (d *Dispatcher) Send(ctx context.Context, cfg Config, payload Payload) bool {
	if !cfg.Subscribed(payload.Event) {
		log.Debug("Webhook event not subscribed, skipping delivery",
			"event", payload.Event, "job_id", payload.JobID)
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error(err, "Failed to marshal webhook payload", "job_id", payload.JobID)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		log.Error(err, "Failed to build webhook request", "url", cfg.URL)
		return false
	}

	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")

	deliveryID := d.node.Generate().String()
	req.Header.Set("X-Delivery-ID", deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Error(err, "Failed to send webhook",
			"url", cfg.URL, "event", payload.Event, "delivery_id", deliveryID)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error(fmt.Errorf("unexpected status %d", resp.StatusCode),
			"Webhook endpoint rejected delivery",
			"url", cfg.URL, "event", payload.Event, "delivery_id", deliveryID)
		return false
	}

	log.Info("Webhook delivered",
		"url", cfg.URL, "event", payload.Event, "delivery_id", deliveryID)
	return true
}
