package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"product-importer/internal/models"
)

const (
	dispatchTimeout = 5 * time.Second
	testTimeout     = 10 * time.Second
)

// HooksStore is the subset of the webhooks repository the dispatcher needs
type HooksStore interface {
	ListEnabled(ctx context.Context, event models.WebhookEvent) ([]models.Webhook, error)
}

// Dispatcher delivers event payloads to subscribed webhooks. Delivery is
// best-effort: a dead endpoint is logged and skipped, never propagated back
// into the pipeline that triggered the event.
type Dispatcher struct {
	hooks  HooksStore
	client *http.Client
	logger *logrus.Entry
}

func NewDispatcher(hooks HooksStore, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		hooks:  hooks,
		client: &http.Client{Timeout: dispatchTimeout},
		logger: logger.WithField("component", "webhooks"),
	}
}

// eventEnvelope is the wire format for webhook deliveries
type eventEnvelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// ImportCompleted notifies product_imported subscribers of a finished run
func (d *Dispatcher) ImportCompleted(ctx context.Context, job models.ImportJob) {
	d.Trigger(ctx, models.WebhookEventProductImported, map[string]interface{}{
		"jobId":    job.ID.String(),
		"total":    job.TotalRows,
		"imported": job.RowsUpserted,
		"invalid":  job.RowsInvalid,
	})
}

// Trigger sends the event to every enabled subscriber of that event type
func (d *Dispatcher) Trigger(ctx context.Context, event models.WebhookEvent, payload interface{}) {
	hooks, err := d.hooks.ListEnabled(ctx, event)
	if err != nil {
		d.logger.WithError(err).WithField("event", event).Warn("Failed to list webhooks")
		return
	}

	for _, hook := range hooks {
		if err := d.post(ctx, hook.URL, eventEnvelope{Event: string(event), Payload: payload}); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"event": event,
				"url":   hook.URL,
			}).Warn("Webhook delivery failed")
		}
	}
}

// Test fires a synchronous test call against one webhook and reports the
// response status and round-trip latency.
func (d *Dispatcher) Test(ctx context.Context, hook models.Webhook) (models.WebhookTestResult, error) {
	body, err := json.Marshal(map[string]bool{"test": true})
	if err != nil {
		return models.WebhookTestResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return models.WebhookTestResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return models.WebhookTestResult{}, fmt.Errorf("test delivery failed: %w", err)
	}
	defer resp.Body.Close()

	return models.WebhookTestResult{
		Status:    resp.StatusCode,
		LatencyMs: latency.Milliseconds(),
	}, nil
}

func (d *Dispatcher) post(ctx context.Context, url string, envelope eventEnvelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
