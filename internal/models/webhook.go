package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent identifies the event a webhook subscribes to
type WebhookEvent string

const (
	WebhookEventProductImported WebhookEvent = "product_imported"
	WebhookEventProductCreated  WebhookEvent = "product_created"
	WebhookEventProductUpdated  WebhookEvent = "product_updated"
)

// ValidWebhookEvent reports whether the event type is one we dispatch
func ValidWebhookEvent(e WebhookEvent) bool {
	switch e {
	case WebhookEventProductImported, WebhookEventProductCreated, WebhookEventProductUpdated:
		return true
	}
	return false
}

// Webhook is a subscription to an event. Enabled hooks receive a POST with
// the event payload; the test endpoint records the last observed status and
// round-trip latency.
type Webhook struct {
	ID             uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	URL            string       `json:"url" gorm:"not null"`
	EventType      WebhookEvent `json:"eventType" gorm:"column:event_type;not null;index"`
	Enabled        bool         `json:"enabled" gorm:"not null;default:true"`
	CreatedAt      time.Time    `json:"createdAt" gorm:"column:created_at"`
	LastTestedAt   *time.Time   `json:"lastTestedAt,omitempty" gorm:"column:last_tested_at"`
	LastTestStatus *int         `json:"lastTestStatus,omitempty" gorm:"column:last_test_status"`
	LastTestMs     *int64       `json:"lastTestMs,omitempty" gorm:"column:last_test_ms"`
}

// TableName returns the table name for the Webhook model
func (Webhook) TableName() string {
	return "webhooks"
}

// CreateWebhookRequest represents a request to register a webhook
type CreateWebhookRequest struct {
	URL       string       `json:"url" binding:"required,url"`
	EventType WebhookEvent `json:"eventType" binding:"required"`
	Enabled   *bool        `json:"enabled,omitempty"`
}

// UpdateWebhookRequest represents a request to update a webhook
type UpdateWebhookRequest struct {
	URL       *string       `json:"url,omitempty"`
	EventType *WebhookEvent `json:"eventType,omitempty"`
	Enabled   *bool         `json:"enabled,omitempty"`
}

// WebhookTestResult reports the outcome of a test delivery
type WebhookTestResult struct {
	Status    int   `json:"status"`
	LatencyMs int64 `json:"latencyMs"`
}
