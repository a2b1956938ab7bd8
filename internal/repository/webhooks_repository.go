package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"product-importer/internal/models"
)

type WebhooksRepository struct {
	db *gorm.DB
}

func NewWebhooksRepository(db *gorm.DB) *WebhooksRepository {
	return &WebhooksRepository{db: db}
}

// CreateWebhook registers a new webhook subscription
func (r *WebhooksRepository) CreateWebhook(ctx context.Context, hook *models.Webhook) error {
	if hook.ID == uuid.Nil {
		hook.ID = uuid.New()
	}
	hook.CreatedAt = time.Now()
	return r.db.WithContext(ctx).Create(hook).Error
}

// GetWebhooks lists all registered webhooks
func (r *WebhooksRepository) GetWebhooks(ctx context.Context) ([]models.Webhook, error) {
	var hooks []models.Webhook
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&hooks).Error
	return hooks, err
}

// GetWebhookByID retrieves a webhook by ID
func (r *WebhooksRepository) GetWebhookByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	var hook models.Webhook
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&hook).Error; err != nil {
		return nil, err
	}
	return &hook, nil
}

// UpdateWebhook applies partial updates to a webhook
func (r *WebhooksRepository) UpdateWebhook(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Webhook{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteWebhook removes a webhook subscription
func (r *WebhooksRepository) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Webhook{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListEnabled returns enabled webhooks subscribed to the given event
func (r *WebhooksRepository) ListEnabled(ctx context.Context, event models.WebhookEvent) ([]models.Webhook, error) {
	var hooks []models.Webhook
	err := r.db.WithContext(ctx).
		Where("event_type = ? AND enabled = ?", event, true).
		Find(&hooks).Error
	return hooks, err
}

// RecordTestResult stores the outcome of a test delivery on the webhook
func (r *WebhooksRepository) RecordTestResult(ctx context.Context, id uuid.UUID, status int, latency time.Duration) error {
	now := time.Now()
	ms := latency.Milliseconds()
	return r.db.WithContext(ctx).Model(&models.Webhook{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_tested_at":   now,
			"last_test_status": status,
			"last_test_ms":     ms,
		}).Error
}
