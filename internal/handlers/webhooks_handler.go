package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"product-importer/internal/models"
	"product-importer/internal/notify"
	"product-importer/internal/repository"
)

type WebhooksHandler struct {
	repo       *repository.WebhooksRepository
	dispatcher *notify.Dispatcher
	logger     *logrus.Entry
}

func NewWebhooksHandler(repo *repository.WebhooksRepository, dispatcher *notify.Dispatcher, logger *logrus.Logger) *WebhooksHandler {
	return &WebhooksHandler{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger.WithField("component", "webhooks-handler"),
	}
}

// GetWebhooks lists all registered webhooks
// GET /api/v1/webhooks
func (h *WebhooksHandler) GetWebhooks(c *gin.Context) {
	webhooks, err := h.repo.GetWebhooks(c.Request.Context())
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: webhooks})
}

// CreateWebhook registers a new webhook endpoint
// POST /api/v1/webhooks
func (h *WebhooksHandler) CreateWebhook(c *gin.Context) {
	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if !models.ValidWebhookEvent(req.EventType) {
		h.fail(c, http.StatusBadRequest, "INVALID_EVENT", "Unknown event type: "+string(req.EventType))
		return
	}

	webhook := &models.Webhook{
		URL:       req.URL,
		EventType: req.EventType,
		Enabled:   true,
	}
	if req.Enabled != nil {
		webhook.Enabled = *req.Enabled
	}

	if err := h.repo.CreateWebhook(c.Request.Context(), webhook); err != nil {
		h.fail(c, http.StatusInternalServerError, "CREATE_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{Success: true, Data: webhook})
}

// UpdateWebhook applies partial updates to a webhook
// PUT /api/v1/webhooks/:id
func (h *WebhooksHandler) UpdateWebhook(c *gin.Context) {
	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_ID", "Webhook ID must be a valid UUID")
		return
	}

	var req models.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if req.EventType != nil {
		if !models.ValidWebhookEvent(*req.EventType) {
			h.fail(c, http.StatusBadRequest, "INVALID_EVENT", "Unknown event type: "+string(*req.EventType))
			return
		}
		updates["event_type"] = *req.EventType
	}
	if req.Enabled != nil {
		updates["enabled"] = *req.Enabled
	}
	if len(updates) == 0 {
		h.fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "No fields to update")
		return
	}

	if err := h.repo.UpdateWebhook(c.Request.Context(), webhookID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(c, http.StatusNotFound, "NOT_FOUND", "Webhook not found")
			return
		}
		h.fail(c, http.StatusInternalServerError, "UPDATE_FAILED", err.Error())
		return
	}

	webhook, err := h.repo.GetWebhookByID(c.Request.Context(), webhookID)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: webhook})
}

// DeleteWebhook removes a webhook
// DELETE /api/v1/webhooks/:id
func (h *WebhooksHandler) DeleteWebhook(c *gin.Context) {
	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_ID", "Webhook ID must be a valid UUID")
		return
	}

	if err := h.repo.DeleteWebhook(c.Request.Context(), webhookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(c, http.StatusNotFound, "NOT_FOUND", "Webhook not found")
			return
		}
		h.fail(c, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	message := "Webhook deleted"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// TestWebhook sends a test payload to the webhook URL and records the outcome
// POST /api/v1/webhooks/:id/test
func (h *WebhooksHandler) TestWebhook(c *gin.Context) {
	webhookID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.fail(c, http.StatusBadRequest, "INVALID_ID", "Webhook ID must be a valid UUID")
		return
	}

	webhook, err := h.repo.GetWebhookByID(c.Request.Context(), webhookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.fail(c, http.StatusNotFound, "NOT_FOUND", "Webhook not found")
			return
		}
		h.fail(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}

	result, testErr := h.dispatcher.Test(c.Request.Context(), *webhook)

	latency := time.Duration(result.LatencyMs) * time.Millisecond
	if err := h.repo.RecordTestResult(c.Request.Context(), webhookID, result.Status, latency); err != nil {
		h.logger.WithError(err).Warn("Failed to record webhook test result")
	}

	if testErr != nil {
		h.fail(c, http.StatusBadGateway, "TEST_FAILED", testErr.Error())
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

func (h *WebhooksHandler) fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}
