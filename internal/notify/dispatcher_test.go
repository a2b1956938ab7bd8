package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"product-importer/internal/models"
)

type stubHooksStore struct {
	hooks []models.Webhook
	err   error
}

func (s *stubHooksStore) ListEnabled(ctx context.Context, event models.WebhookEvent) ([]models.Webhook, error) {
	if s.err != nil {
		return nil, s.err
	}
	var matched []models.Webhook
	for _, h := range s.hooks {
		if h.EventType == event {
			matched = append(matched, h)
		}
	}
	return matched, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestDispatcher_TriggerDeliversToSubscribers(t *testing.T) {
	var mu sync.Mutex
	var received []eventEnvelope

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var envelope eventEnvelope
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		mu.Lock()
		received = append(received, envelope)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := &stubHooksStore{hooks: []models.Webhook{
		{ID: uuid.New(), URL: server.URL, EventType: models.WebhookEventProductImported, Enabled: true},
		{ID: uuid.New(), URL: server.URL, EventType: models.WebhookEventProductCreated, Enabled: true},
	}}
	dispatcher := NewDispatcher(store, quietLogger())

	job := models.ImportJob{ID: uuid.New(), TotalRows: 10, RowsUpserted: 9, RowsInvalid: 1}
	dispatcher.ImportCompleted(context.Background(), job)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 1)
	assert.Equal(t, "product_imported", received[0].Event)

	payload, ok := received[0].Payload.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, job.ID.String(), payload["jobId"])
	assert.Equal(t, float64(9), payload["imported"])
}

func TestDispatcher_TriggerSurvivesDeadEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := &stubHooksStore{hooks: []models.Webhook{
		{ID: uuid.New(), URL: server.URL, EventType: models.WebhookEventProductCreated, Enabled: true},
		{ID: uuid.New(), URL: "http://127.0.0.1:1/nope", EventType: models.WebhookEventProductCreated, Enabled: true},
	}}
	dispatcher := NewDispatcher(store, quietLogger())

	// must not panic or propagate errors
	dispatcher.Trigger(context.Background(), models.WebhookEventProductCreated, map[string]string{"sku": "abc"})
}

func TestDispatcher_TestReportsStatusAndLatency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]bool
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["test"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := NewDispatcher(&stubHooksStore{}, quietLogger())
	hook := models.Webhook{ID: uuid.New(), URL: server.URL, EventType: models.WebhookEventProductImported}

	result, err := dispatcher.Test(context.Background(), hook)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, result.Status)
	assert.GreaterOrEqual(t, result.LatencyMs, int64(0))
}

func TestDispatcher_TestFailsOnUnreachableEndpoint(t *testing.T) {
	dispatcher := NewDispatcher(&stubHooksStore{}, quietLogger())
	hook := models.Webhook{ID: uuid.New(), URL: "http://127.0.0.1:1/nope", EventType: models.WebhookEventProductImported}

	_, err := dispatcher.Test(context.Background(), hook)
	assert.Error(t, err)
}
