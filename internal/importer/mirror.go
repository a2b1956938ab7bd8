package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"product-importer/internal/models"
)

// How long mirrored job keys live in Redis
const mirrorTTL = 24 * time.Hour

// RedisMirror writes job snapshots to Redis under job:{id}:* keys so any
// process serving the polling API can answer without reaching the tracker.
// Mirror failures are logged and swallowed: progress delivery must never
// block or fail the ingestion path.
type RedisMirror struct {
	client *redis.Client
	logger *logrus.Entry
}

func NewRedisMirror(client *redis.Client, logger *logrus.Logger) *RedisMirror {
	return &RedisMirror{
		client: client,
		logger: logger.WithField("component", "progress-mirror"),
	}
}

// Publish mirrors status, progress percent and a human-readable message
func (m *RedisMirror) Publish(ctx context.Context, job models.ImportJob) {
	if m.client == nil {
		return
	}
	key := func(suffix string) string {
		return fmt.Sprintf("job:%s:%s", job.ID.String(), suffix)
	}
	message := fmt.Sprintf("Processed %d/%d rows", job.RowsRead, job.TotalRows)
	if job.Message != "" {
		message = job.Message
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, key("status"), string(job.Status), mirrorTTL)
	pipe.Set(ctx, key("progress"), job.PercentComplete(), mirrorTTL)
	pipe.Set(ctx, key("message"), message, mirrorTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.WithError(err).WithField("job_id", job.ID.String()).Warn("Failed to mirror job progress")
	}
}
