package importer

import (
	"context"
	"sync"
	"time"

	"product-importer/internal/models"
)

// Mirror publishes job snapshots somewhere pollers on other processes can
// see them. Implementations must tolerate being called concurrently.
type Mirror interface {
	Publish(ctx context.Context, job models.ImportJob)
}

// Tracker is the single mutable counter set for one job. The parser path
// and the batch committer both report through it; pollers read via
// Snapshot. Every mutation holds the mutex for a bounded critical section,
// so no increment is ever lost and a snapshot is never partial.
type Tracker struct {
	mu        sync.Mutex
	job       models.ImportJob
	maxErrors int
	mirror    Mirror
}

// NewTracker creates a tracker for a freshly created job. maxErrors bounds
// the recorded row error list; rows past the cap are still counted.
func NewTracker(job models.ImportJob, maxErrors int, mirror Mirror) *Tracker {
	return &Tracker{job: job, maxErrors: maxErrors, mirror: mirror}
}

// AddRead increments rows_read
func (t *Tracker) AddRead(delta int64) {
	t.mu.Lock()
	t.job.RowsRead += delta
	t.mu.Unlock()
}

// AddValid increments rows_valid
func (t *Tracker) AddValid(delta int64) {
	t.mu.Lock()
	t.job.RowsValid += delta
	t.mu.Unlock()
}

// AddUpserted increments rows_upserted after a batch commit and mirrors the
// new snapshot. Called once per committed batch, so mirror traffic stays
// bounded.
func (t *Tracker) AddUpserted(delta int64) {
	t.mu.Lock()
	t.job.RowsUpserted += delta
	snapshot := t.copyLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

// RecordRowError counts an invalid row and records it while under the cap
func (t *Tracker) RecordRowError(rowErr models.RowError) {
	t.mu.Lock()
	t.job.RowsInvalid++
	if len(t.job.Errors) < t.maxErrors {
		t.job.Errors = append(t.job.Errors, rowErr)
	}
	t.mu.Unlock()
}

// SetTotalRows records the expected data row count, used for progress percent
func (t *Tracker) SetTotalRows(total int64) {
	t.mu.Lock()
	t.job.TotalRows = total
	t.mu.Unlock()
}

// SetStatus transitions the job and stamps started/finished times. Terminal
// transitions and the move to Running are both mirrored immediately.
func (t *Tracker) SetStatus(status models.JobStatus, message string) {
	now := time.Now()
	t.mu.Lock()
	t.job.Status = status
	t.job.Message = message
	switch {
	case status == models.JobStatusRunning && t.job.StartedAt == nil:
		t.job.StartedAt = &now
	case status.Terminal() && t.job.FinishedAt == nil:
		t.job.FinishedAt = &now
	}
	snapshot := t.copyLocked()
	t.mu.Unlock()
	t.publish(snapshot)
}

// Snapshot returns a point-in-time copy safe for pollers. Reads are
// eventually consistent with the latest increment but never torn.
func (t *Tracker) Snapshot() models.ImportJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copyLocked()
}

func (t *Tracker) copyLocked() models.ImportJob {
	job := t.job
	job.Errors = append([]models.RowError(nil), t.job.Errors...)
	return job
}

func (t *Tracker) publish(job models.ImportJob) {
	if t.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	t.mirror.Publish(ctx, job)
}
