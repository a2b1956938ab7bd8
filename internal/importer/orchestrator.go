package importer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"product-importer/internal/models"
)

// DefaultErrorCap bounds the row errors kept on a job summary
const DefaultErrorCap = 50

// ErrJobNotFound is returned for job IDs this service never created
var ErrJobNotFound = errors.New("import job not found")

// Notifier is called after a job reaches Succeeded. Implementations must
// not block the caller for long; dispatch happens off the ingestion path.
type Notifier interface {
	ImportCompleted(ctx context.Context, job models.ImportJob)
}

// Options tunes one service instance; zero values fall back to defaults
type Options struct {
	BatchSize  int
	MaxRetries int
	ErrorCap   int
}

// Service owns import jobs end to end: it wires parser, resolver, batcher
// and tracker for each run, supervises the lifecycle state machine and
// answers status polls. One job runs as a single sequential pipeline to
// preserve commit order; distinct jobs are independent and may run
// concurrently on the worker pool.
type Service struct {
	store    Store
	mirror   Mirror
	notifier Notifier
	logger   *logrus.Entry
	opts     Options

	mu   sync.RWMutex
	jobs map[uuid.UUID]*jobState
}

type jobState struct {
	tracker         *Tracker
	cancel          context.CancelFunc
	cancelRequested bool
}

func NewService(store Store, opts Options, mirror Mirror, notifier Notifier, logger *logrus.Logger) *Service {
	if opts.ErrorCap <= 0 {
		opts.ErrorCap = DefaultErrorCap
	}
	return &Service{
		store:    store,
		mirror:   mirror,
		notifier: notifier,
		logger:   logger.WithField("component", "importer"),
		opts:     opts,
		jobs:     make(map[uuid.UUID]*jobState),
	}
}

// CreateJob registers a Pending job for the given source file and returns
// its ID. Execution happens later, when Run is invoked on a worker.
func (s *Service) CreateJob(sourceRef string) uuid.UUID {
	id := uuid.New()
	tracker := NewTracker(models.ImportJob{
		ID:        id,
		SourceRef: sourceRef,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now(),
	}, s.opts.ErrorCap, s.mirror)

	s.mu.Lock()
	s.jobs[id] = &jobState{tracker: tracker}
	s.mu.Unlock()
	return id
}

// Status returns a point-in-time snapshot of the job. Safe to call at any
// moment during Running; it never mutates job state.
func (s *Service) Status(jobID uuid.UUID) (models.ImportJob, error) {
	s.mu.RLock()
	state, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return models.ImportJob{}, ErrJobNotFound
	}
	return state.tracker.Snapshot(), nil
}

// Cancel requests a cooperative stop. It returns immediately; the run
// observes the request at the next batch boundary, so at most the batch
// already in flight commits after this call.
func (s *Service) Cancel(jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if state.cancel != nil {
		state.cancel()
	} else {
		state.cancelRequested = true
	}
	return nil
}

// Run executes the pipeline for a previously created job. It is intended to
// be invoked exactly once per job, from the worker pool.
func (s *Service) Run(ctx context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	state, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	runCtx, cancel := context.WithCancel(ctx)
	state.cancel = cancel
	if state.cancelRequested {
		cancel()
	}
	s.mu.Unlock()
	defer cancel()

	tracker := state.tracker
	log := s.logger.WithField("job_id", jobID.String())
	tracker.SetStatus(models.JobStatusRunning, "")

	if err := s.store.Ping(runCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			return s.finish(tracker, log, err)
		}
		tracker.SetStatus(models.JobStatusFailed, fmt.Sprintf("store unavailable: %v", err))
		log.WithError(err).Error("Import aborted, store unavailable")
		return err
	}

	snapshot := tracker.Snapshot()
	total, err := countDataRows(snapshot.SourceRef)
	if err != nil {
		tracker.SetStatus(models.JobStatusFailed, fmt.Sprintf("cannot read source: %v", err))
		return err
	}
	tracker.SetTotalRows(total)

	file, err := os.Open(snapshot.SourceRef)
	if err != nil {
		tracker.SetStatus(models.JobStatusFailed, fmt.Sprintf("cannot open source: %v", err))
		return err
	}
	defer file.Close()

	parser, err := NewRowParser(file)
	if err != nil {
		tracker.SetStatus(models.JobStatusFailed, err.Error())
		log.WithError(err).Error("Import failed before reading any rows")
		return err
	}

	batcher := NewBatchUpserter(s.store, tracker, log, s.opts.BatchSize, s.opts.MaxRetries)

	for {
		raw, rowErr, err := parser.Next()
		if err == io.EOF {
			break
		}
		tracker.AddRead(1)
		if rowErr != nil {
			tracker.RecordRowError(*rowErr)
			continue
		}

		product, resolveErr := Resolve(raw)
		if resolveErr != nil {
			tracker.RecordRowError(*resolveErr)
			continue
		}
		tracker.AddValid(1)

		if err := batcher.Add(runCtx, product); err != nil {
			return s.finish(tracker, log, err)
		}
	}

	if err := batcher.Flush(runCtx); err != nil {
		return s.finish(tracker, log, err)
	}

	tracker.SetStatus(models.JobStatusSucceeded, "Import complete")
	final := tracker.Snapshot()
	log.WithFields(logrus.Fields{
		"rows_read":     final.RowsRead,
		"rows_valid":    final.RowsValid,
		"rows_invalid":  final.RowsInvalid,
		"rows_upserted": final.RowsUpserted,
	}).Info("Import succeeded")

	if s.notifier != nil {
		s.notifier.ImportCompleted(context.Background(), final)
	}
	return nil
}

// finish maps a pipeline error to the terminal state. Cancellation is a
// graceful stop, not a failure; everything else fails the job while keeping
// the effects of already-committed batches.
func (s *Service) finish(tracker *Tracker, log *logrus.Entry, err error) error {
	if errors.Is(err, context.Canceled) {
		tracker.SetStatus(models.JobStatusCancelled, "Cancelled by request")
		log.Info("Import cancelled")
		return nil
	}
	tracker.SetStatus(models.JobStatusFailed, err.Error())
	log.WithError(err).Error("Import failed")
	return err
}

// countDataRows counts newline-delimited rows minus the header. A cheap
// first pass over the file so progress can be reported as a percentage.
func countDataRows(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var lines int64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if lines == 0 {
		return 0, nil
	}
	return lines - 1, nil
}
