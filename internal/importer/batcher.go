package importer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBatchSize = 1000 // Rows per upsert batch
	MaxBatchSize     = 5000 // Upper bound for configured batch size
	DefaultRetries   = 3    // Retry attempts for failed batches
	MaxRetries       = 5    // Upper bound for configured retries
)

// Store is the upsert-by-key contract the pipeline consumes. UpsertBatch
// must be atomic per call: insert rows whose normalized SKU is absent,
// overwrite name/description/active for rows whose key exists.
type Store interface {
	Ping(ctx context.Context) error
	UpsertBatch(ctx context.Context, products []ValidatedProduct) (int64, error)
}

// BatchUpserter accumulates validated products into fixed-size batches and
// commits each one as a single upsert. Batches commit strictly in file
// order, which is what makes last-write-wins hold across batch boundaries.
type BatchUpserter struct {
	store      Store
	tracker    *Tracker
	logger     *logrus.Entry
	size       int
	maxRetries int
	retryDelay time.Duration

	batch    []ValidatedProduct
	index    map[string]int // normalized SKU -> position in current batch
	batchNum int
}

func NewBatchUpserter(store Store, tracker *Tracker, logger *logrus.Entry, size, maxRetries int) *BatchUpserter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}
	if maxRetries < 0 {
		maxRetries = DefaultRetries
	}
	if maxRetries > MaxRetries {
		maxRetries = MaxRetries
	}
	return &BatchUpserter{
		store:      store,
		tracker:    tracker,
		logger:     logger,
		size:       size,
		maxRetries: maxRetries,
		retryDelay: 100 * time.Millisecond,
		batch:      make([]ValidatedProduct, 0, size),
		index:      make(map[string]int, size),
	}
}

// Add appends a product to the current batch. A duplicate normalized SKU
// within the batch overwrites the earlier occurrence in place, so the later
// row in file order wins and the batch never trips the unique constraint
// against itself. When the batch is full it is committed before returning.
func (b *BatchUpserter) Add(ctx context.Context, product ValidatedProduct) error {
	if pos, ok := b.index[product.SKUNormalized]; ok {
		b.batch[pos] = product
		return nil
	}
	b.index[product.SKUNormalized] = len(b.batch)
	b.batch = append(b.batch, product)

	if len(b.batch) >= b.size {
		return b.commit(ctx)
	}
	return nil
}

// Flush commits whatever remains in the current batch
func (b *BatchUpserter) Flush(ctx context.Context) error {
	if len(b.batch) == 0 {
		return nil
	}
	return b.commit(ctx)
}

// commit sends the batch with bounded retries and exponential backoff.
// Cancellation is observed here, at the batch boundary: a cancelled context
// aborts before the upsert is issued, leaving earlier batches untouched.
func (b *BatchUpserter) commit(ctx context.Context) error {
	b.batchNum++
	rows := len(b.batch)

	var lastErr error
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		upserted, err := b.store.UpsertBatch(ctx, b.batch)
		if err == nil {
			b.tracker.AddUpserted(upserted)
			b.logger.WithFields(logrus.Fields{
				"batch": b.batchNum,
				"rows":  rows,
			}).Debug("Batch committed")
			b.batch = b.batch[:0]
			b.index = make(map[string]int, b.size)
			return nil
		}

		lastErr = err
		b.logger.WithError(err).WithFields(logrus.Fields{
			"batch":   b.batchNum,
			"attempt": attempt + 1,
		}).Warn("Batch upsert failed")

		if attempt < b.maxRetries {
			select {
			case <-time.After(b.retryDelay * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return &BatchCommitError{Batch: b.batchNum, Attempts: b.maxRetries + 1, Err: lastErr}
}
