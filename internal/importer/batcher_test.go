package importer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// fakeStore records committed batches and can be scripted to fail a number
// of times before succeeding.
type fakeStore struct {
	mu       sync.Mutex
	batches  [][]ValidatedProduct
	failures int
	pingErr  error
	rows     map[string]ValidatedProduct
	onCommit func(batchNum int) // called after each successful commit
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]ValidatedProduct)}
}

func (s *fakeStore) Ping(ctx context.Context) error {
	if s.pingErr != nil {
		return s.pingErr
	}
	return ctx.Err()
}

func (s *fakeStore) UpsertBatch(ctx context.Context, products []ValidatedProduct) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return 0, errors.New("connection reset")
	}
	batch := append([]ValidatedProduct(nil), products...)
	s.batches = append(s.batches, batch)
	for _, p := range batch {
		s.rows[p.SKUNormalized] = p
	}
	if s.onCommit != nil {
		s.onCommit(len(s.batches))
	}
	return int64(len(batch)), nil
}

func (s *fakeStore) committedBatches() [][]ValidatedProduct {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

func (s *fakeStore) get(key string) (ValidatedProduct, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[key]
	return p, ok
}

func testLogEntry() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func product(sku, name string) ValidatedProduct {
	return ValidatedProduct{SKU: sku, SKUNormalized: NormalizeSKU(sku), Name: name, Active: true}
}

func TestBatchUpserter_CommitsWhenFull(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(DefaultErrorCap, nil)
	batcher := NewBatchUpserter(store, tracker, testLogEntry(), 2, 0)

	ctx := context.Background()
	assert.NoError(t, batcher.Add(ctx, product("A-1", "one")))
	assert.Empty(t, store.committedBatches())

	assert.NoError(t, batcher.Add(ctx, product("A-2", "two")))
	assert.Len(t, store.committedBatches(), 1)

	assert.NoError(t, batcher.Add(ctx, product("A-3", "three")))
	assert.NoError(t, batcher.Flush(ctx))
	assert.Len(t, store.committedBatches(), 2)
	assert.Len(t, store.committedBatches()[1], 1)

	assert.Equal(t, int64(3), tracker.Snapshot().RowsUpserted)
}

func TestBatchUpserter_FlushOnEmptyBatchIsNoop(t *testing.T) {
	store := newFakeStore()
	batcher := NewBatchUpserter(store, newTestTracker(DefaultErrorCap, nil), testLogEntry(), 10, 0)

	assert.NoError(t, batcher.Flush(context.Background()))
	assert.Empty(t, store.committedBatches())
}

func TestBatchUpserter_DuplicateKeyInBatchLastWins(t *testing.T) {
	store := newFakeStore()
	batcher := NewBatchUpserter(store, newTestTracker(DefaultErrorCap, nil), testLogEntry(), 10, 0)

	ctx := context.Background()
	assert.NoError(t, batcher.Add(ctx, product("ABC-1", "first")))
	assert.NoError(t, batcher.Add(ctx, product("xyz-9", "other")))
	assert.NoError(t, batcher.Add(ctx, product("abc-1", "second")))
	assert.NoError(t, batcher.Flush(ctx))

	batches := store.committedBatches()
	assert.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)

	winner, ok := store.get("abc-1")
	assert.True(t, ok)
	assert.Equal(t, "second", winner.Name)
	assert.Equal(t, "abc-1", winner.SKU)
}

func TestBatchUpserter_RetriesTransientFailures(t *testing.T) {
	store := newFakeStore()
	store.failures = 2
	tracker := newTestTracker(DefaultErrorCap, nil)
	batcher := NewBatchUpserter(store, tracker, testLogEntry(), 10, 3)
	batcher.retryDelay = time.Millisecond

	ctx := context.Background()
	assert.NoError(t, batcher.Add(ctx, product("A-1", "one")))
	assert.NoError(t, batcher.Flush(ctx))

	assert.Len(t, store.committedBatches(), 1)
	assert.Equal(t, int64(1), tracker.Snapshot().RowsUpserted)
}

func TestBatchUpserter_ExhaustedRetriesReturnCommitError(t *testing.T) {
	store := newFakeStore()
	store.failures = 100
	batcher := NewBatchUpserter(store, newTestTracker(DefaultErrorCap, nil), testLogEntry(), 10, 2)
	batcher.retryDelay = time.Millisecond

	ctx := context.Background()
	assert.NoError(t, batcher.Add(ctx, product("A-1", "one")))
	err := batcher.Flush(ctx)

	var commitErr *BatchCommitError
	assert.True(t, errors.As(err, &commitErr))
	assert.Equal(t, 3, commitErr.Attempts)
	assert.Empty(t, store.committedBatches())
}

func TestBatchUpserter_CancelledContextAbortsBeforeUpsert(t *testing.T) {
	store := newFakeStore()
	batcher := NewBatchUpserter(store, newTestTracker(DefaultErrorCap, nil), testLogEntry(), 10, 3)

	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, batcher.Add(ctx, product("A-1", "one")))
	cancel()

	err := batcher.Flush(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, store.committedBatches())
}

func TestBatchUpserter_ClampsConfiguredLimits(t *testing.T) {
	batcher := NewBatchUpserter(newFakeStore(), newTestTracker(DefaultErrorCap, nil), testLogEntry(), MaxBatchSize+1, MaxRetries+10)
	assert.Equal(t, MaxBatchSize, batcher.size)
	assert.Equal(t, MaxRetries, batcher.maxRetries)

	batcher = NewBatchUpserter(newFakeStore(), newTestTracker(DefaultErrorCap, nil), testLogEntry(), 0, -1)
	assert.Equal(t, DefaultBatchSize, batcher.size)
	assert.Equal(t, DefaultRetries, batcher.maxRetries)
}
