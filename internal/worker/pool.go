package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned when the submission queue has no capacity
var ErrQueueFull = errors.New("worker queue is full")

// Task is a unit of background work. The context is cancelled when the
// pool shuts down.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed set of workers. Submission is
// fire-and-forget: callers get a job handle from whoever created the task
// and poll for progress elsewhere. Each import job occupies one worker for
// its whole run, so the pool size is the number of concurrent imports.
type Pool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Entry
}

// NewPool starts size workers with a bounded submission queue
func NewPool(size, queueDepth int, logger *logrus.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if queueDepth < size {
		queueDepth = size
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan Task, queueDepth),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.WithField("component", "worker-pool"),
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.WithFields(logrus.Fields{
						"worker": id,
						"panic":  r,
					}).Error("Task panicked")
				}
			}()
			task(p.ctx)
		}()
	}
}

// Submit enqueues a task without blocking. Returns ErrQueueFull when the
// queue is at capacity so callers can surface backpressure.
func (p *Pool) Submit(task Task) error {
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued tasks to drain. When
// ctx expires first, running tasks get their context cancelled so imports
// stop at the next batch boundary.
func (p *Pool) Shutdown(ctx context.Context) error {
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
