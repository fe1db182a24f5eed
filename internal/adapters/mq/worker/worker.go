// Package worker runs rating tasks from the queue on a pool of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/gridrank/internal/adapters/mq/queue"
	"github.com/okian/gridrank/pkg/logger"
	"github.com/okian/gridrank/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Submitter is the producing side of a queue.
type Submitter interface {
	EnqueueWait(ctx context.Context, t queue.Task) error
}

// Worker executes tasks until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for tasks from an in-process queue.
type InMemoryWorker struct {
	queue Queue
	name  string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	tasks := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			err := w.process(ctx, t)
			if err != nil {
				w.logger.Debug(ctx, "task failed",
					logger.String("task", t.ID), logger.String("entity", t.Entity), logger.Error(err))
			}
			if t.Done != nil {
				t.Done(err)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs one task, turning a panic into an error.
func (w *InMemoryWorker) process(ctx context.Context, t queue.Task) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: task %s: %v", ErrTaskPanic, t.ID, r)
		}
		if err != nil {
			metrics.RecordWorkerError()
		}
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000.0)
	}()
	if t.Run == nil {
		return fmt.Errorf("%w: %s", ErrEmptyTask, t.ID)
	}
	return t.Run(ctx)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	submit  Submitter
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers reading q. A count below one
// means one worker per CPU.
func NewPool(workerCount int, q queue.Queue) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		submit:  q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewInMemoryWorker(q, WithName("worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Batch submits tasks and waits until every one has finished. Each task runs
// with ctx and its own Done is still called. The returned error joins every
// task error. When ctx ends first, tasks that have not started are skipped and
// Batch returns once the started ones have finished.
func (p *Pool) Batch(ctx context.Context, tasks []queue.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	var (
		wg        sync.WaitGroup
		running   sync.WaitGroup
		mu        sync.Mutex
		abandoned bool
		errs      []error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}
	for _, t := range tasks {
		id, run, inner := t.ID, t.Run, t.Done
		// started and skipped are only touched by the worker running the task.
		var started, skipped bool
		t.Run = func(context.Context) error {
			mu.Lock()
			if abandoned || ctx.Err() != nil {
				mu.Unlock()
				skipped = true
				return ctx.Err()
			}
			running.Add(1)
			mu.Unlock()
			started = true
			if run == nil {
				return fmt.Errorf("%w: %s", ErrEmptyTask, id)
			}
			return run(ctx)
		}
		t.Done = func(err error) {
			if !skipped {
				if inner != nil {
					inner(err)
				}
				record(err)
			}
			if started {
				running.Done()
			}
			wg.Done()
		}
		wg.Add(1)
		if err := p.submit.EnqueueWait(ctx, t); err != nil {
			wg.Done()
			record(fmt.Errorf("submit %s: %w", t.ID, err))
		}
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		mu.Lock()
		abandoned = true
		errs = append(errs, err)
		mu.Unlock()
		running.Wait()
	}
	mu.Lock()
	defer mu.Unlock()
	return errors.Join(errs...)
}

// Shutdown closes the queue and waits for the workers to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
