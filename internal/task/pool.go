// Package task provides a bounded in-process worker pool for best-effort
// background jobs: customer notifications, status-history writes and
// low-stock checks. Delivery is at-most-once. A saturated queue drops the
// task, a failed task is logged and never retried, and nothing that happens
// here can reach back into the transaction that scheduled the work.
package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Func is one unit of background work.
type Func func(ctx context.Context) error

type job struct {
	name string
	fn   Func
}

// Pool runs enqueued jobs on a fixed set of worker goroutines.
type Pool struct {
	lg      *zap.Logger
	jobs    chan job
	grp     *errgroup.Group
	baseCtx context.Context

	mu     sync.Mutex
	closed bool
}

// jobTimeout bounds a single task execution.
const jobTimeout = 30 * time.Second

// NewPool creates a pool with the given queue capacity.
func NewPool(lg *zap.Logger, queueSize int) *Pool {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Pool{
		lg:   lg,
		jobs: make(chan job, queueSize),
	}
}

// Start launches the workers. They run until Close, which drains the queue;
// jobs execute detached from ctx so caller cancellation never aborts them,
// only the per-job timeout does.
func (p *Pool) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 4
	}
	p.baseCtx = context.WithoutCancel(ctx)
	p.grp = &errgroup.Group{}
	for range workers {
		p.grp.Go(func() error {
			for j := range p.jobs {
				p.run(j)
			}
			return nil
		})
	}
}

// Enqueue schedules fn under name. It never blocks: when the queue is full
// or the pool is closed the task is dropped with a warning, which is the
// at-most-once contract.
func (p *Pool) Enqueue(name string, fn func(ctx context.Context) error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.lg.Warn("task dropped, pool closed", zap.String("task", name))
		return
	}
	select {
	case p.jobs <- job{name: name, fn: fn}:
		p.mu.Unlock()
	default:
		p.mu.Unlock()
		p.lg.Warn("task dropped, queue full", zap.String("task", name))
	}
}

// Close stops accepting work and waits for queued jobs to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	_ = p.grp.Wait()
}

// run executes one job, recovering panics and swallowing errors; failures
// are logged only.
func (p *Pool) run(j job) {
	ctx, cancel := context.WithTimeout(p.baseCtx, jobTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			p.lg.Error("task panicked",
				zap.String("task", j.name),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
		}
	}()

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		p.lg.Error("task failed",
			zap.String("task", j.name),
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
		)
		return
	}
	p.lg.Debug("task done",
		zap.String("task", j.name),
		zap.Duration("elapsed", time.Since(start)),
	)
}
