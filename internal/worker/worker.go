package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool closed")

type ProcessFunc[T any] func(ctx context.Context, job T) error

type task[T any] struct {
	job  T
	done func(error)
}

// Pool runs jobs on a fixed number of workers. Queued jobs are always
// drained before Stop returns, so batch callers never wait forever.
type Pool[T any] struct {
	name       string
	numWorkers int
	jobs       chan task[T]
	processor  ProcessFunc[T]
	wg         sync.WaitGroup

	mu       sync.RWMutex
	closed   bool
	quit     chan struct{}
	stopOnce sync.Once
}

func NewPool[T any](name string, numWorkers, bufferSize int, processor ProcessFunc[T]) *Pool[T] {
	return &Pool[T]{
		name:       name,
		numWorkers: max(numWorkers, 1),
		jobs:       make(chan task[T], bufferSize),
		processor:  processor,
		quit:       make(chan struct{}),
	}
}

func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for t := range p.jobs {
		err := p.run(ctx, t.job)
		if err != nil {
			slog.Error("job failed", "pool", p.name, "worker", id, "error", err)
		}
		if t.done != nil {
			t.done(err)
		}
	}
}

func (p *Pool[T]) run(ctx context.Context, job T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return p.processor(ctx, job)
}

// Submit queues a job without waiting for it.
func (p *Pool[T]) Submit(ctx context.Context, job T) error {
	return p.submit(ctx, task[T]{job: job})
}

func (p *Pool[T]) submit(ctx context.Context, t task[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.jobs <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrPoolClosed
	}
}

// RunBatch queues every job and waits for all of them. The returned slice
// holds each job's error at the job's index.
func (p *Pool[T]) RunBatch(ctx context.Context, jobs []T) []error {
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		t := task[T]{
			job: job,
			done: func(err error) {
				errs[i] = err
				wg.Done()
			},
		}
		if err := p.submit(ctx, t); err != nil {
			errs[i] = err
			wg.Done()
		}
	}

	wg.Wait()
	return errs
}

func (p *Pool[T]) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)

		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()

		p.wg.Wait()
	})
}
