// Package pool runs CPU-bound inference on a bounded set of workers so request
// goroutines never do model math directly.
package pool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanwahyu/skiniq/internal/metrics"
)

// ErrClosed is returned when a task is submitted after Close.
var ErrClosed = errors.New("inference pool closed")

type task struct {
	ctx context.Context
	fn  func(ctx context.Context)
}

// Pool is a fixed set of workers fed from a bounded queue.
type Pool struct {
	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	log    zerolog.Logger
}

// New starts workers goroutines with a queue of the given capacity.
func New(workers, queue int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{
		tasks: make(chan task, queue),
		log:   log.With().Str("component", "inference_pool").Logger(),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.log.Info().Int("workers", workers).Int("queue", queue).Msg("inference pool started")
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		metrics.InferenceQueueDepth.Dec()
		t.fn(t.ctx)
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
	p.log.Info().Msg("inference pool stopped")
}

func (p *Pool) submit(ctx context.Context, t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	metrics.InferenceQueueDepth.Inc()
	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		metrics.InferenceQueueDepth.Dec()
		return ctx.Err()
	}
}

// Run executes fn on a worker and waits for its result. A nil pool runs fn inline.
// If ctx ends first Run returns ctx.Err(); fn still sees the cancelled ctx.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	start := time.Now()
	err := p.submit(ctx, task{ctx: ctx, fn: func(ctx context.Context) {
		var r result
		if ctx.Err() != nil {
			r.err = ctx.Err()
		} else {
			r.v, r.err = fn(ctx)
		}
		done <- r
	}})
	if err != nil {
		var zero T
		return zero, err
	}

	select {
	case r := <-done:
		if d := time.Since(start); d > time.Second {
			p.log.Debug().Dur("duration", d).Msg("slow inference task")
		}
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
