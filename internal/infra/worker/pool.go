// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Task is one unit of work. A returned error or panic is logged and never
// stops the goroutine that ran it.
type Task func(ctx context.Context) error

var (
	ErrNilTask    = errors.New("nil task")
	ErrQueueFull  = errors.New("worker pool saturated")
	ErrPoolClosed = errors.New("worker pool stopped")
)

// Pool keeps a fixed set of warm workers and starts extra goroutines when
// all of them are busy, so a task never waits behind another one. The
// number of extra goroutines is capped.
type Pool struct {
	wg      sync.WaitGroup
	handoff chan Task // unbuffered: a send succeeds only if a worker is idle
	quit    chan struct{}
	n       int
	logger  *zerolog.Logger

	mu          sync.Mutex
	ctx         context.Context
	overflow    atomic.Int64
	maxOverflow int64

	stopOnce sync.Once
	stopped  atomic.Bool
}

// NewPool creates a pool with the given worker count and extra-goroutine
// cap. Non-positive values fall back to NumCPU workers and 4 extra
// goroutines per worker.
func NewPool(workers, maxOverflow int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if maxOverflow <= 0 {
		maxOverflow = workers * 4
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "worker_pool").Logger()
	return &Pool{
		handoff:     make(chan Task),
		quit:        make(chan struct{}),
		n:           workers,
		logger:      &l,
		ctx:         context.Background(),
		maxOverflow: int64(maxOverflow),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.mu.Unlock()
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.handoff:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

// Stop refuses new tasks and waits for every running one, extra
// goroutines included.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped.Store(true)
		close(p.quit)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

// Go starts task right away and never blocks: on an idle worker if there
// is one, otherwise on an extra goroutine. Once the extra-goroutine cap is
// reached it returns ErrQueueFull.
func (p *Pool) Go(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped.Load() {
		return ErrPoolClosed
	}
	select {
	case p.handoff <- task:
		return nil
	default:
	}
	if p.overflow.Add(1) > p.maxOverflow {
		p.overflow.Add(-1)
		return ErrQueueFull
	}
	p.wg.Add(1)
	ctx := p.ctx
	go func() {
		defer p.wg.Done()
		defer p.overflow.Add(-1)
		p.run(ctx, -1, task)
	}()
	return nil
}

// Overflow is the number of extra goroutines currently running.
func (p *Pool) Overflow() int { return int(p.overflow.Load()) }

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error().Int("worker", id).Str("panic", fmt.Sprint(rec)).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.logger.Warn().Int("worker", id).Err(err).Msg("task error")
	}
}
