// Package dispatch runs independent per-item jobs sequentially or on a
// bounded worker pool, returning results in submission order.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/sermon-harvester/internal/metrics"
)

// Executor schedules n tasks. Run returns once every started task has
// finished; tasks not yet started when ctx ends are skipped.
type Executor interface {
	Run(ctx context.Context, n int, task func(ctx context.Context, i int))
	Workers() int
}

// Option configures an executor built by New.
type Option func(*options)

type options struct {
	jobTimeout time.Duration
	poolCheck  func() bool
}

// WithJobTimeout bounds every task with its own deadline.
func WithJobTimeout(d time.Duration) Option {
	return func(o *options) { o.jobTimeout = d }
}

// WithPoolCheck replaces the capability check deciding whether a pool may be used.
func WithPoolCheck(check func() bool) Option {
	return func(o *options) { o.poolCheck = check }
}

// New returns a Pool of size cores when cores > 1 and the host supports
// parallel execution, and a Sequential executor otherwise.
func New(cores int, opts ...Option) Executor {
	o := options{poolCheck: PoolAvailable}
	for _, opt := range opts {
		opt(&o)
	}
	if cores > 1 && o.poolCheck() {
		return &Pool{size: cores, jobTimeout: o.jobTimeout}
	}
	return &Sequential{JobTimeout: o.jobTimeout}
}

// Sequential runs tasks one after another in submission order.
type Sequential struct {
	JobTimeout time.Duration
}

// Run implements Executor.
func (s *Sequential) Run(ctx context.Context, n int, task func(ctx context.Context, i int)) {
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		runOne(ctx, s.JobTimeout, i, task)
	}
}

// Workers implements Executor.
func (s *Sequential) Workers() int {
	return 1
}

// Pool runs up to size tasks concurrently.
type Pool struct {
	size       int
	jobTimeout time.Duration
}

// NewPool returns a Pool with the given size (at least 1).
func NewPool(size int, jobTimeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, jobTimeout: jobTimeout}
}

// Run implements Executor.
func (p *Pool) Run(ctx context.Context, n int, task func(ctx context.Context, i int)) {
	sem := semaphore.NewWeighted(int64(p.size))
	done := make(chan struct{}, n)
	started := 0
	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		started++
		go func(i int) {
			defer func() { done <- struct{}{} }()
			defer sem.Release(1)
			runOne(ctx, p.jobTimeout, i, task)
		}(i)
	}
	for ; started > 0; started-- {
		<-done
	}
}

// Workers implements Executor.
func (p *Pool) Workers() int {
	return p.size
}

func runOne(ctx context.Context, timeout time.Duration, i int, task func(ctx context.Context, i int)) {
	jobCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()
	task(jobCtx, i)
}
