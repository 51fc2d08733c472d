package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrNotRun marks jobs skipped because the context ended first.
var ErrNotRun = errors.New("job not run")

// Result is the outcome of one job.
type Result[R any] struct {
	Value R
	Err   error
}

// PanicError wraps a panic raised inside a job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// Map applies fn to every job on exec. Result i always belongs to jobs[i].
// A job's error or panic is captured in its own Result and never stops the
// others.
func Map[T, R any](ctx context.Context, exec Executor, jobs []T, fn func(ctx context.Context, job T) (R, error)) []Result[R] {
	results := make([]Result[R], len(jobs))
	ran := make([]bool, len(jobs))
	exec.Run(ctx, len(jobs), func(ctx context.Context, i int) {
		ran[i] = true
		results[i] = call(ctx, jobs[i], fn)
	})
	for i := range results {
		if !ran[i] {
			err := ctx.Err()
			if err == nil {
				err = ErrNotRun
			}
			results[i].Err = fmt.Errorf("%w: %w", ErrNotRun, err)
		}
	}
	return results
}

func call[T, R any](ctx context.Context, job T, fn func(ctx context.Context, job T) (R, error)) (res Result[R]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[R]{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()
	v, err := fn(ctx, job)
	return Result[R]{Value: v, Err: err}
}
