// Package deadline runs CPU-bound work with a bounded concurrency and a hard
// per-call time limit.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/ragstore/internal/domain"
)

// Defaults applied by NewPool.
const (
	DefaultTimeout       = 60 * time.Second
	DefaultMaxConcurrent = 4
)

// Pool limits how many functions run at once. Waiting for a slot counts
// against the caller's timeout.
type Pool struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewPool creates a pool. Non-positive arguments fall back to defaults.
func NewPool(maxConcurrent int, timeout time.Duration) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pool{sem: semaphore.NewWeighted(int64(maxConcurrent)), timeout: timeout}
}

// Timeout returns the default per-call limit.
func (p *Pool) Timeout() time.Duration { return p.timeout }

// Run executes fn under the pool's default timeout.
func Run[T any](ctx context.Context, p *Pool, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return RunWithin(ctx, p, op, p.timeout, fn)
}

// RunWithin executes fn with a limit of timeout. On expiry it returns a
// *domain.TimeoutError immediately; fn keeps its slot until it returns, and
// its result is discarded. fn must honour ctx to release the slot early.
func RunWithin[T any](
	ctx context.Context, p *Pool, op string, timeout time.Duration, fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return zero, wrapCtxErr(ctx, op, timeout, err)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, wrapCtxErr(ctx, op, timeout, err)
	}

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn(ctx)
		done <- outcome{val: v, err: err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-ctx.Done():
		select {
		case out := <-done:
			return out.val, out.err
		default:
		}
		return zero, wrapCtxErr(ctx, op, timeout, ctx.Err())
	}
}

func wrapCtxErr(ctx context.Context, op string, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.TimeoutError{Op: op, After: timeout}
	}
	return fmt.Errorf("%s: %w", op, err)
}
