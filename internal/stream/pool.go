package stream

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/soundwatch/internal/observe"
)

// Pool bounds the number of inference jobs running across all sessions.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool running at most workers jobs at once. Values below
// one are raised to one.
func NewPool(workers int) *Pool {
	workers = max(workers, 1)
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), size: workers}
}

// Size reports the worker limit.
func (p *Pool) Size() int { return p.size }

// Go waits for a free worker and runs job on it, tracked by wg. The wait
// ends early with ctx's error when ctx is cancelled; job is then not run.
// job receives a context that carries ctx's values but not its
// cancellation, so a started job always completes.
func (p *Pool) Go(ctx context.Context, wg *sync.WaitGroup, job func(context.Context)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	jobCtx := observe.Detach(ctx)
	wg.Go(func() {
		defer p.sem.Release(1)
		job(jobCtx)
	})
	return nil
}
