package source

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// FetchPool bounds concurrent raster I/O across the whole process. All
// sources share one pool so a burst of requests cannot multiply band fetches
// past the configured ceiling.
type FetchPool struct {
	sem *semaphore.Weighted
}

func NewFetchPool(size int) *FetchPool {
	if size < 1 {
		size = 1
	}
	return &FetchPool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn once a pool slot is available. Waiting respects ctx.
func (p *FetchPool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
