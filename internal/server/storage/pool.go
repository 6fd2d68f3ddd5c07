package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// workerPool bounds the number of filesystem operations running at once.
type workerPool struct {
	sem *semaphore.Weighted
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = 1
	}
	return &workerPool{sem: semaphore.NewWeighted(int64(size))}
}

func (p *workerPool) do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// pathLocks serializes mutations of the same absolute path.
type pathLocks struct {
	mu sync.Mutex
	m  map[string]*pathLock
}

type pathLock struct {
	sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{m: make(map[string]*pathLock)}
}

// lock blocks until key is free and returns the matching unlock.
func (l *pathLocks) lock(key string) func() {
	l.mu.Lock()
	pl, ok := l.m[key]
	if !ok {
		pl = &pathLock{}
		l.m[key] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()

	return func() {
		pl.Unlock()

		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
