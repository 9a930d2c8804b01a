package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Lease is a fetcher checked out of a Pool. Release returns it; calling
// Release more than once is harmless.
type Lease interface {
	PageFetcher
	Release()
}

// Pool hands out fetcher leases, blocking while all are in use.
type Pool interface {
	Acquire(ctx context.Context) (Lease, error)
	Close() error
}

// BoundedPool shares one PageFetcher among at most size concurrent holders.
type BoundedPool struct {
	fetcher PageFetcher
	sem     *semaphore.Weighted
	size    int64
	inUse   atomic.Int64
	closed  atomic.Bool
}

// NewBoundedPool creates a pool of size leases on f. A size below one is
// treated as one.
func NewBoundedPool(f PageFetcher, size int) *BoundedPool {
	if size < 1 {
		size = 1
	}
	return &BoundedPool{
		fetcher: f,
		sem:     semaphore.NewWeighted(int64(size)),
		size:    int64(size),
	}
}

// Acquire waits for a free lease or for ctx to be done.
func (p *BoundedPool) Acquire(ctx context.Context) (Lease, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.inUse.Add(1)
	return &boundedLease{PageFetcher: p.fetcher, pool: p}, nil
}

// InUse returns the number of outstanding leases.
func (p *BoundedPool) InUse() int { return int(p.inUse.Load()) }

// Size returns the maximum number of concurrent leases.
func (p *BoundedPool) Size() int { return int(p.size) }

// Close rejects further Acquire calls. Outstanding leases stay valid.
func (p *BoundedPool) Close() error {
	p.closed.Store(true)
	return nil
}

type boundedLease struct {
	PageFetcher
	pool *BoundedPool
	once sync.Once
}

func (l *boundedLease) Release() {
	l.once.Do(func() {
		l.pool.inUse.Add(-1)
		l.pool.sem.Release(1)
	})
}

// Unpooled wraps a PageFetcher as a Pool without a bound. Every Acquire
// succeeds immediately.
func Unpooled(f PageFetcher) Pool {
	return unpooled{f: f}
}

type unpooled struct {
	f PageFetcher
}

func (u unpooled) Acquire(context.Context) (Lease, error) {
	return nopLease{PageFetcher: u.f}, nil
}

func (unpooled) Close() error { return nil }

type nopLease struct {
	PageFetcher
}

func (nopLease) Release() {}

// FetchFunc adapts a function to PageFetcher.
type FetchFunc func(ctx context.Context, url string, timeout time.Duration) (*Page, error)

// Fetch calls fn.
func (fn FetchFunc) Fetch(ctx context.Context, url string, timeout time.Duration) (*Page, error) {
	return fn(ctx, url, timeout)
}
