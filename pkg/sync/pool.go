// Package sync adapts third-party goroutine-pool implementations (ants,
// gammazero/workerpool, sourcegraph/conc) behind one interface, plus a
// semaphore-based concurrency Limiter, so internal/pool can pick a backend
// by name and internal/wikiclient/internal/ratelimit can cap concurrent
// wiki requests independently of whichever pool backend is running.
package sync

import (
	"github.com/gammazero/workerpool"
	"github.com/panjf2000/ants/v2"
	conc "github.com/sourcegraph/conc/pool"

	"github.com/Tangerg/wikigraph/pkg/safe"
)

// Pool is the common interface every worker-pool backend is adapted to.
type Pool interface {
	// Submit runs f concurrently, according to the backend's own scheduling
	// and concurrency limits.
	Submit(f func()) error
}

// poolAdapter turns a plain submit function into a Pool.
type poolAdapter func(f func()) error

func (p poolAdapter) Submit(f func()) error {
	return p(f)
}

// PoolOfNoPool launches a new, panic-recovering goroutine per submission —
// the fallback internal/pool.New uses for an unknown or empty backend name.
func PoolOfNoPool() Pool {
	return poolAdapter(func(f func()) error {
		safe.Go(f)
		return nil
	})
}

// PoolOfConc adapts a sourcegraph/conc pool. Panics if pool is nil.
func PoolOfConc(pool *conc.Pool) Pool {
	if pool == nil {
		panic("conc pool is nil")
	}
	return poolAdapter(func(f func()) error {
		pool.Go(f)
		return nil
	})
}

// PoolOfAnts adapts a panjf2000/ants pool. Panics if pool is nil.
func PoolOfAnts(pool *ants.Pool) Pool {
	if pool == nil {
		panic("ants pool is nil")
	}
	return poolAdapter(func(f func()) error {
		return pool.Submit(f)
	})
}

// PoolOfWorkerpool adapts a gammazero/workerpool. Panics if pool is nil.
func PoolOfWorkerpool(pool *workerpool.WorkerPool) Pool {
	if pool == nil {
		panic("worker pool is nil")
	}
	return poolAdapter(func(f func()) error {
		pool.Submit(f)
		return nil
	})
}
