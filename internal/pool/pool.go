// Package pool selects one of the worker-pool backends pkg/sync already
// adapts (ants, workerpool, conc, or a plain no-pool goroutine launcher) by
// name, so each pipeline stage's concurrency backend is a config knob rather
// than a compile-time choice (spec §4.5/§4.7 "parallel worker pool with
// configurable concurrency").
package pool

import (
	"fmt"

	"github.com/gammazero/workerpool"
	"github.com/panjf2000/ants/v2"
	concpool "github.com/sourcegraph/conc/pool"

	syncx "github.com/Tangerg/wikigraph/pkg/sync"
)

// Backend names a worker-pool implementation.
type Backend string

const (
	Ants       Backend = "ants"
	Workerpool Backend = "workerpool"
	Conc       Backend = "conc"
	NoPool     Backend = "none"
)

// New constructs a syncx.Pool backed by the named implementation, capped at
// concurrency workers. An unknown or empty backend falls back to NoPool.
func New(backend Backend, concurrency int) (syncx.Pool, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	switch backend {
	case Ants:
		p, err := ants.NewPool(concurrency)
		if err != nil {
			return nil, fmt.Errorf("pool: new ants pool: %w", err)
		}
		return syncx.PoolOfAnts(p), nil
	case Workerpool:
		return syncx.PoolOfWorkerpool(workerpool.New(concurrency)), nil
	case Conc:
		return syncx.PoolOfConc(concpool.New().WithMaxGoroutines(concurrency)), nil
	default:
		return syncx.PoolOfNoPool(), nil
	}
}
