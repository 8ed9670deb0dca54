package sync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/panjf2000/ants/v2"
	conc "github.com/sourcegraph/conc/pool"
)

func TestPoolOfNoPool(t *testing.T) {
	t.Run("executes a submitted fragment-processing job", func(t *testing.T) {
		pool := PoolOfNoPool()

		var wg sync.WaitGroup
		wg.Add(1)
		var executed bool
		err := pool.Submit(func() {
			executed = true
			wg.Done()
		})
		if err != nil {
			t.Errorf("Submit() error = %v, want nil", err)
		}
		wg.Wait()
		if !executed {
			t.Error("job was not executed")
		}
	})

	t.Run("recovers a panicking job instead of crashing", func(t *testing.T) {
		pool := PoolOfNoPool()

		var wg sync.WaitGroup
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			panic("malformed candidate")
		})
		if err != nil {
			t.Errorf("Submit() error = %v, want nil", err)
		}
		wg.Wait()
	})

	t.Run("runs many jobs concurrently", func(t *testing.T) {
		pool := PoolOfNoPool()

		const numJobs = 100
		var counter int32
		var wg sync.WaitGroup
		wg.Add(numJobs)
		for i := 0; i < numJobs; i++ {
			if err := pool.Submit(func() {
				atomic.AddInt32(&counter, 1)
				wg.Done()
			}); err != nil {
				t.Errorf("Submit() error = %v, want nil", err)
			}
		}
		wg.Wait()
		if counter != numJobs {
			t.Errorf("counter = %d, want %d", counter, numJobs)
		}
	})
}

func TestPoolOfConc(t *testing.T) {
	t.Run("panics on a nil pool", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("PoolOfConc(nil) should panic")
			}
		}()
		_ = PoolOfConc(nil)
	})

	t.Run("caps concurrency at the pool's max goroutines", func(t *testing.T) {
		concPool := conc.New().WithMaxGoroutines(3)
		pool := PoolOfConc(concPool)

		var current, max int32
		const numJobs = 20
		for i := 0; i < numJobs; i++ {
			if err := pool.Submit(func() {
				c := atomic.AddInt32(&current, 1)
				for {
					old := atomic.LoadInt32(&max)
					if c <= old || atomic.CompareAndSwapInt32(&max, old, c) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&current, -1)
			}); err != nil {
				t.Errorf("Submit() error = %v, want nil", err)
			}
		}
		concPool.Wait()

		if max > 3 {
			t.Errorf("max concurrent = %d, want <= 3", max)
		}
	})
}

func TestPoolOfAnts(t *testing.T) {
	t.Run("panics on a nil pool", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("PoolOfAnts(nil) should panic")
			}
		}()
		_ = PoolOfAnts(nil)
	})

	t.Run("runs submitted jobs", func(t *testing.T) {
		antsPool, err := ants.NewPool(5)
		if err != nil {
			t.Fatalf("ants.NewPool: %v", err)
		}
		defer antsPool.Release()

		pool := PoolOfAnts(antsPool)
		var counter int32
		const numJobs = 20
		var wg sync.WaitGroup
		wg.Add(numJobs)
		for i := 0; i < numJobs; i++ {
			if err := pool.Submit(func() {
				atomic.AddInt32(&counter, 1)
				wg.Done()
			}); err != nil {
				t.Errorf("Submit() error = %v, want nil", err)
			}
		}
		wg.Wait()
		if counter != numJobs {
			t.Errorf("counter = %d, want %d", counter, numJobs)
		}
	})
}

func TestPoolOfWorkerpool(t *testing.T) {
	t.Run("panics on a nil pool", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("PoolOfWorkerpool(nil) should panic")
			}
		}()
		_ = PoolOfWorkerpool(nil)
	})

	t.Run("runs submitted jobs", func(t *testing.T) {
		wp := workerpool.New(5)
		defer wp.StopWait()

		pool := PoolOfWorkerpool(wp)
		var counter int32
		const numJobs = 20
		var wg sync.WaitGroup
		wg.Add(numJobs)
		for i := 0; i < numJobs; i++ {
			if err := pool.Submit(func() {
				atomic.AddInt32(&counter, 1)
				wg.Done()
			}); err != nil {
				t.Errorf("Submit() error = %v, want nil", err)
			}
		}
		wg.Wait()
		if counter != numJobs {
			t.Errorf("counter = %d, want %d", counter, numJobs)
		}
	})
}
