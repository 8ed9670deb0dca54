package sync

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiter_CapsConcurrentAcquires(t *testing.T) {
	const max = 3
	limiter := NewLimiter(max)

	var current, peak int32
	var wg sync.WaitGroup
	const requests = 20

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Acquire()
			defer limiter.Release()

			c := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if c <= old || atomic.CompareAndSwapInt32(&peak, old, c) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&current, -1)
		}()
	}
	wg.Wait()

	if peak > max {
		t.Errorf("peak concurrent acquires = %d, want <= %d", peak, max)
	}
}

func TestLimiter_ReleaseUnblocksAWaiter(t *testing.T) {
	limiter := NewLimiter(1)
	limiter.Acquire()

	acquired := make(chan struct{})
	go func() {
		limiter.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Acquire should block while the slot is held")
	case <-time.After(20 * time.Millisecond):
	}

	limiter.Release()

	select {
	case <-acquired:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Acquire did not unblock after Release")
	}
}

func TestNewLimiter_PanicsOnNonPositiveMax(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewLimiter(0) should panic")
		}
	}()
	NewLimiter(0)
}
