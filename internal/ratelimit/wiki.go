package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	pkgsync "github.com/Tangerg/wikigraph/pkg/sync"
)

// WikiLimiter paces outbound Wikipedia/Wikidata requests: a leaky bucket
// enforcing a minimum gap between acquisitions, plus a counting semaphore
// capping in-flight concurrency (spec §4.1, last paragraph).
type WikiLimiter struct {
	bucket    *rate.Limiter
	semaphore *pkgsync.Limiter
}

// NewWikiLimiter builds a leaky bucket allowing requestsPerMinute steady
// throughput (burst of 1, so every request waits its full share of the gap)
// and a semaphore capping concurrency at maxConcurrent in-flight requests.
func NewWikiLimiter(requestsPerMinute int, maxConcurrent int) *WikiLimiter {
	perSecond := float64(requestsPerMinute) / 60.0
	return &WikiLimiter{
		bucket:    rate.NewLimiter(rate.Limit(perSecond), 1),
		semaphore: pkgsync.NewLimiter(maxConcurrent),
	}
}

// Acquire blocks until both the leaky-bucket gap has elapsed and a
// concurrency slot is free. Release must be called when the request
// completes.
func (w *WikiLimiter) Acquire(ctx context.Context) error {
	w.semaphore.Acquire()
	if err := w.bucket.Wait(ctx); err != nil {
		w.semaphore.Release()
		return err
	}
	return nil
}

// Release frees the concurrency slot acquired by Acquire.
func (w *WikiLimiter) Release() {
	w.semaphore.Release()
}
