package sync

// Limiter is a counting semaphore that caps the number of concurrent
// operations at max. internal/ratelimit.WikiLimiter wraps one of these
// around its leaky-bucket rate limiter so "requests per minute" and
// "in-flight requests at once" are enforced independently — a burst of
// permitted-by-the-bucket requests still can't open more than max sockets
// against Wikipedia/Wikidata/Baidu Baike at the same time.
type Limiter struct {
	semaphore chan struct{}
}

// NewLimiter creates a Limiter allowing at most max concurrent operations.
// Panics if max is not positive.
func NewLimiter(max int) *Limiter {
	if max <= 0 {
		panic("max must be > 0")
	}
	return &Limiter{
		semaphore: make(chan struct{}, max),
	}
}

// Acquire blocks until a slot is free.
func (l *Limiter) Acquire() {
	l.semaphore <- struct{}{}
}

// Release frees a slot for a waiting Acquire.
func (l *Limiter) Release() {
	<-l.semaphore
}
