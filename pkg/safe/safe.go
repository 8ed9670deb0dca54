// Package safe wraps the per-item worker-pool jobs that harvest, merge, and
// maintain submit to a pool.Backend so that one panicking entity (a
// malformed wiki fragment, a relationship with an unexpected node type)
// can't take the whole batch down with it.
package safe

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// PanicError is what a recovered panic becomes before it reaches a job's
// error handlers — the value passed to panic(), plus the stack and a
// timestamp, so "panic while processing item" log lines carry enough to
// find the offending title or relationship after the fact.
type PanicError struct {
	time  time.Time
	info  any
	stack []byte
	cache atomic.Pointer[string]
}

// Error formats the panic once and caches the string; pool jobs can fire in
// the hundreds per run and each failure only needs to be rendered once.
func (e *PanicError) Error() string {
	if e.cache.Load() == nil {
		timestamp := e.time.Format(time.RFC3339Nano)
		err := fmt.Sprintf("panic: \ntimestamp: %s, \nerror: %+v, \nstack: %s", timestamp, e.info, string(e.stack))
		e.cache.Store(&err)
	}
	return *e.cache.Load()
}

// NewPanicError builds a PanicError from a recovered value and its stack.
func NewPanicError(info any, stack []byte) error {
	return &PanicError{
		time:  time.Now(),
		info:  info,
		stack: stack,
	}
}

// Go runs fn in a new goroutine with panic recovery, the NoPool backend's
// "one goroutine per submission" fallback for pool.New.
func Go(fn func(), panicFns ...func(error)) {
	wrapped := WithRecover(fn, panicFns...)
	if wrapped == nil {
		return
	}
	go wrapped()
}

// WithRecover wraps fn so a panic is recovered instead of propagating into
// the worker pool goroutine, and reported to each panicFn as a PanicError.
// Used to submit per-candidate screening, per-relationship audit, and
// per-node name-refresh jobs to a worker pool without one bad item aborting
// the rest of the run.
func WithRecover(fn func(), panicFns ...func(error)) func() {
	if fn == nil {
		return fn
	}
	return func() {
		defer func() {
			if r := recover(); r != nil {
				if len(panicFns) == 0 {
					return
				}
				err := NewPanicError(r, debug.Stack())
				for _, panicFn := range panicFns {
					panicFn(err)
				}
			}
		}()
		fn()
	}
}
