package util

import (
	"sync/atomic"
)

// RunOnce is a function wrapper that calls the underlying function at most once, e.g. for teardown or stop signals
//
// Returns true when the underlying function is called by this invocation. Concurrent callers never block on
// each other, so a false return doesn't mean the underlying function has finished.
type RunOnce func() bool

// NewRunOnce creates a RunOnce calling the given "f"
func NewRunOnce(f func()) RunOnce {
	var invoked atomic.Bool
	return func() bool {
		if invoked.CompareAndSwap(false, true) {
			f()
			return true
		}
		return false
	}
}
