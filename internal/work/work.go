// Package work models the NuttX work-queue handoff spec.md §4.G/§9
// describes as "coroutine-style deferred work": txready runs at
// interrupt level and cannot itself drain the TX ring, so it pushes a
// single-shot task onto an executor that runs later, outside interrupt
// context. This generalizes go-ublk's queue runner lifecycle
// (Start/Stop/Close, each guarded to fire exactly once) from "one ioLoop
// goroutine per queue" to "one deferred drain in flight at a time".
package work

import "sync/atomic"

// Executor schedules fn to run later, outside the caller's current
// context. Schedule returns false without running fn if a prior
// Schedule's fn has not finished yet — the single-shot semantics
// spec.md's work_available() check requires.
type Executor interface {
	Schedule(fn func()) (scheduled bool)
}

// GoExecutor runs scheduled work on its own goroutine, one at a time.
// It is the default Executor, analogous to go-ublk's per-queue ioLoop
// goroutine, generalized to a single reusable slot rather than a
// long-lived loop.
type GoExecutor struct {
	inFlight atomic.Bool
}

// NewGoExecutor returns a ready-to-use GoExecutor.
func NewGoExecutor() *GoExecutor {
	return &GoExecutor{}
}

// Schedule launches fn on a new goroutine if no previously scheduled fn
// is still running, clearing the in-flight flag when fn returns.
func (e *GoExecutor) Schedule(fn func()) bool {
	if !e.inFlight.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer e.inFlight.Store(false)
		fn()
	}()
	return true
}

// Busy reports whether a previously scheduled fn is still running.
func (e *GoExecutor) Busy() bool {
	return e.inFlight.Load()
}
