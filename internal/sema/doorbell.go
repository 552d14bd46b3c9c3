// Package sema provides the counting-wake primitive candev's rings and
// RTR slots use in place of the embedded-OS binary/counting semaphores
// spec.md assumes. A Doorbell coalesces posts (a buffered channel of
// capacity 1) rather than counting them exactly, which is safe here
// because every waiter re-validates its own predicate after waking
// (spec.md §4.C/§5's "re-checking emptiness after each wake") instead of
// trusting the wake count.
package sema

import "context"

// Doorbell is a level-triggered wake signal safe to Post from an
// interrupt-side callback and Wait on from a blocked thread.
type Doorbell struct {
	ch chan struct{}
}

// New returns a Doorbell with no pending post.
func New() *Doorbell {
	return &Doorbell{ch: make(chan struct{}, 1)}
}

// Post wakes one waiter if any is blocked in Wait, or leaves a pending
// post for the next Wait call. It never blocks and is safe to call with
// no waiters present, matching "posts exactly once" regardless of
// whether anyone is listening.
func (d *Doorbell) Post() {
	select {
	case d.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until Post is called or ctx is done. The caller must
// re-check its own predicate on return, since a post may have been
// coalesced with an earlier one or triggered by an unrelated producer.
func (d *Doorbell) Wait(ctx context.Context) error {
	select {
	case <-d.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
