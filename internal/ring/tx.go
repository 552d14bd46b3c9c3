// Package ring implements the bounded TX and RX frame rings (spec.md
// §§3-4.B/4.C). Every method assumes the caller already holds whatever
// "interrupts masked" critical section candev.Device.mu models; the ring
// performs no locking of its own, the same way go-ublk's queue runner
// leaves tag-state locking to its caller and only guards the narrow
// per-tag mutation itself.
package ring

import (
	"fmt"

	"github.com/canbus/candev/frame"
	"github.com/canbus/candev/internal/sema"
)

// TX is the three-cursor transmit ring (spec.md §3): head (oldest
// in-flight), queue (next slot to hand to hardware), tail (next free).
// Invariant: head <= queue <= tail (mod N), with no cursor ever skipping
// an element.
type TX struct {
	slots []frame.Msg
	head  int
	queue int
	tail  int
	n     int

	// Wake is posted by the device after an AckOne frees a slot while
	// writers are waiting, so a blocked writer can recheck Full().
	Wake *sema.Doorbell
}

// NewTX allocates a TX ring with the given capacity, which must be >= 2.
func NewTX(capacity int) *TX {
	if capacity < 2 {
		panic("ring: TX capacity must be >= 2")
	}
	return &TX{
		slots: make([]frame.Msg, capacity),
		n:     capacity,
		Wake:  sema.New(),
	}
}

// Reset empties the ring and rewinds all three cursors to zero, as
// happens on each first open (spec.md §3 Lifecycle).
func (r *TX) Reset() {
	r.head, r.queue, r.tail = 0, 0, 0
}

// Empty reports head == tail, which implies queue == head.
func (r *TX) Empty() bool { return r.head == r.tail }

// Full reports whether one more Enqueue would wrap tail onto head.
func (r *TX) Full() bool { return (r.tail+1)%r.n == r.head }

// Len returns the number of enqueued-but-not-yet-acked frames.
func (r *TX) Len() int {
	if r.tail >= r.head {
		return r.tail - r.head
	}
	return r.n - r.head + r.tail
}

// Cursors returns (head, queue, tail) for invariant assertions and
// diagnostics; it is not part of the hot path.
func (r *TX) Cursors() (head, queue, tail int) { return r.head, r.queue, r.tail }

// Enqueue copies msg into slot tail and advances tail. The caller must
// ensure !Full() first.
func (r *TX) Enqueue(msg *frame.Msg) error {
	if r.Full() {
		return fmt.Errorf("ring: TX enqueue on full ring")
	}
	r.slots[r.tail] = *msg
	r.tail = (r.tail + 1) % r.n
	return nil
}

// DrainOneForHW hands the next queued frame to the hardware: it captures
// the current queue slot, advances queue, and returns a pointer into
// ring storage for the caller to pass to hw.Controller.Send.
//
// The advance happens before the caller invokes Send, per spec.md
// §4.B's note that Send may synchronously call back into AckOne, which
// requires head < queue to already hold at that point.
func (r *TX) DrainOneForHW() (*frame.Msg, bool) {
	if r.queue == r.tail {
		return nil, false
	}
	slot := r.queue
	r.queue = (r.queue + 1) % r.n
	return &r.slots[slot], true
}

// PeekHead returns a pointer to the oldest in-flight frame without
// advancing head, so a caller (txdone) can look up per-frame bookkeeping
// keyed by slot address before acknowledging it.
func (r *TX) PeekHead() (*frame.Msg, bool) {
	if r.head == r.queue {
		return nil, false
	}
	return &r.slots[r.head], true
}

// AckOne advances head past the oldest in-flight frame. The caller must
// ensure the ring is non-empty and head != queue (an assertion failure
// otherwise indicates a driver bug, per spec.md §7).
func (r *TX) AckOne() error {
	if r.head == r.tail {
		return fmt.Errorf("ring: TX ack on empty ring")
	}
	if r.head == r.queue {
		return fmt.Errorf("ring: TX ack with head == queue (nothing in flight)")
	}
	r.head = (r.head + 1) % r.n
	return nil
}
