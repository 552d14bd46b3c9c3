package ring

import (
	"github.com/canbus/candev/frame"
	"github.com/canbus/candev/internal/sema"
)

// RX is the bounded receive ring (spec.md §3/§4.C): head (next to
// deliver), tail (next free).
type RX struct {
	slots []frame.Msg
	head  int
	tail  int
	n     int

	// Wake is posted by the device after a successful push while readers
	// are waiting, so a blocked reader can recheck Empty().
	Wake *sema.Doorbell
}

// NewRX allocates an RX ring with the given capacity, which must be >= 2.
func NewRX(capacity int) *RX {
	if capacity < 2 {
		panic("ring: RX capacity must be >= 2")
	}
	return &RX{
		slots: make([]frame.Msg, capacity),
		n:     capacity,
		Wake:  sema.New(),
	}
}

// Reset empties the ring, as happens on each first open.
func (r *RX) Reset() {
	r.head, r.tail = 0, 0
}

// Empty reports head == tail.
func (r *RX) Empty() bool { return r.head == r.tail }

// Full reports whether one more push would wrap tail onto head.
func (r *RX) Full() bool { return (r.tail+1)%r.n == r.head }

// Len returns the number of buffered, undelivered frames.
func (r *RX) Len() int {
	if r.tail >= r.head {
		return r.tail - r.head
	}
	return r.n - r.head + r.tail
}

// TryPush copies msg into slot tail and advances tail. It returns false
// without mutating the ring if the ring is full; the caller is
// responsible for latching the overflow bit and posting Wake only on
// success (spec.md §4.C).
func (r *RX) TryPush(msg *frame.Msg) bool {
	if r.Full() {
		return false
	}
	r.slots[r.tail] = *msg
	r.tail = (r.tail + 1) % r.n
	return true
}

// Front returns a pointer to the oldest buffered frame without removing
// it, so a caller can check whether it fits a destination buffer before
// committing to PopOne.
func (r *RX) Front() (*frame.Msg, bool) {
	if r.Empty() {
		return nil, false
	}
	return &r.slots[r.head], true
}

// PopOne copies the oldest buffered frame out and advances head. It
// returns ok=false on an empty ring.
func (r *RX) PopOne() (frame.Msg, bool) {
	if r.Empty() {
		return frame.Msg{}, false
	}
	m := r.slots[r.head]
	r.head = (r.head + 1) % r.n
	return m, true
}
