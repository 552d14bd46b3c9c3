// Package rtr implements the fixed-size pending-Remote-Transmission-
// Request table (spec.md §3/§4.D). N_RTR is expected to be small
// (typically 4-8), so a linear scan is correct and expected, the same
// way go-ublk's queue runner favors a flat per-tag array and per-tag
// mutex over a map for its (also small, bounded) tag space.
package rtr

import (
	"time"

	"github.com/canbus/candev/frame"
	"github.com/canbus/candev/internal/sema"
)

// Slot holds one pending remote-transmission-request registration. It is
// occupied iff Dest is non-nil: the corrected rule from spec.md's Open
// Questions — free-slot detection inspects the slot's own destination,
// never the caller's payload.
type Slot struct {
	ID           uint32
	Dest         *frame.Msg
	Wake         *sema.Doorbell
	RegisteredAt time.Time
}

func (s *Slot) occupied() bool { return s.Dest != nil }

// Table is the fixed-size RTR table owned by a Device.
type Table struct {
	slots   []Slot
	pending int
}

// New allocates a table with the given number of slots.
func New(n int) *Table {
	slots := make([]Slot, n)
	for i := range slots {
		slots[i].Wake = sema.New()
	}
	return &Table{slots: slots}
}

// Pending returns the number of currently occupied slots, which must
// always equal the count of slots with a non-nil Dest (spec.md §8
// invariant 4).
func (t *Table) Pending() int { return t.pending }

// Register finds the first free slot, marks it occupied for id, and
// returns its index. ok is false if the table is full.
func (t *Table) Register(id uint32, dest *frame.Msg) (index int, ok bool) {
	for i := range t.slots {
		if !t.slots[i].occupied() {
			t.slots[i].ID = id
			t.slots[i].Dest = dest
			t.slots[i].RegisteredAt = time.Now()
			t.pending++
			return i, true
		}
	}
	return 0, false
}

// Release frees slot i without resolving it, used when a registering
// wait is interrupted before a matching frame arrives.
func (t *Table) Release(i int) {
	if t.slots[i].occupied() {
		t.slots[i].Dest = nil
		t.pending--
	}
}

// Wake returns the wake doorbell for slot i, to block on after Register.
func (t *Table) Wake(i int) *sema.Doorbell { return t.slots[i].Wake }

// Resolve copies msg into the destination of every occupied slot whose
// ID matches msg.Header.ID, clears those slots, and posts their wake
// channels. Ties — more than one slot registered for the same id — are
// all resolved from the same incoming frame (spec.md §4.D). It returns
// the registration-to-resolution latency of each slot resolved, in slot
// order; a resolved frame must not also be pushed onto the RX ring.
func (t *Table) Resolve(msg *frame.Msg) []time.Duration {
	now := time.Now()
	var latencies []time.Duration
	for i := range t.slots {
		s := &t.slots[i]
		if !s.occupied() || s.ID != msg.Header.ID {
			continue
		}
		*s.Dest = *msg
		s.Dest = nil
		t.pending--
		latencies = append(latencies, now.Sub(s.RegisteredAt))
		s.Wake.Post()
	}
	return latencies
}
