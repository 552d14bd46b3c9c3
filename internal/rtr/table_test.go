package rtr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/canbus/candev/frame"
)

func TestRegisterAndResolve(t *testing.T) {
	table := New(4)
	var dest frame.Msg
	idx, ok := table.Register(0x7, &dest)
	require.True(t, ok, "Register failed on empty table")
	require.Equal(t, 1, table.Pending())

	incoming := &frame.Msg{Header: frame.Header{ID: 0x7, DLC: 3}}
	copy(incoming.Data[:3], []byte{1, 2, 3})

	latencies := table.Resolve(incoming)
	require.Len(t, latencies, 1)
	require.Equal(t, 0, table.Pending())
	require.Equal(t, uint32(0x7), dest.Header.ID)
	require.Equal(t, uint8(1), dest.Data[0])
	require.Equal(t, uint8(2), dest.Data[1])
	require.Equal(t, uint8(3), dest.Data[2])

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, table.Wake(idx).Wait(ctx), "expected wake to have been posted")
}

func TestResolveReportsRegistrationLatency(t *testing.T) {
	table := New(2)
	var dest frame.Msg
	_, ok := table.Register(0x9, &dest)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	incoming := &frame.Msg{Header: frame.Header{ID: 0x9}}
	latencies := table.Resolve(incoming)
	require.Len(t, latencies, 1)
	require.GreaterOrEqual(t, latencies[0], 5*time.Millisecond, "resolved latency should reflect time since Register")
}

func TestResolveTiesAllMatchingSlots(t *testing.T) {
	table := New(4)
	var a, b frame.Msg
	idxA, _ := table.Register(0x5, &a)
	idxB, _ := table.Register(0x5, &b)

	incoming := &frame.Msg{Header: frame.Header{ID: 0x5, DLC: 1}}
	incoming.Data[0] = 0x42

	latencies := table.Resolve(incoming)
	require.Len(t, latencies, 2, "both slots tied on id 0x5 should resolve")
	require.Equal(t, uint8(0x42), a.Data[0])
	require.Equal(t, uint8(0x42), b.Data[0])
	require.Equal(t, 0, table.Pending())
	_ = idxA
	_ = idxB
}

func TestResolveNoMatchLeavesSlotOccupied(t *testing.T) {
	table := New(2)
	var dest frame.Msg
	table.Register(0x1, &dest)

	incoming := &frame.Msg{Header: frame.Header{ID: 0x2}}
	require.Empty(t, table.Resolve(incoming), "non-matching id should resolve nothing")
	require.Equal(t, 1, table.Pending(), "slot should remain occupied")
}

func TestRegisterFullTable(t *testing.T) {
	table := New(2)
	var a, b, c frame.Msg
	_, ok := table.Register(1, &a)
	require.True(t, ok, "first registration should succeed")
	_, ok = table.Register(2, &b)
	require.True(t, ok, "second registration should succeed")
	_, ok = table.Register(3, &c)
	require.False(t, ok, "third registration should fail: table full")
}

func TestReleaseFreesSlotForReuse(t *testing.T) {
	table := New(1)
	var a frame.Msg
	idx, ok := table.Register(9, &a)
	require.True(t, ok, "registration should succeed")
	table.Release(idx)
	require.Equal(t, 0, table.Pending(), "Pending should be 0 after Release")

	var b frame.Msg
	_, ok = table.Register(10, &b)
	require.True(t, ok, "slot should be reusable after Release")
}

func TestFreeSlotCheckIsOwnDest(t *testing.T) {
	// Regression for the corrected Open Question: a slot's freedom is
	// determined solely by its own Dest, never by the caller's payload.
	table := New(1)
	var real frame.Msg
	idx, ok := table.Register(1, &real)
	require.True(t, ok, "registration should succeed")
	_, ok = table.Register(2, &real)
	require.False(t, ok, "slot is occupied and must not be reallocated regardless of the new caller's payload")
	table.Release(idx)
	_, ok = table.Register(2, &real)
	require.True(t, ok, "slot should be free for reuse after Release")
}
