package sema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoorbellWaitUnblocksOnPost(t *testing.T) {
	d := New()
	done := make(chan error, 1)
	go func() {
		done <- d.Wait(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Post")
	case <-time.After(10 * time.Millisecond):
	}

	d.Post()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait never returned after Post")
	}
}

func TestDoorbellPostBeforeWaitIsNotLost(t *testing.T) {
	d := New()
	d.Post()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDoorbellPostCoalesces(t *testing.T) {
	d := New()
	d.Post()
	d.Post()
	d.Post()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx), "first Wait")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	require.Error(t, d.Wait(ctx2), "second Wait should have blocked since the posts coalesced into one")
}

func TestDoorbellWaitReturnsContextError(t *testing.T) {
	d := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Equal(t, ctx.Err(), d.Wait(ctx))
}
