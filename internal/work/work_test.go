package work

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduleRunsOnce(t *testing.T) {
	e := NewGoExecutor()
	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	require.True(t, e.Schedule(func() {
		defer wg.Done()
		ran = true
	}), "first Schedule should succeed")
	wg.Wait()
	require.True(t, ran, "scheduled function did not run")
}

func TestScheduleRejectsWhileBusy(t *testing.T) {
	e := NewGoExecutor()
	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, e.Schedule(func() {
		close(started)
		<-release
	}), "first Schedule should succeed")
	<-started

	require.False(t, e.Schedule(func() {}), "second Schedule should be rejected while the first is in flight")
	close(release)

	// Allow the goroutine to clear the in-flight flag.
	deadline := time.After(time.Second)
	for e.Busy() {
		select {
		case <-deadline:
			t.Fatal("executor never became idle")
		case <-time.After(time.Millisecond):
		}
	}

	require.True(t, e.Schedule(func() {}), "Schedule should succeed again once idle")
}
