package candev

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsRecordSendAndReceive(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	require.Zero(t, snap.FramesSent)
	require.Zero(t, snap.FramesReceived)

	m.RecordSend(8, 1_000_000) // 1ms
	m.RecordSend(8, 2_000_000) // 2ms
	m.RecordReceive(8)
	m.RecordDropped()

	snap = m.Snapshot()
	require.EqualValues(t, 2, snap.FramesSent)
	require.EqualValues(t, 16, snap.BytesSent)
	require.EqualValues(t, 1, snap.FramesReceived)
	require.EqualValues(t, 1, snap.FramesDropped)
	require.EqualValues(t, 1_500_000, snap.AvgTXLatencyNs)
}

func TestMetricsRTRResolved(t *testing.T) {
	m := NewMetrics()
	m.RecordRTRResolved(500_000)
	m.RecordRTRResolved(1_500_000)

	snap := m.Snapshot()
	require.EqualValues(t, 2, snap.RTRResolved)
	require.EqualValues(t, 1_000_000, snap.AvgRTRLatencyNs)
}

func TestMetricsTXBlocked(t *testing.T) {
	m := NewMetrics()
	m.RecordTXBlocked()
	m.RecordTXBlocked()

	require.EqualValues(t, 2, m.Snapshot().TXBlocked)
}

func TestMetricsDropRate(t *testing.T) {
	m := NewMetrics()
	m.RecordReceive(8)
	m.RecordReceive(8)
	m.RecordReceive(8)
	m.RecordDropped()

	snap := m.Snapshot()
	require.InDelta(t, 25.0, snap.DropRate, 0.1)
}

func TestMetricsUptimeStopsAdvancingAfterStop(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	require.GreaterOrEqual(t, snap.UptimeNs, 10*uint64(time.Millisecond))

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	require.LessOrEqual(t, snap2.UptimeNs, snap.UptimeNs+uint64(2*time.Millisecond),
		"uptime should not advance after Stop")
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordSend(8, 1_000_000)
	m.RecordReceive(8)
	m.RecordTXBlocked()

	require.NotZero(t, m.Snapshot().FramesSent, "expected nonzero metrics before reset")

	m.Reset()
	snap := m.Snapshot()
	require.Zero(t, snap.FramesSent)
	require.Zero(t, snap.FramesReceived)
	require.Zero(t, snap.TXBlocked)
}

func TestMetricsHistogramPercentiles(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 50; i++ {
		m.RecordSend(8, 500_000) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordSend(8, 5_000_000) // 5ms
	}
	m.RecordSend(8, 50_000_000) // 50ms, P99

	snap := m.Snapshot()
	require.EqualValues(t, 100, snap.FramesSent)
	require.InDelta(t, 550_000, snap.TXLatencyP50Ns, 450_000, "P50 out of expected range")
	require.InDelta(t, 52_500_000, snap.TXLatencyP99Ns, 47_500_000, "P99 out of expected range")
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveFrameSent(1_000_000)
	obs.ObserveFrameReceived()
	obs.ObserveFrameDropped()
	obs.ObserveRTRResolved(2_000_000)
	obs.ObserveTXBlocked()

	snap := m.Snapshot()
	require.EqualValues(t, 1, snap.FramesSent)
	require.EqualValues(t, 1, snap.FramesReceived)
	require.EqualValues(t, 1, snap.FramesDropped)
	require.EqualValues(t, 1, snap.RTRResolved)
	require.EqualValues(t, 1, snap.TXBlocked)
}
