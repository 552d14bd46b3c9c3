package candev

import (
	"sync/atomic"
	"time"

	"github.com/canbus/candev/internal/hw"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a Device: frame counts, drops,
// RTR resolutions, TX backpressure events, and two latencies: hardware
// send-to-ack for TX (with a histogram) and registration-to-resolution
// for RTR (average only). No RX latency is tracked.
type Metrics struct {
	FramesSent     atomic.Uint64
	FramesReceived atomic.Uint64
	FramesDropped  atomic.Uint64
	RTRResolved    atomic.Uint64
	TXBlocked      atomic.Uint64

	BytesSent     atomic.Uint64
	BytesReceived atomic.Uint64

	txLatencyTotalNs atomic.Uint64
	txLatencyCount   atomic.Uint64
	txLatencyBuckets [numLatencyBuckets]atomic.Uint64

	rtrLatencyTotalNs atomic.Uint64
	rtrLatencyCount   atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics returns a ready-to-use Metrics with its start time stamped.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSend records one frame handed off to the hardware, with the
// latency between its hand-off to the hardware and txdone acknowledgment.
func (m *Metrics) RecordSend(bytes int, latencyNs uint64) {
	m.FramesSent.Add(1)
	m.BytesSent.Add(uint64(bytes))
	m.txLatencyTotalNs.Add(latencyNs)
	m.txLatencyCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.txLatencyBuckets[i].Add(1)
		}
	}
}

// RecordReceive records one frame delivered into the RX ring.
func (m *Metrics) RecordReceive(bytes int) {
	m.FramesReceived.Add(1)
	m.BytesReceived.Add(uint64(bytes))
}

// RecordDropped records an RX ring overflow.
func (m *Metrics) RecordDropped() {
	m.FramesDropped.Add(1)
}

// RecordRTRResolved records a pending RTR registration resolved by an
// incoming frame, with the latency between registration and resolution.
func (m *Metrics) RecordRTRResolved(latencyNs uint64) {
	m.RTRResolved.Add(1)
	m.rtrLatencyTotalNs.Add(latencyNs)
	m.rtrLatencyCount.Add(1)
}

// RecordTXBlocked records a writer blocking on a full TX ring.
func (m *Metrics) RecordTXBlocked() {
	m.TXBlocked.Add(1)
}

// Stop marks the device's metrics collection window as closed.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// further synchronization.
type MetricsSnapshot struct {
	FramesSent     uint64
	FramesReceived uint64
	FramesDropped  uint64
	RTRResolved    uint64
	TXBlocked      uint64

	BytesSent     uint64
	BytesReceived uint64

	AvgTXLatencyNs uint64
	TXLatencyP50Ns uint64
	TXLatencyP99Ns uint64

	AvgRTRLatencyNs uint64

	TXLatencyHistogram [numLatencyBuckets]uint64

	UptimeNs  uint64
	SendIOPS  float64
	DropRate  float64
}

// Snapshot returns a consistent-enough point-in-time view of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		FramesSent:     m.FramesSent.Load(),
		FramesReceived: m.FramesReceived.Load(),
		FramesDropped:  m.FramesDropped.Load(),
		RTRResolved:    m.RTRResolved.Load(),
		TXBlocked:      m.TXBlocked.Load(),
		BytesSent:      m.BytesSent.Load(),
		BytesReceived:  m.BytesReceived.Load(),
	}

	txCount := m.txLatencyCount.Load()
	if txCount > 0 {
		snap.AvgTXLatencyNs = m.txLatencyTotalNs.Load() / txCount
		snap.TXLatencyP50Ns = m.calculateTXPercentile(0.50)
		snap.TXLatencyP99Ns = m.calculateTXPercentile(0.99)
	}

	rtrCount := m.rtrLatencyCount.Load()
	if rtrCount > 0 {
		snap.AvgRTRLatencyNs = m.rtrLatencyTotalNs.Load() / rtrCount
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.TXLatencyHistogram[i] = m.txLatencyBuckets[i].Load()
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}
	if snap.UptimeNs > 0 {
		snap.SendIOPS = float64(snap.FramesSent) / (float64(snap.UptimeNs) / 1e9)
	}
	received := snap.FramesReceived + snap.FramesDropped
	if received > 0 {
		snap.DropRate = float64(snap.FramesDropped) / float64(received) * 100.0
	}

	return snap
}

// calculateTXPercentile estimates a TX latency percentile from the
// cumulative histogram via linear interpolation between buckets.
func (m *Metrics) calculateTXPercentile(percentile float64) uint64 {
	total := m.txLatencyCount.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.txLatencyBuckets[i].Load()
		if bucketCount >= target {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.txLatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(target-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes every counter, useful between test cases.
func (m *Metrics) Reset() {
	m.FramesSent.Store(0)
	m.FramesReceived.Store(0)
	m.FramesDropped.Store(0)
	m.RTRResolved.Store(0)
	m.TXBlocked.Store(0)
	m.BytesSent.Store(0)
	m.BytesReceived.Store(0)
	m.txLatencyTotalNs.Store(0)
	m.txLatencyCount.Store(0)
	m.rtrLatencyTotalNs.Store(0)
	m.rtrLatencyCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.txLatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsObserver adapts a Metrics instance to hw.Observer, the interface
// Device's facade and interrupt-side callbacks report events to.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an hw.Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveFrameSent(latencyNs uint64) {
	o.metrics.RecordSend(0, latencyNs)
}

func (o *MetricsObserver) ObserveFrameReceived() {
	o.metrics.RecordReceive(0)
}

func (o *MetricsObserver) ObserveFrameDropped() {
	o.metrics.RecordDropped()
}

func (o *MetricsObserver) ObserveRTRResolved(latencyNs uint64) {
	o.metrics.RecordRTRResolved(latencyNs)
}

func (o *MetricsObserver) ObserveTXBlocked() {
	o.metrics.RecordTXBlocked()
}

var _ hw.Observer = (*MetricsObserver)(nil)
var _ hw.Observer = (*hw.NoOpObserver)(nil)
