package fetch

import (
	"sync/atomic"
	"time"
)

// latencyBounds are the inclusive upper bounds of the latency histogram
// buckets, in nanoseconds. Each bound is 8x the previous one, covering
// 2us through ~4.2s; anything slower lands in the overflow bucket.
var latencyBounds = [...]uint64{
	2_000,
	16_000,
	128_000,
	1_024_000,
	8_192_000,
	65_536_000,
	524_288_000,
	4_194_304_000,
}

// One extra bucket catches operations beyond the last bound.
const numLatencyBuckets = len(latencyBounds) + 1

// bucketFor returns the histogram bucket index for a latency.
func bucketFor(latencyNs uint64) int {
	for i, bound := range latencyBounds {
		if latencyNs <= bound {
			return i
		}
	}
	return len(latencyBounds)
}

// storeMaxUint64 raises a high-water mark.
func storeMaxUint64(a *atomic.Uint64, v uint64) {
	for {
		cur := a.Load()
		if v <= cur || a.CompareAndSwap(cur, v) {
			return
		}
	}
}

// storeMaxUint32 raises a high-water mark.
func storeMaxUint32(a *atomic.Uint32, v uint32) {
	for {
		cur := a.Load()
		if v <= cur || a.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Metrics tracks performance and operational statistics for an engine
type Metrics struct {
	// Provider operation counters
	OpenOps atomic.Uint64 // Total open operations
	ReadOps atomic.Uint64 // Total range reads

	// Byte counter
	FetchedBytes atomic.Uint64 // Total bytes delivered into buffers

	// Error counters
	OpenErrors atomic.Uint64 // Open operation errors
	ReadErrors atomic.Uint64 // Read operation errors

	// Request outcome counters
	Finished  atomic.Uint64 // Requests that delivered a final callback
	Failed    atomic.Uint64 // Requests that finished failed
	Cancelled atomic.Uint64 // Requests that finished cancelled

	// Lane statistics
	LaneOccupancyTotal atomic.Uint64 // Cumulative occupancy samples
	LaneOccupancyCount atomic.Uint64 // Number of occupancy measurements
	MaxLaneOccupancy   atomic.Uint32 // Maximum observed occupancy

	// Provider latency. The histogram holds per-bucket counts, one slot
	// per latencyBounds entry plus the overflow; the total operation
	// count is the sum over the buckets.
	LatencySumNs atomic.Uint64
	MaxLatencyNs atomic.Uint64
	LatencyHist  [numLatencyBuckets]atomic.Uint64

	// Engine lifecycle
	StartTime atomic.Int64 // Engine start timestamp (UnixNano)
	StopTime  atomic.Int64 // Engine stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordOpen records an open operation
func (m *Metrics) RecordOpen(latencyNs uint64, success bool) {
	m.OpenOps.Add(1)
	if !success {
		m.OpenErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordRead records a range read
func (m *Metrics) RecordRead(bytes uint64, latencyNs uint64, success bool) {
	m.ReadOps.Add(1)
	if success {
		m.FetchedBytes.Add(bytes)
	} else {
		m.ReadErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordFinish records a request's final callback
func (m *Metrics) RecordFinish(failed, cancelled bool) {
	m.Finished.Add(1)
	if failed {
		m.Failed.Add(1)
	}
	if cancelled {
		m.Cancelled.Add(1)
	}
}

// RecordLaneOccupancy records the current lane occupancy of a channel
func (m *Metrics) RecordLaneOccupancy(occupied uint32) {
	m.LaneOccupancyTotal.Add(uint64(occupied))
	m.LaneOccupancyCount.Add(1)
	storeMaxUint32(&m.MaxLaneOccupancy, occupied)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.LatencySumNs.Add(latencyNs)
	storeMaxUint64(&m.MaxLatencyNs, latencyNs)
	m.LatencyHist[bucketFor(latencyNs)].Add(1)
}

// Stop marks the engine as stopped
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of engine metrics
type MetricsSnapshot struct {
	OpenOps      uint64
	ReadOps      uint64
	FetchedBytes uint64

	OpenErrors uint64
	ReadErrors uint64

	Finished  uint64
	Failed    uint64
	Cancelled uint64

	AvgLaneOccupancy float64
	MaxLaneOccupancy uint32

	AvgLatencyNs uint64
	MaxLatencyNs uint64
	UptimeNs     uint64

	// Precomputed latency quantiles (in nanoseconds); see LatencyQuantile
	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	// Per-bucket histogram counts; the last slot is the overflow bucket
	LatencyHistogram [numLatencyBuckets]uint64

	// Computed statistics
	ReadsPerSecond float64
	FetchBandwidth float64 // Bytes per second
	TotalOps       uint64
	ErrorRate      float64 // Percentage of failed operations
}

// LatencyQuantile estimates the q-th latency quantile, in nanoseconds,
// from the snapshot's histogram: the buckets are walked until the
// requested rank is reached and the containing bucket's upper bound is
// reported. A rank landing in the overflow bucket reports the slowest
// operation observed instead, since that bucket has no bound.
func (s MetricsSnapshot) LatencyQuantile(q float64) uint64 {
	var total uint64
	for _, c := range s.LatencyHistogram {
		total += c
	}
	if total == 0 {
		return 0
	}
	if q < 0 {
		q = 0
	} else if q > 1 {
		q = 1
	}
	rank := uint64(q * float64(total))
	if rank == 0 {
		rank = 1
	}

	var seen uint64
	for i, c := range s.LatencyHistogram {
		seen += c
		if seen >= rank {
			if i < len(latencyBounds) {
				return latencyBounds[i]
			}
			break
		}
	}
	return s.MaxLatencyNs
}

// Snapshot creates a point-in-time snapshot of metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		OpenOps:          m.OpenOps.Load(),
		ReadOps:          m.ReadOps.Load(),
		FetchedBytes:     m.FetchedBytes.Load(),
		OpenErrors:       m.OpenErrors.Load(),
		ReadErrors:       m.ReadErrors.Load(),
		Finished:         m.Finished.Load(),
		Failed:           m.Failed.Load(),
		Cancelled:        m.Cancelled.Load(),
		MaxLaneOccupancy: m.MaxLaneOccupancy.Load(),
		MaxLatencyNs:     m.MaxLatencyNs.Load(),
	}

	snap.TotalOps = snap.OpenOps + snap.ReadOps

	occTotal := m.LaneOccupancyTotal.Load()
	occCount := m.LaneOccupancyCount.Load()
	if occCount > 0 {
		snap.AvgLaneOccupancy = float64(occTotal) / float64(occCount)
	}

	var opCount uint64
	for i := range m.LatencyHist {
		c := m.LatencyHist[i].Load()
		snap.LatencyHistogram[i] = c
		opCount += c
	}
	if opCount > 0 {
		snap.AvgLatencyNs = m.LatencySumNs.Load() / opCount
		snap.LatencyP50Ns = snap.LatencyQuantile(0.50)
		snap.LatencyP99Ns = snap.LatencyQuantile(0.99)
		snap.LatencyP999Ns = snap.LatencyQuantile(0.999)
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.ReadsPerSecond = float64(snap.ReadOps) / uptimeSeconds
		snap.FetchBandwidth = float64(snap.FetchedBytes) / uptimeSeconds
	}

	totalErrors := snap.OpenErrors + snap.ReadErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	return snap
}

// Reset resets all metrics counters (useful for testing)
func (m *Metrics) Reset() {
	m.OpenOps.Store(0)
	m.ReadOps.Store(0)
	m.FetchedBytes.Store(0)
	m.OpenErrors.Store(0)
	m.ReadErrors.Store(0)
	m.Finished.Store(0)
	m.Failed.Store(0)
	m.Cancelled.Store(0)
	m.LaneOccupancyTotal.Store(0)
	m.LaneOccupancyCount.Store(0)
	m.MaxLaneOccupancy.Store(0)
	m.LatencySumNs.Store(0)
	m.MaxLatencyNs.Store(0)
	for i := range m.LatencyHist {
		m.LatencyHist[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection. Implementations must be
// thread-safe; methods are called from channel workers.
type Observer interface {
	// ObserveOpen is called for each open operation
	ObserveOpen(latencyNs uint64, success bool)

	// ObserveRead is called for each range read
	ObserveRead(bytes uint64, latencyNs uint64, success bool)

	// ObserveFinish is called once per request when its final callback
	// has returned
	ObserveFinish(failed, cancelled bool)

	// ObserveLaneOccupancy is called per channel pass with the current
	// number of occupied lanes
	ObserveLaneOccupancy(occupied uint32)
}

// NoOpObserver is a no-op implementation of Observer
type NoOpObserver struct{}

func (NoOpObserver) ObserveOpen(uint64, bool)         {}
func (NoOpObserver) ObserveRead(uint64, uint64, bool) {}
func (NoOpObserver) ObserveFinish(bool, bool)         {}
func (NoOpObserver) ObserveLaneOccupancy(uint32)      {}

// MetricsObserver implements Observer using the built-in Metrics
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveOpen(latencyNs uint64, success bool) {
	o.metrics.RecordOpen(latencyNs, success)
}

func (o *MetricsObserver) ObserveRead(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordRead(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveFinish(failed, cancelled bool) {
	o.metrics.RecordFinish(failed, cancelled)
}

func (o *MetricsObserver) ObserveLaneOccupancy(occupied uint32) {
	o.metrics.RecordLaneOccupancy(occupied)
}

// Compile-time interface check
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
