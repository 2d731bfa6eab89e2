// Package obs collects lightweight, lock-free counters and latency stats for
// a running backtest: entry/response/feed latency distributions, fill
// counts by maker/taker, and rejection counts by errors.Code, grounded on
// the teacher's atomic-CAS Metrics/LatencyStats shape.
package obs

import (
	"sync/atomic"
	"time"

	"hftbacktest/internal/errors"
)

const maxCode = int(errors.CodeInternal)

// Metrics collects per-asset-stack counters. A nil *Metrics is valid and
// every method is a no-op on it, so callers can wire an optional Metrics
// field without a hasMetrics check at every call site.
type Metrics struct {
	entryLatency    LatencyStats
	responseLatency LatencyStats
	feedLatency     LatencyStats

	makerFills uint64
	takerFills uint64
	filledQty  uint64 // accumulated qty*1e6, fixed-point to keep this lock-free

	rejections [maxCode + 1]uint64
}

// LatencyStats aggregates duration samples in nanoseconds using lock-free
// CAS loops rather than a mutex, since Observe is called from the hot path
// on every order event.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EntryLatency    LatencySnapshot
	ResponseLatency LatencySnapshot
	FeedLatency     LatencySnapshot
	MakerFills      uint64
	TakerFills      uint64
	FilledQty       float64
	Rejections      map[errors.Code]uint64
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEntry records the entry latency (submission to exchange arrival)
// of one order request.
func (m *Metrics) ObserveEntry(d time.Duration) {
	if m == nil {
		return
	}
	m.entryLatency.Observe(d)
}

// ObserveResponse records the response latency (exchange action to local
// delivery) of one order response.
func (m *Metrics) ObserveResponse(d time.Duration) {
	if m == nil {
		return
	}
	m.responseLatency.Observe(d)
}

// ObserveFeed records one tape row's feed latency (local_ts - exch_ts).
func (m *Metrics) ObserveFeed(d time.Duration) {
	if m == nil {
		return
	}
	m.feedLatency.Observe(d)
}

// ObserveFill records one fill's side and quantity.
func (m *Metrics) ObserveFill(maker bool, qty float64) {
	if m == nil {
		return
	}
	if maker {
		atomic.AddUint64(&m.makerFills, 1)
	} else {
		atomic.AddUint64(&m.takerFills, 1)
	}
	atomic.AddUint64(&m.filledQty, uint64(qty*1e6))
}

// ObserveReject records a non-OK result code.
func (m *Metrics) ObserveReject(code errors.Code) {
	if m == nil {
		return
	}
	idx := int(code)
	if idx >= 0 && idx < len(m.rejections) {
		atomic.AddUint64(&m.rejections[idx], 1)
	}
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	rejections := make(map[errors.Code]uint64)
	for i := range m.rejections {
		if v := atomic.LoadUint64(&m.rejections[i]); v > 0 {
			rejections[errors.Code(i)] = v
		}
	}
	return Snapshot{
		EntryLatency:    m.entryLatency.Snapshot(),
		ResponseLatency: m.responseLatency.Snapshot(),
		FeedLatency:     m.feedLatency.Snapshot(),
		MakerFills:      atomic.LoadUint64(&m.makerFills),
		TakerFills:      atomic.LoadUint64(&m.takerFills),
		FilledQty:       float64(atomic.LoadUint64(&m.filledQty)) / 1e6,
		Rejections:      rejections,
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
