// Package latency implements the order latency models of §4.C: given an
// order request at local time t, produce an (entry, response) latency pair.
package latency

import (
	"hftbacktest/internal/errors"
	"hftbacktest/internal/schema"
)

// OrderRef is the order-identifying subset a latency model may consult.
// Latency models never need the queue-model's opaque position, so this
// stays a plain struct rather than the generic schema.Order[Q] — a model
// must work the same way regardless of which queue model variant is active.
type OrderRef struct {
	OrderID     uint64
	Side        schema.Side
	PriceTick   int64
	Qty         float64
	OrderType   schema.OrderType
	TimeInForce schema.TimeInForce
}

// Model is consulted on every order submission (Entry) and whenever the
// exchange side schedules a response (Response). A negative entry latency means the
// request is dropped; callers treat that as an immediate REJECTED response.
type Model interface {
	Entry(timestamp int64, order OrderRef) int64
	Response(timestamp int64, order OrderRef) int64
}

// ConstantLatency returns the same entry/response latency for every order.
type ConstantLatency struct {
	EntryLatency    int64
	ResponseLatency int64
}

// NewConstantLatency constructs a ConstantLatency model.
func NewConstantLatency(entry, response int64) ConstantLatency {
	return ConstantLatency{EntryLatency: entry, ResponseLatency: response}
}

func (c ConstantLatency) Entry(_ int64, _ OrderRef) int64 { return c.EntryLatency }

func (c ConstantLatency) Response(_ int64, _ OrderRef) int64 { return c.ResponseLatency }

// FeedVariant selects how FeedLatency samples the most recently observed
// local_ts - exch_ts of a tape event.
type FeedVariant uint8

const (
	// FeedPlain averages the backward- and forward-looking samples.
	FeedPlain FeedVariant = iota
	// FeedBackward uses only the most recently observed sample.
	FeedBackward
	// FeedForward uses only the next (look-ahead) sample.
	FeedForward
)

// FeedSample is one (local_ts, exch_ts) observation of a tape event.
type FeedSample struct {
	LocalTs int64
	ExchTs  int64
	Valid   bool
}

// FeedLatency derives order latency from observed feed latency
// (local_ts - exch_ts), per the original's FeedLatency/ForwardFeedLatency/
// BackwardFeedLatency models.
type FeedLatency struct {
	Variant      FeedVariant
	EntryMul     float64
	ResponseMul  float64
	EntryBase    int64
	ResponseBase int64

	last FeedSample // most recently observed (backward-looking)
	next FeedSample // look-ahead sample (forward-looking)
}

// Observe records the most recently seen tape event's feed latency sample.
func (f *FeedLatency) Observe(localTs, exchTs int64) {
	f.last = FeedSample{LocalTs: localTs, ExchTs: exchTs, Valid: true}
}

// ObserveNext records the upcoming (look-ahead) tape event's feed sample,
// mirroring the original's forward-looking scan over proc.next_data.
func (f *FeedLatency) ObserveNext(localTs, exchTs int64) {
	f.next = FeedSample{LocalTs: localTs, ExchTs: exchTs, Valid: true}
}

func (f *FeedLatency) feedLatency() (float64, bool) {
	lat1, ok1 := sampleLatency(f.last)
	lat2, ok2 := sampleLatency(f.next)
	switch f.Variant {
	case FeedBackward:
		return lat1, ok1
	case FeedForward:
		return lat2, ok2
	default:
		switch {
		case ok1 && ok2:
			return (lat1 + lat2) / 2.0, true
		case ok1:
			return lat1, true
		case ok2:
			return lat2, true
		default:
			return 0, false
		}
	}
}

func sampleLatency(s FeedSample) (float64, bool) {
	if !s.Valid {
		return 0, false
	}
	return float64(s.LocalTs - s.ExchTs), true
}

func (f *FeedLatency) Entry(_ int64, _ OrderRef) int64 {
	lat, ok := f.feedLatency()
	if !ok {
		return -1
	}
	return f.EntryBase + int64(f.EntryMul*lat)
}

func (f *FeedLatency) Response(_ int64, _ OrderRef) int64 {
	lat, ok := f.feedLatency()
	if !ok {
		return -1
	}
	return f.ResponseBase + int64(f.ResponseMul*lat)
}

// LatencyRow is one (req_ts, exch_ts, resp_ts) sample of the interpolated
// order latency table, monotone in ReqTs.
type LatencyRow struct {
	ReqTs  int64
	ExchTs int64
	RespTs int64
}

// IntpOrderLatency performs piecewise-linear interpolation over a sorted
// table of observed order latencies, per the original Rust/Python
// IntpOrderLatency models.
type IntpOrderLatency struct {
	rows   []LatencyRow
	entryN int
	respN  int
}

// NewIntpOrderLatency constructs an interpolated latency model from a
// non-empty, req_ts-sorted table.
func NewIntpOrderLatency(rows []LatencyRow) (*IntpOrderLatency, error) {
	if len(rows) == 0 {
		return nil, errors.NewCoded(errors.CodeDataInvalid, "latency table is empty")
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].ReqTs < rows[i-1].ReqTs {
			return nil, errors.NewCoded(errors.CodeDataInvalid, "latency table not monotone in req_ts")
		}
	}
	return &IntpOrderLatency{rows: rows}, nil
}

func intp(x, x1, y1, x2, y2 int64) int64 {
	return int64(float64(y2-y1)/float64(x2-x1)*float64(x-x1)) + y1
}

func (m *IntpOrderLatency) Entry(timestamp int64, _ OrderRef) int64 {
	first, last := m.rows[0], m.rows[len(m.rows)-1]
	if timestamp < first.ReqTs {
		return first.ExchTs - first.ReqTs
	}
	if timestamp >= last.ReqTs {
		return last.ExchTs - last.ReqTs
	}
	for i := m.entryN; i < len(m.rows)-1; i++ {
		row, next := m.rows[i], m.rows[i+1]
		if row.ReqTs <= timestamp && timestamp < next.ReqTs {
			m.entryN = i
			if row.ExchTs <= 0 || next.ExchTs <= 0 {
				lat1 := row.RespTs - row.ReqTs
				lat2 := next.RespTs - next.ReqTs
				return -intp(timestamp, row.ReqTs, lat1, next.ReqTs, lat2)
			}
			lat1 := row.ExchTs - row.ReqTs
			lat2 := next.ExchTs - next.ReqTs
			return intp(timestamp, row.ReqTs, lat1, next.ReqTs, lat2)
		}
	}
	return -1
}

func (m *IntpOrderLatency) Response(timestamp int64, _ OrderRef) int64 {
	first, last := m.rows[0], m.rows[len(m.rows)-1]
	if timestamp < first.ExchTs {
		return first.RespTs - first.ExchTs
	}
	if timestamp >= last.ExchTs {
		return last.RespTs - last.ExchTs
	}
	for i := m.respN; i < len(m.rows)-1; i++ {
		row, next := m.rows[i], m.rows[i+1]
		if row.ExchTs <= timestamp && timestamp < next.ExchTs {
			m.respN = i
			lat1 := row.RespTs - row.ExchTs
			lat2 := next.RespTs - next.ExchTs
			lat := intp(timestamp, row.ExchTs, lat1, next.ExchTs, lat2)
			if lat < 0 {
				return -1
			}
			return lat
		}
	}
	return -1
}
