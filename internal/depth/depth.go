// Package depth reconstructs the limit order book from tape events (§4.B):
// a hashed sparse view for any price range plus a dense ring array within a
// configured Region-Of-Interest for O(1) best-price scans.
package depth

import (
	"hftbacktest/internal/schema"
)

// NoTick marks an empty book side.
const NoTick = int64(-1) << 62

// MarketDepth maintains one side-pair L2 book for one asset, as either the
// exchange-side or the local-side view.
type MarketDepth struct {
	tickSize float64
	lotSize  float64

	roiLow  int64
	roiHigh int64
	bidROI  []float64
	askROI  []float64

	bidMap map[int64]float64
	askMap map[int64]float64

	bestBidTick int64
	bestAskTick int64
}

// New constructs an empty book for the given tick/lot size and ROI range
// (inclusive). An empty ROI (roiHigh < roiLow) disables the dense ring and
// the book operates purely off the hashed map.
func New(tickSize, lotSize float64, roiLow, roiHigh int64) *MarketDepth {
	d := &MarketDepth{
		tickSize:    tickSize,
		lotSize:     lotSize,
		roiLow:      roiLow,
		roiHigh:     roiHigh,
		bidMap:      make(map[int64]float64),
		askMap:      make(map[int64]float64),
		bestBidTick: NoTick,
		bestAskTick: NoTick,
	}
	if roiHigh >= roiLow {
		d.bidROI = make([]float64, roiHigh-roiLow+1)
		d.askROI = make([]float64, roiHigh-roiLow+1)
	}
	return d
}

// TickSize returns the asset's tick size.
func (d *MarketDepth) TickSize() float64 { return d.tickSize }

// LotSize returns the asset's lot size.
func (d *MarketDepth) LotSize() float64 { return d.lotSize }

func (d *MarketDepth) inROI(tick int64) bool {
	return len(d.bidROI) > 0 && tick >= d.roiLow && tick <= d.roiHigh
}

func (d *MarketDepth) mapFor(side schema.Side) map[int64]float64 {
	if side == schema.Buy {
		return d.bidMap
	}
	return d.askMap
}

func (d *MarketDepth) roiFor(side schema.Side) []float64 {
	if side == schema.Buy {
		return d.bidROI
	}
	return d.askROI
}

func (d *MarketDepth) bestTickPtr(side schema.Side) *int64 {
	if side == schema.Buy {
		return &d.bestBidTick
	}
	return &d.bestAskTick
}

// QtyAtTick returns the resting quantity at price_tick on side, zero if the
// level is empty.
func (d *MarketDepth) QtyAtTick(side schema.Side, tick int64) float64 {
	if d.inROI(tick) {
		return d.roiFor(side)[tick-d.roiLow]
	}
	return d.mapFor(side)[tick]
}

// BestBidTick returns the best bid's price_tick, or NoTick if the bid side
// is empty.
func (d *MarketDepth) BestBidTick() int64 { return d.bestBidTick }

// BestAskTick returns the best ask's price_tick, or NoTick if the ask side
// is empty.
func (d *MarketDepth) BestAskTick() int64 { return d.bestAskTick }

// BestBid returns the best bid price, or 0 if the bid side is empty.
func (d *MarketDepth) BestBid() float64 {
	if d.bestBidTick == NoTick {
		return 0
	}
	return schema.TickToPrice(d.bestBidTick, d.tickSize)
}

// BestAsk returns the best ask price, or 0 if the ask side is empty.
func (d *MarketDepth) BestAsk() float64 {
	if d.bestAskTick == NoTick {
		return 0
	}
	return schema.TickToPrice(d.bestAskTick, d.tickSize)
}

// ApplyDepth sets the quantity at price_tick on side; zero removes the
// level. A non-empty level that improves on the best becomes the new best;
// emptying the best level rescans that whole side (hashed map and ROI
// array) for the next best (§4.B).
func (d *MarketDepth) ApplyDepth(side schema.Side, tick int64, newQty float64) {
	if d.inROI(tick) {
		d.roiFor(side)[tick-d.roiLow] = newQty
	} else if newQty <= 0 {
		delete(d.mapFor(side), tick)
	} else {
		d.mapFor(side)[tick] = newQty
	}
	d.updateBest(side, tick, newQty)
}

// better reports whether candidate improves on best for side (higher for
// bids, lower for asks); NoTick never compares as better than itself.
func better(side schema.Side, candidate, best int64) bool {
	if best == NoTick {
		return true
	}
	if side == schema.Buy {
		return candidate > best
	}
	return candidate < best
}

func (d *MarketDepth) updateBest(side schema.Side, tick int64, qty float64) {
	best := d.bestTickPtr(side)
	if qty > 0 {
		if better(side, tick, *best) {
			*best = tick
		}
		return
	}
	// Only emptying the best level moves the best pointer; scanBest then
	// rescans every level of the side for the next non-empty one.
	if tick != *best {
		return
	}
	*best = d.scanBest(side)
}

// ApplyTrade records a trade at price_tick on side without mutating the
// book quantity at that level; callers forward the notification to the
// queue model and the exchange matcher themselves.
func (d *MarketDepth) ApplyTrade(side schema.Side, tick int64, qty float64) {
	_ = side
	_ = tick
	_ = qty
}

// Clear wipes one side of the book, used on DEPTH_CLEAR_EVENT / snapshot
// begin markers.
func (d *MarketDepth) Clear(side schema.Side) {
	if side == schema.Buy {
		d.bidMap = make(map[int64]float64)
		for i := range d.bidROI {
			d.bidROI[i] = 0
		}
		d.bestBidTick = NoTick
		return
	}
	d.askMap = make(map[int64]float64)
	for i := range d.askROI {
		d.askROI[i] = 0
	}
	d.bestAskTick = NoTick
}

// RecomputeBest rescans the book and recomputes both best pointers; used
// after a snapshot-end marker closes an atomic snapshot application.
func (d *MarketDepth) RecomputeBest() {
	d.bestBidTick = d.scanBest(schema.Buy)
	d.bestAskTick = d.scanBest(schema.Sell)
}

func (d *MarketDepth) scanBest(side schema.Side) int64 {
	best := NoTick
	for tick, qty := range d.mapFor(side) {
		if qty > 0 && better(side, tick, best) {
			best = tick
		}
	}
	for i, qty := range d.roiFor(side) {
		if qty <= 0 {
			continue
		}
		tick := d.roiLow + int64(i)
		if better(side, tick, best) {
			best = tick
		}
	}
	return best
}
