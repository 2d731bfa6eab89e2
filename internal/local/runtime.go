// Package local implements the local runtime of spec §4.F: the Strategy
// API a strategy is written against, driving the shared virtual clock
// through internal/backtest's event-arbitration loop and suspending only
// at the explicit points §5 names (Elapse, WaitNextFeed,
// WaitOrderResponse, and any order call with wait=true).
package local

import (
	"math"

	"hftbacktest/internal/backtest"
	"hftbacktest/internal/depth"
	"hftbacktest/internal/errors"
	"hftbacktest/internal/schema"
	"hftbacktest/internal/state"
)

// Runtime wraps a *backtest.Backtest with the Strategy API. It never sees
// the queue-position type any individual asset's queue model uses —
// everything it touches is behind backtest.AssetRunner.
type Runtime struct {
	bt     *backtest.Backtest
	closed bool
}

// NewRuntime constructs a Runtime over bt.
func NewRuntime(bt *backtest.Backtest) *Runtime {
	return &Runtime{bt: bt}
}

func (r *Runtime) asset(assetNo int) backtest.AssetRunner {
	return r.bt.Assets()[assetNo]
}

// CurrentTimestamp returns the shared virtual clock's current value.
func (r *Runtime) CurrentTimestamp() int64 { return r.bt.CurrentTimestamp() }

// Position returns the asset's current position.
func (r *Runtime) Position(assetNo int) float64 { return r.asset(assetNo).Position() }

// Depth returns the asset's local-side depth view (best_bid, best_ask,
// best_bid_tick, best_ask_tick, bid/ask qty at tick, tick_size, lot_size
// are all methods on the returned *depth.MarketDepth).
func (r *Runtime) Depth(assetNo int) *depth.MarketDepth { return r.asset(assetNo).LocalDepth() }

// Orders returns an iterable view of the asset's known (locally observed)
// orders.
func (r *Runtime) Orders(assetNo int) []backtest.OrderView { return r.asset(assetNo).Orders() }

// LastTrades returns the asset's recent trades since the last
// ClearLastTrades.
func (r *Runtime) LastTrades(assetNo int) []schema.Event { return r.asset(assetNo).LastTrades() }

// State returns the asset's raw bookkeeping, for building a post-run
// state.Report across every asset.
func (r *Runtime) State(assetNo int) *state.AssetState { return r.asset(assetNo).State() }

// StateValues returns the asset's position/balance/fee/trade-counter
// snapshot, marked at the current local mid price.
func (r *Runtime) StateValues(assetNo int) schema.StateValuesRecord {
	return r.asset(assetNo).StateValues(midPrice(r.Depth(assetNo)))
}

func midPrice(d *depth.MarketDepth) float64 {
	bid, ask := d.BestBid(), d.BestAsk()
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case ask > 0:
		return ask
	default:
		return bid
	}
}

// GetUserData returns the most recent event tagged with tag (spec §6
// "User data").
func (r *Runtime) GetUserData(assetNo int, tag uint32) (schema.Event, bool) {
	return r.asset(assetNo).UserData(tag)
}

// ClearInactiveOrders drops every known order in a terminal status.
func (r *Runtime) ClearInactiveOrders(assetNo int) { r.asset(assetNo).ClearInactiveOrders() }

// ClearLastTrades resets the recent-trades log and trade counters.
func (r *Runtime) ClearLastTrades(assetNo int) { r.asset(assetNo).ClearLastTrades() }

// SubmitBuyOrder submits a buy order, rounding price to the asset's tick
// size and qty to its lot size (spec §6 "Tick/lot semantics"). If wait is
// set, it advances the clock until the order's response is delivered.
func (r *Runtime) SubmitBuyOrder(assetNo int, orderID uint64, price, qty float64, tif schema.TimeInForce, otype schema.OrderType, wait bool) errors.Code {
	return r.submit(assetNo, orderID, schema.Buy, price, qty, tif, otype, wait)
}

// SubmitSellOrder is the sell counterpart of SubmitBuyOrder.
func (r *Runtime) SubmitSellOrder(assetNo int, orderID uint64, price, qty float64, tif schema.TimeInForce, otype schema.OrderType, wait bool) errors.Code {
	return r.submit(assetNo, orderID, schema.Sell, price, qty, tif, otype, wait)
}

func (r *Runtime) submit(assetNo int, orderID uint64, side schema.Side, price, qty float64, tif schema.TimeInForce, otype schema.OrderType, wait bool) errors.Code {
	if r.closed {
		return errors.CodeStopped
	}
	d := r.Depth(assetNo)
	tick := schema.RoundToTick(price, d.TickSize())
	lot := schema.SnapToLot(qty, d.LotSize())
	code := r.asset(assetNo).SubmitOrder(r.CurrentTimestamp(), orderID, side, tick, lot, tif, otype)
	if code != errors.CodeOK || !wait {
		return code
	}
	return r.WaitOrderResponse(assetNo, orderID, 0)
}

// Modify changes a resting order's price and quantity.
func (r *Runtime) Modify(assetNo int, orderID uint64, price, qty float64, wait bool) errors.Code {
	if r.closed {
		return errors.CodeStopped
	}
	d := r.Depth(assetNo)
	tick := schema.RoundToTick(price, d.TickSize())
	lot := schema.SnapToLot(qty, d.LotSize())
	code := r.asset(assetNo).ModifyOrder(r.CurrentTimestamp(), orderID, tick, lot)
	if code != errors.CodeOK || !wait {
		return code
	}
	return r.WaitOrderResponse(assetNo, orderID, 0)
}

// Cancel cancels a resting order.
func (r *Runtime) Cancel(assetNo int, orderID uint64, wait bool) errors.Code {
	if r.closed {
		return errors.CodeStopped
	}
	code := r.asset(assetNo).CancelOrder(r.CurrentTimestamp(), orderID)
	if code != errors.CodeOK || !wait {
		return code
	}
	return r.WaitOrderResponse(assetNo, orderID, 0)
}

// Elapse drives the simulation forward until the virtual clock reaches
// start+durationNs or a terminal condition (STOPPED) occurs (spec §4.F).
// It returns END_OF_DATA without advancing when called after every tape is
// exhausted and nothing is in flight; an Elapse during which the data runs
// out still advances to its target and returns OK.
func (r *Runtime) Elapse(durationNs int64) errors.Code {
	if r.closed {
		return errors.CodeStopped
	}
	if r.bt.EndOfData() {
		return errors.CodeEndOfData
	}
	target := r.bt.CurrentTimestamp() + durationNs
	for r.bt.CurrentTimestamp() < target {
		res := r.bt.Advance(target)
		if res.Code != errors.CodeOK {
			return res.Code
		}
	}
	return errors.CodeOK
}

// ElapseBT advances backtest time only. This core has no live external
// time source to elapse independently of (that collaborator is the *Live
// connector* named out of scope in spec §6), so it behaves identically to
// Elapse here.
func (r *Runtime) ElapseBT(durationNs int64) errors.Code { return r.Elapse(durationNs) }

// WaitNextFeed advances until the next DEPTH_EVENT/TRADE_EVENT is
// delivered locally on any asset (and, if includeOrderResp is set, until
// any order response arrives first), or the timeout elapses. timeoutNs
// <= 0 means no timeout.
func (r *Runtime) WaitNextFeed(includeOrderResp bool, timeoutNs int64) errors.Code {
	if r.closed {
		return errors.CodeStopped
	}
	deadline := r.deadline(timeoutNs)
	for {
		if r.bt.CurrentTimestamp() >= deadline {
			return errors.CodeTimeout
		}
		if r.bt.EndOfData() {
			return errors.CodeEndOfData
		}
		res := r.bt.Advance(deadline)
		if res.Code != errors.CodeOK {
			return res.Code
		}
		for _, fed := range res.Fed {
			if fed {
				return errors.CodeOK
			}
		}
		if includeOrderResp && len(res.Delivered) > 0 {
			return errors.CodeOK
		}
		if res.Timestamp >= deadline {
			return errors.CodeTimeout
		}
	}
}

// WaitOrderResponse advances until a response for orderID is delivered
// locally on assetNo, or the timeout elapses. timeoutNs <= 0 means no
// timeout.
func (r *Runtime) WaitOrderResponse(assetNo int, orderID uint64, timeoutNs int64) errors.Code {
	if r.closed {
		return errors.CodeStopped
	}
	deadline := r.deadline(timeoutNs)
	for {
		if r.bt.CurrentTimestamp() >= deadline {
			return errors.CodeTimeout
		}
		res := r.bt.Advance(deadline)
		if res.Code != errors.CodeOK {
			return res.Code
		}
		for _, d := range res.Delivered[assetNo] {
			if d.OrderID == orderID {
				return d.Code
			}
		}
		if res.Timestamp >= deadline {
			return errors.CodeTimeout
		}
	}
}

func (r *Runtime) deadline(timeoutNs int64) int64 {
	if timeoutNs <= 0 {
		return math.MaxInt64
	}
	return r.bt.CurrentTimestamp() + timeoutNs
}

// Close drains every in-flight exchange->local response, marks the
// backtest terminal, and is idempotent: further mutate/control calls
// return STOPPED. Reads remain valid against the frozen final state.
func (r *Runtime) Close() errors.Code {
	if r.closed {
		return errors.CodeOK
	}
	r.bt.Stop()
	for {
		next, ok := r.nextInFlightTs()
		if !ok {
			break
		}
		r.bt.Advance(next)
	}
	r.closed = true
	return errors.CodeOK
}

func (r *Runtime) nextInFlightTs() (int64, bool) {
	best := int64(math.MaxInt64)
	found := false
	for _, a := range r.bt.Assets() {
		if ts, ok := a.NextRequestTs(); ok && ts < best {
			best, found = ts, true
		}
		if ts, ok := a.NextResponseTs(); ok && ts < best {
			best, found = ts, true
		}
	}
	return best, found
}
