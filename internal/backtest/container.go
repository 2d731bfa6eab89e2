package backtest

import (
	"math"

	"hftbacktest/internal/errors"
)

// Backtest is the multi-asset container of spec §2/§5: one AssetRunner per
// asset, a single shared virtual clock, and no locking, since Advance is
// the only mutator and is never called concurrently (§5 "no locking
// because there is no parallelism").
type Backtest struct {
	assets []AssetRunner
	clock  int64
	run    bool
}

// New constructs a Backtest over the given assets, in the order they will
// be addressed by asset index everywhere else in this package and in
// internal/local.
func New(assets []AssetRunner) *Backtest {
	return &Backtest{assets: assets, run: true}
}

// Assets returns the configured asset stacks, in asset-index order.
func (b *Backtest) Assets() []AssetRunner { return b.assets }

// CurrentTimestamp returns the shared virtual clock's current value.
func (b *Backtest) CurrentTimestamp() int64 { return b.clock }

// Stop requests a cooperative halt (spec §5 "hbt.run = false"): once it is
// set, Advance still picks its timestamp and applies the due effects as
// before but returns CodeStopped, so in-flight responses already scheduled
// are still delivered by subsequent Advance calls (Runtime.Close advances
// to each pending request/response timestamp this way).
func (b *Backtest) Stop() { b.run = false }

// Stopped reports whether Stop has been called.
func (b *Backtest) Stopped() bool { return !b.run }

// AdvanceResult describes what the arbitration loop did at one step.
type AdvanceResult struct {
	Timestamp int64
	Delivered map[int][]Delivered // asset index -> responses delivered to the local side
	Fed       map[int]bool        // asset index -> a DEPTH_EVENT/TRADE_EVENT reached the local side
	Code      errors.Code
}

// Advance runs one step of the §4.F arbitration algorithm: it picks the
// smallest of (i) every asset's next exchange-side event timestamp, (ii)
// every asset's next local-side event timestamp, (iii) every asset's next
// pending request arrival, (iv) every asset's next pending response
// delivery, and (v) targetTs (the caller's requested end-of-elapse), then
// applies tape->exchange, strategy->exchange, exchange->local, and
// tape->local effects at that timestamp for every asset, in that order.
// Candidate (ii) matters on its own whenever a row's local_ts trails its
// exch_ts far enough that the exchange-side cursor has moved past it before
// feed latency delivers it locally — without it the clock could jump
// straight to targetTs and skip over the exact instant the row becomes
// locally observable. Callers loop until Code != CodeOK or Timestamp >=
// targetTs; strategy-wakeup (the fifth effect in §4.F) is the caller's
// job, since only internal/local knows what the strategy is waiting on.
func (b *Backtest) Advance(targetTs int64) AdvanceResult {
	next := targetTs
	haveEvent := false
	for _, a := range b.assets {
		if ts, ok := a.NextExchTs(); ok && ts < next {
			next, haveEvent = ts, true
		}
		if ts, ok := a.NextLocalTs(); ok && ts < next {
			next, haveEvent = ts, true
		}
		if ts, ok := a.NextRequestTs(); ok && ts < next {
			next, haveEvent = ts, true
		}
		if ts, ok := a.NextResponseTs(); ok && ts < next {
			next, haveEvent = ts, true
		}
	}
	if !haveEvent {
		next = targetTs
	}
	if next < b.clock {
		next = b.clock
	}
	b.clock = next

	delivered := make(map[int][]Delivered)
	fed := make(map[int]bool)
	for i, a := range b.assets {
		a.ApplyTapeToExchange(b.clock)
		a.ApplyStrategyToExchange(b.clock)
		if d := a.ApplyExchangeToLocal(b.clock); len(d) > 0 {
			delivered[i] = d
		}
		if a.ApplyTapeToLocal(b.clock) {
			fed[i] = true
		}
	}

	code := errors.CodeOK
	if !b.run {
		code = errors.CodeStopped
	}
	return AdvanceResult{Timestamp: b.clock, Delivered: delivered, Fed: fed, Code: code}
}

// EndOfData reports whether every asset's tape is exhausted on both
// cursors and no request/response remains in flight.
func (b *Backtest) EndOfData() bool {
	for _, a := range b.assets {
		if !a.EndOfData() {
			return false
		}
		if _, ok := a.NextRequestTs(); ok {
			return false
		}
		if _, ok := a.NextResponseTs(); ok {
			return false
		}
	}
	return true
}

// NoTimestamp is a sentinel for "nothing pending", kept distinct from 0 so
// it is never confused with an event scheduled at the epoch. The peek
// methods of AssetRunner report "nothing pending" with a false bool
// instead and do not return it.
const NoTimestamp = int64(math.MinInt64)
