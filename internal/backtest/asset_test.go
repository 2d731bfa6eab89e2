package backtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/depth"
	"hftbacktest/internal/errors"
	"hftbacktest/internal/exchange"
	"hftbacktest/internal/latency"
	"hftbacktest/internal/queue"
	"hftbacktest/internal/schema"
	"hftbacktest/internal/state"
	"hftbacktest/internal/tape"
)

// newTestStackWithLatency is newTestStack but lets the caller plug in a
// latency.Model other than the default constant one, to exercise
// latency.FeedLatency's dependence on ApplyTapeToLocal's Observe/ObserveNext
// calls.
func newTestStackWithLatency(t *testing.T, events []schema.Event, lat latency.Model) *AssetStack[float64] {
	t.Helper()
	tp, err := tape.New(events)
	require.NoError(t, err)

	exchBook := depth.New(1.0, 1.0, 900, 1100)
	localBook := depth.New(1.0, 1.0, 900, 1100)
	sim := exchange.NewNoPartialFillExchange[float64](exchBook, queue.RiskAverseQueueModel{}, 1.0, 1.0)

	cfg := AssetConfig[float64]{
		SymbolID:     1,
		AssetNo:      0,
		TickSize:     1.0,
		LotSize:      1.0,
		Fee:          schema.FeeModel{Mode: schema.FeePerValue, MakerFee: 0, TakerFee: 0},
		AssetType:    state.LinearAsset{ContractSize: 1},
		Tape:         tp,
		ExchangeBook: exchBook,
		LocalBook:    localBook,
		Exchange:     sim,
		Latency:      lat,
	}
	return NewAssetStack[float64](cfg)
}

// newTestStack builds a single-asset stack over the given tape events with
// a risk-averse L2 queue model, no-partial fills, and a constant
// entry/response latency of 10ns each.
func newTestStack(t *testing.T, events []schema.Event) *AssetStack[float64] {
	t.Helper()
	tp, err := tape.New(events)
	require.NoError(t, err)

	exchBook := depth.New(1.0, 1.0, 900, 1100)
	localBook := depth.New(1.0, 1.0, 900, 1100)
	sim := exchange.NewNoPartialFillExchange[float64](exchBook, queue.RiskAverseQueueModel{}, 1.0, 1.0)

	cfg := AssetConfig[float64]{
		SymbolID:     1,
		AssetNo:      0,
		TickSize:     1.0,
		LotSize:      1.0,
		Fee:          schema.FeeModel{Mode: schema.FeePerValue, MakerFee: 0, TakerFee: 0},
		AssetType:    state.LinearAsset{ContractSize: 1},
		Tape:         tp,
		ExchangeBook: exchBook,
		LocalBook:    localBook,
		Exchange:     sim,
		Latency:      latency.NewConstantLatency(10, 10),
	}
	return NewAssetStack[float64](cfg)
}

func snapshotEvent(side schema.Side, tick int64, qty float64, ts int64) schema.Event {
	f := schema.ExchEvent | schema.LocalEvent | schema.DepthSnapshotEvent
	if side == schema.Buy {
		f |= schema.BuyEvent
	} else {
		f |= schema.SellEvent
	}
	return schema.Event{Flags: f, ExchTs: ts, LocalTs: ts, Px: float64(tick), Qty: qty}
}

func beginEvent(ts int64) schema.Event {
	return schema.Event{Flags: schema.ExchEvent | schema.LocalEvent | schema.SnapshotBeginEvent | schema.BuyEvent | schema.SellEvent, ExchTs: ts, LocalTs: ts}
}

func endEvent(ts int64) schema.Event {
	return schema.Event{Flags: schema.ExchEvent | schema.LocalEvent | schema.SnapshotEndEvent | schema.BuyEvent | schema.SellEvent, ExchTs: ts, LocalTs: ts}
}

func tradeEvent(side schema.Side, tick int64, qty float64, exchTs, localTs int64) schema.Event {
	f := schema.ExchEvent | schema.LocalEvent | schema.TradeEvent
	if side == schema.Buy {
		f |= schema.BuyEvent
	} else {
		f |= schema.SellEvent
	}
	return schema.Event{Flags: f, ExchTs: exchTs, LocalTs: localTs, Px: float64(tick), Qty: qty}
}

func TestAssetStackSubmitRestsThenFillsOnTrade(t *testing.T) {
	events := []schema.Event{
		beginEvent(0),
		snapshotEvent(schema.Buy, 999, 5, 0),
		snapshotEvent(schema.Sell, 1001, 5, 0),
		endEvent(0),
		// A resting buy at 1000 fills on a sell trade, not a buy trade.
		tradeEvent(schema.Sell, 1000, 3, 100, 105),
	}
	a := newTestStack(t, events)

	a.ApplyTapeToExchange(0)
	a.ApplyTapeToLocal(0)

	code := a.SubmitOrder(0, 1, schema.Buy, 1000, 2, schema.GTC, schema.Limit)
	require.Equal(t, errors.CodeOK, code)

	ts, ok := a.NextRequestTs()
	require.True(t, ok)
	require.Equal(t, int64(10), ts)
	a.ApplyStrategyToExchange(10)

	_, ok = a.NextRequestTs()
	require.False(t, ok)
	respTs, ok := a.NextResponseTs()
	require.True(t, ok)
	require.Equal(t, int64(20), respTs)

	delivered := a.ApplyExchangeToLocal(20)
	require.Len(t, delivered, 1)
	require.Equal(t, schema.StatusOpen, delivered[0].Status)
	require.Equal(t, errors.CodeOK, delivered[0].Code)

	view, ok := a.Order(1)
	require.True(t, ok)
	require.Equal(t, schema.StatusOpen, view.Status)
	require.Equal(t, int64(1000), view.PriceTick)

	a.ApplyTapeToExchange(100)
	respTs, ok = a.NextResponseTs()
	require.True(t, ok)
	require.Equal(t, int64(110), respTs)

	require.Equal(t, float64(0), a.Position())
	delivered = a.ApplyExchangeToLocal(110)
	require.Len(t, delivered, 1)
	require.Equal(t, schema.StatusFilled, delivered[0].Status)
	require.Equal(t, float64(2), a.Position())
}

func TestAssetStackCancelUnknownOrderIsRejected(t *testing.T) {
	a := newTestStack(t, []schema.Event{beginEvent(0), endEvent(0)})
	a.ApplyTapeToExchange(0)

	code := a.CancelOrder(0, 999)
	require.Equal(t, errors.CodeOrderRejected, code)
}

func TestAssetStackApplyTapeToLocalReportsFeedEvents(t *testing.T) {
	events := []schema.Event{
		beginEvent(0),
		endEvent(0),
		tradeEvent(schema.Sell, 1000, 1, 50, 55),
	}
	a := newTestStack(t, events)
	a.ApplyTapeToExchange(0)
	require.False(t, a.ApplyTapeToLocal(0))

	require.True(t, a.ApplyTapeToLocal(60))
	require.Len(t, a.LastTrades(), 1)
}

func TestAssetStackFeedLatencyNeedsAnObservedSample(t *testing.T) {
	events := []schema.Event{
		beginEvent(0),
		endEvent(0),
		tradeEvent(schema.Sell, 1000, 1, 50, 55),
	}
	lat := &latency.FeedLatency{Variant: latency.FeedBackward, EntryMul: 1, ResponseMul: 1}
	a := newTestStackWithLatency(t, events, lat)
	a.ApplyTapeToExchange(0)

	// Before any DepthEvent/TradeEvent has been fed locally, FeedLatency has
	// no sample to derive a latency from, so submission is rejected.
	code := a.SubmitOrder(0, 1, schema.Buy, 999, 1, schema.GTC, schema.Limit)
	require.Equal(t, errors.CodeOrderRejected, code)

	require.True(t, a.ApplyTapeToLocal(60))

	// ApplyTapeToLocal must have called FeedLatency.Observe with the trade
	// row's local_ts-exch_ts, so Entry now returns a valid (non-negative)
	// latency and submission succeeds.
	code = a.SubmitOrder(60, 2, schema.Buy, 999, 1, schema.GTC, schema.Limit)
	require.Equal(t, errors.CodeOK, code)
}
