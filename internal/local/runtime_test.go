package local

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/backtest"
	"hftbacktest/internal/depth"
	"hftbacktest/internal/errors"
	"hftbacktest/internal/exchange"
	"hftbacktest/internal/latency"
	"hftbacktest/internal/queue"
	"hftbacktest/internal/schema"
	"hftbacktest/internal/state"
	"hftbacktest/internal/tape"
)

func buildEvent(flags schema.EventFlags, exchTs, localTs int64, px, qty float64) schema.Event {
	return schema.Event{Flags: flags, ExchTs: exchTs, LocalTs: localTs, Px: px, Qty: qty}
}

func newTestRuntime(t *testing.T, events []schema.Event) *Runtime {
	t.Helper()
	tp, err := tape.New(events)
	require.NoError(t, err)

	exchBook := depth.New(1.0, 1.0, 900, 1100)
	localBook := depth.New(1.0, 1.0, 900, 1100)
	sim := exchange.NewNoPartialFillExchange[float64](exchBook, queue.RiskAverseQueueModel{}, 1.0, 1.0)

	cfg := backtest.AssetConfig[float64]{
		SymbolID:     1,
		AssetNo:      0,
		TickSize:     1.0,
		LotSize:      1.0,
		Fee:          schema.FeeModel{Mode: schema.FeePerValue},
		AssetType:    state.LinearAsset{ContractSize: 1},
		Tape:         tp,
		ExchangeBook: exchBook,
		LocalBook:    localBook,
		Exchange:     sim,
		Latency:      latency.NewConstantLatency(10, 10),
	}
	a := backtest.NewAssetStack[float64](cfg)
	bt := backtest.New([]backtest.AssetRunner{a})
	return NewRuntime(bt)
}

func bracket(ts int64, side ...schema.Side) []schema.Event {
	f := schema.EventFlags(schema.ExchEvent | schema.LocalEvent | schema.SnapshotBeginEvent)
	for _, s := range side {
		if s == schema.Buy {
			f |= schema.BuyEvent
		} else {
			f |= schema.SellEvent
		}
	}
	begin := buildEvent(f, ts, ts, 0, 0)
	end := buildEvent((f&^schema.SnapshotBeginEvent)|schema.SnapshotEndEvent, ts, ts, 0, 0)
	return []schema.Event{begin, end}
}

func TestRuntimeElapseAdvancesClock(t *testing.T) {
	events := bracket(0, schema.Buy, schema.Sell)
	r := newTestRuntime(t, events)

	code := r.Elapse(1000)
	require.Equal(t, errors.CodeOK, code)
	require.Equal(t, int64(1000), r.CurrentTimestamp())
}

func TestRuntimeSubmitAndWaitOrderResponse(t *testing.T) {
	events := []schema.Event{
		buildEvent(schema.ExchEvent|schema.LocalEvent|schema.SnapshotBeginEvent|schema.BuyEvent|schema.SellEvent, 0, 0, 0, 0),
		buildEvent(schema.ExchEvent|schema.LocalEvent|schema.DepthSnapshotEvent|schema.BuyEvent, 0, 0, 999, 5),
		buildEvent(schema.ExchEvent|schema.LocalEvent|schema.DepthSnapshotEvent|schema.SellEvent, 0, 0, 1001, 5),
		buildEvent(schema.ExchEvent|schema.LocalEvent|schema.SnapshotEndEvent|schema.BuyEvent|schema.SellEvent, 0, 0, 0, 0),
	}
	r := newTestRuntime(t, events)
	require.Equal(t, errors.CodeOK, r.Elapse(1))

	code := r.SubmitBuyOrder(0, 1, 1000, 2, schema.GTC, schema.Limit, true)
	require.Equal(t, errors.CodeOK, code)

	orders := r.Orders(0)
	require.Len(t, orders, 1)
	require.Equal(t, schema.StatusOpen, orders[0].Status)
	require.Equal(t, int64(1000), orders[0].PriceTick)
}

func TestRuntimeCancelUnknownOrderRejected(t *testing.T) {
	r := newTestRuntime(t, bracket(0))
	require.Equal(t, errors.CodeOK, r.Elapse(1))

	code := r.Cancel(0, 42, false)
	require.Equal(t, errors.CodeOrderRejected, code)
}

func TestRuntimeCloseIsIdempotentAndStopsMutation(t *testing.T) {
	r := newTestRuntime(t, bracket(0, schema.Buy, schema.Sell))
	require.Equal(t, errors.CodeOK, r.Elapse(1))

	require.Equal(t, errors.CodeOK, r.Close())
	require.Equal(t, errors.CodeOK, r.Close())

	code := r.SubmitBuyOrder(0, 1, 1000, 1, schema.GTC, schema.Limit, false)
	require.Equal(t, errors.CodeStopped, code)
}

func TestRuntimeWaitNextFeedReportsEndOfDataWhenTapeIsExhausted(t *testing.T) {
	r := newTestRuntime(t, bracket(0))
	require.Equal(t, errors.CodeOK, r.Elapse(1))

	code := r.WaitNextFeed(false, 100)
	require.Equal(t, errors.CodeEndOfData, code)
}

func TestRuntimeWaitNextFeedTimesOutBeforeALaterFeedArrives(t *testing.T) {
	events := []schema.Event{
		buildEvent(schema.ExchEvent|schema.LocalEvent|schema.TradeEvent|schema.BuyEvent, 1000, 1000, 1000, 1),
	}
	r := newTestRuntime(t, events)

	code := r.WaitNextFeed(false, 100)
	require.Equal(t, errors.CodeTimeout, code)
}
