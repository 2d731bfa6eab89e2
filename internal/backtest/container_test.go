package backtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/errors"
	"hftbacktest/internal/schema"
)

func TestBacktestAdvancePicksEarliestPendingEvent(t *testing.T) {
	events := []schema.Event{
		beginEvent(0),
		snapshotEvent(schema.Buy, 999, 5, 0),
		snapshotEvent(schema.Sell, 1001, 5, 0),
		endEvent(0),
		tradeEvent(schema.Buy, 1000, 1, 500, 505),
	}
	a := newTestStack(t, events)
	bt := New([]AssetRunner{a})

	res := bt.Advance(1_000_000)
	require.Equal(t, errors.CodeOK, res.Code)
	require.Equal(t, int64(0), res.Timestamp) // the snapshot bracket sits at ts 0

	res = bt.Advance(1_000_000)
	require.Equal(t, int64(500), res.Timestamp) // next is the trade's exch_ts, not the full target
	require.False(t, res.Fed[0])                // feed latency: it isn't locally observable until local_ts=505

	res = bt.Advance(1_000_000)
	require.Equal(t, int64(505), res.Timestamp) // the local_ts candidate stops the clock here, not at target
	require.True(t, res.Fed[0])
}

func TestBacktestAdvanceStopsAtRequestArrivalThenResponseDelivery(t *testing.T) {
	events := []schema.Event{
		beginEvent(0),
		snapshotEvent(schema.Buy, 999, 5, 0),
		snapshotEvent(schema.Sell, 1001, 5, 0),
		endEvent(0),
	}
	a := newTestStack(t, events)
	bt := New([]AssetRunner{a})

	bt.Advance(0)
	code := a.SubmitOrder(0, 7, schema.Buy, 1000, 2, schema.GTC, schema.Limit)
	require.Equal(t, errors.CodeOK, code)

	res := bt.Advance(10)
	require.Equal(t, int64(10), res.Timestamp)

	res = bt.Advance(20)
	require.Len(t, res.Delivered[0], 1)
	require.Equal(t, schema.StatusOpen, res.Delivered[0][0].Status)
}

func TestBacktestEndOfDataTrueOnlyWhenNothingInFlight(t *testing.T) {
	a := newTestStack(t, []schema.Event{beginEvent(0), endEvent(0)})
	bt := New([]AssetRunner{a})

	bt.Advance(0)
	require.True(t, bt.EndOfData())

	a.SubmitOrder(0, 1, schema.Buy, 1000, 1, schema.GTC, schema.Limit)
	require.False(t, bt.EndOfData())
}
