package exchange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/depth"
	"hftbacktest/internal/errors"
	"hftbacktest/internal/queue"
	"hftbacktest/internal/schema"
)

const tick = 0.1

func newBook() *depth.MarketDepth {
	d := depth.New(tick, 0.1, -10000, 10000)
	d.ApplyDepth(schema.Buy, schema.RoundToTick(100.0, tick), 1.0)
	d.ApplyDepth(schema.Sell, schema.RoundToTick(100.1, tick), 1.0)
	return d
}

// Scenario 1: immediate taker.
func TestImmediateTaker(t *testing.T) {
	book := newBook()
	ex := NewNoPartialFillExchange[float64](book, queue.RiskAverseQueueModel{}, tick, 0.1)

	ord := &schema.Order[float64]{OrderID: 1, Side: schema.Buy, OrderType: schema.Market, Qty: 0.5, TimeInForce: schema.GTC}
	resp := ex.Submit(0, ord)
	require.Equal(t, errors.CodeOK, resp.Code)
	require.Len(t, resp.Fills, 1)
	require.Equal(t, schema.RoundToTick(100.1, tick), resp.Fills[0].PriceTick)
	require.Equal(t, 0.5, resp.Fills[0].Qty)
	require.Equal(t, schema.StatusFilled, ord.Status)
}

// Scenario 2: GTX rejection.
func TestGTXRejection(t *testing.T) {
	book := newBook()
	ex := NewNoPartialFillExchange[float64](book, queue.RiskAverseQueueModel{}, tick, 0.1)

	ord := &schema.Order[float64]{
		OrderID: 1, Side: schema.Buy, OrderType: schema.Limit,
		PriceTick: schema.RoundToTick(100.1, tick), Qty: 1.0, TimeInForce: schema.GTX,
	}
	resp := ex.Submit(0, ord)
	require.Equal(t, errors.CodeOrderRejected, resp.Code)
	require.Empty(t, resp.Fills)
}

// Scenario 3: front-of-queue fill, no-partial.
func TestFrontOfQueueFillNoPartial(t *testing.T) {
	book := depth.New(tick, 0.1, -10000, 10000)
	askTick := schema.RoundToTick(100.1, tick)
	book.ApplyDepth(schema.Sell, askTick, 2.0)

	ex := NewNoPartialFillExchange[float64](book, queue.RiskAverseQueueModel{}, tick, 0.1)
	ord := &schema.Order[float64]{OrderID: 1, Side: schema.Sell, OrderType: schema.Limit, PriceTick: askTick, Qty: 0.3, TimeInForce: schema.GTC}
	resp := ex.Submit(0, ord)
	require.Equal(t, errors.CodeOK, resp.Code)
	require.Equal(t, schema.StatusOpen, ord.Status)
	require.Equal(t, 2.0, ord.QueuePos) // front qty = level qty at admission

	ord.QueuePos = 0 // order is at the front of the queue
	// A resting sell is hit by a buy trade at its price, not a sell trade.
	fills := ex.ApplyTradeEvent(schema.Event{
		Flags: schema.TradeEvent | schema.BuyEvent, Px: 100.1, Qty: 0.1,
	})
	require.Len(t, fills, 1)
	require.Equal(t, 0.3, fills[0].Qty) // full fill regardless of trade qty
	require.Equal(t, schema.StatusFilled, ord.Status)
}

// Scenario 4: front-of-queue fill, partial.
func TestFrontOfQueueFillPartial(t *testing.T) {
	book := depth.New(tick, 0.1, -10000, 10000)
	askTick := schema.RoundToTick(100.1, tick)
	book.ApplyDepth(schema.Sell, askTick, 2.0)

	ex := NewPartialFillExchange[float64](book, queue.RiskAverseQueueModel{}, tick, 0.1)
	ord := &schema.Order[float64]{OrderID: 1, Side: schema.Sell, OrderType: schema.Limit, PriceTick: askTick, Qty: 0.3, TimeInForce: schema.GTC}
	resp := ex.Submit(0, ord)
	require.Equal(t, errors.CodeOK, resp.Code)

	ord.QueuePos = 0
	// A resting sell is hit by a buy trade at its price, not a sell trade.
	fills := ex.ApplyTradeEvent(schema.Event{
		Flags: schema.TradeEvent | schema.BuyEvent, Px: 100.1, Qty: 0.1,
	})
	require.Len(t, fills, 1)
	require.Equal(t, 0.1, fills[0].Qty)
	require.Equal(t, schema.StatusPartiallyFilled, ord.Status)
	require.InDelta(t, 0.2, ord.LeftoverQty, 1e-9)
}

// Scenario 6 (exchange half): cleared-side resting orders are canceled.
func TestClearEventCancelsRestingOrders(t *testing.T) {
	book := depth.New(tick, 0.1, -10000, 10000)
	bidTick := schema.RoundToTick(99.5, tick)
	book.ApplyDepth(schema.Buy, bidTick, 1.0)

	ex := NewNoPartialFillExchange[float64](book, queue.RiskAverseQueueModel{}, tick, 0.1)
	ord := &schema.Order[float64]{OrderID: 1, Side: schema.Buy, OrderType: schema.Limit, PriceTick: schema.RoundToTick(99.0, tick), Qty: 1.0, TimeInForce: schema.GTC}
	ex.Submit(0, ord)

	responses := ex.ApplyClearEvent(schema.Event{Flags: schema.DepthClearEvent | schema.BuyEvent, ExchTs: 5})
	require.Len(t, responses, 1)
	require.Equal(t, schema.StatusCanceled, responses[0].Order.Status)
}

func TestDuplicateOrderIDRejected(t *testing.T) {
	book := newBook()
	ex := NewNoPartialFillExchange[float64](book, queue.RiskAverseQueueModel{}, tick, 0.1)
	ord1 := &schema.Order[float64]{OrderID: 1, Side: schema.Buy, OrderType: schema.Limit, PriceTick: schema.RoundToTick(99.0, tick), Qty: 1.0, TimeInForce: schema.GTC}
	ex.Submit(0, ord1)

	ord2 := &schema.Order[float64]{OrderID: 1, Side: schema.Buy, OrderType: schema.Limit, PriceTick: schema.RoundToTick(99.0, tick), Qty: 1.0, TimeInForce: schema.GTC}
	resp := ex.Submit(1, ord2)
	require.Equal(t, errors.CodeOrderRejected, resp.Code)
}
