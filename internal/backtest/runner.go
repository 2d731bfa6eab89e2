// Package backtest wires one (tape, depth, latency, queue, exchange) stack
// per asset behind a queue-position-type-erased AssetRunner, and drives
// them all from a single shared virtual clock via the event-arbitration
// loop of spec §4.F, grounded on the Rust original's EventSet
// (original_source/rust/src/backtest/evs.rs). Per spec §5 there is no
// locking: Backtest.Advance is called from exactly one goroutine.
package backtest

import (
	"hftbacktest/internal/depth"
	"hftbacktest/internal/errors"
	"hftbacktest/internal/schema"
	"hftbacktest/internal/state"
)

// OrderView is the queue-position-type-erased read projection of a
// schema.Order[Q], used at the package boundary so callers never need to
// know which queue model (and therefore which Q) an asset is configured
// with — the generic Order[Q] stays internal to AssetStack[Q].
type OrderView struct {
	OrderID     uint64
	Side        schema.Side
	PriceTick   int64
	Qty         float64
	LeftoverQty float64
	TimeInForce schema.TimeInForce
	OrderType   schema.OrderType
	Status      schema.Status
	Maker       bool
	ExchTs      int64
	LocalTs     int64
}

// AssetRunner is the type-erased per-asset stack the event-arbitration
// loop and the local runtime drive. AssetStack[Q] implements it for
// whichever queue-position representation Q its queue model uses.
type AssetRunner interface {
	SymbolID() schema.SymbolID
	AssetNo() uint16

	// Peeks used by the arbitration loop to find the next timestamp.
	NextExchTs() (int64, bool)
	NextLocalTs() (int64, bool)
	NextRequestTs() (int64, bool)
	NextResponseTs() (int64, bool)
	EndOfData() bool

	// Effects applied in §4.F order at a chosen timestamp.
	ApplyTapeToExchange(ts int64)
	ApplyStrategyToExchange(ts int64)
	ApplyExchangeToLocal(ts int64) []Delivered
	ApplyTapeToLocal(ts int64) bool

	// Strategy API surface (spec §4.F), consumed by internal/local.Runtime.
	LocalDepth() *depth.MarketDepth
	Position() float64
	StateValues(midPrice float64) schema.StateValuesRecord
	Orders() []OrderView
	Order(orderID uint64) (OrderView, bool)
	LastTrades() []schema.Event
	ClearLastTrades()
	ClearInactiveOrders()
	UserData(tag uint32) (schema.Event, bool)
	State() *state.AssetState

	SubmitOrder(now int64, orderID uint64, side schema.Side, priceTick int64, qty float64, tif schema.TimeInForce, otype schema.OrderType) errors.Code
	ModifyOrder(now int64, orderID uint64, priceTick int64, qty float64) errors.Code
	CancelOrder(now int64, orderID uint64) errors.Code
}

// Delivered is one order response the local side observed at delivery
// time, after ApplyExchangeToLocal has already folded its fills into the
// asset's state.AssetState.
type Delivered struct {
	OrderID uint64
	Status  schema.Status
	Code    errors.Code
}
