package backtest

import (
	"time"

	"hftbacktest/internal/depth"
	"hftbacktest/internal/errors"
	"hftbacktest/internal/exchange"
	"hftbacktest/internal/latency"
	"hftbacktest/internal/obs"
	"hftbacktest/internal/order"
	"hftbacktest/internal/schema"
	"hftbacktest/internal/state"
	"hftbacktest/internal/tape"
)

// snapshotSink is implemented by *depth.MarketDepth through
// depth.SnapshotApplier; L3 books do not support the snapshot bracket
// (their book is built from individual ADD/MODIFY/CANCEL/FILL rows
// instead, per §4.B), so AssetStack only builds one when the configured
// book is a plain MarketDepth.
type snapshotSink interface {
	BeginSnapshot(sides ...schema.Side)
	ApplyRow(side schema.Side, tick int64, qty float64)
	EndSnapshot()
}

// AssetConfig bundles one asset's stack. ExchangeBook and LocalBook are
// configured separately because they observe the same exogenous tape at
// different times: ExchangeBook mutates on EXCH_EVENT (driving the
// matching engine), LocalBook mutates on LOCAL_EVENT (what the strategy
// reads), mirroring the feed-latency gap spec §4.C models.
type AssetConfig[Q any] struct {
	SymbolID  schema.SymbolID
	AssetNo   uint16
	TickSize  float64
	LotSize   float64
	Fee       schema.FeeModel
	AssetType state.AssetType

	Tape         *tape.Tape
	ExchangeBook exchange.BookView
	LocalBook    *depth.MarketDepth
	Exchange     exchange.Simulator[Q]
	Latency      latency.Model
	Metrics      *obs.Metrics
}

// AssetStack is one asset's (tape, depth, latency, queue, exchange) stack,
// generic over the queue-position representation its configured queue
// model uses. It implements AssetRunner, erasing Q at the package
// boundary so Backtest and internal/local never need to know it.
type AssetStack[Q any] struct {
	symbolID schema.SymbolID
	assetNo  uint16
	tickSize float64
	lotSize  float64
	fee      schema.FeeModel

	tape *tape.Tape

	exchangeBook    exchange.BookView
	exchangeApplier snapshotSink
	localBook       *depth.MarketDepth
	localApplier    snapshotSink

	sim     exchange.Simulator[Q]
	latency latency.Model
	bus     *order.Bus[Q]
	state   *state.AssetState
	metrics *obs.Metrics

	orders     map[uint64]*schema.Order[Q] // local-observable view, updated on delivery
	lastTrades []schema.Event
	userData   map[uint32]schema.Event
}

// NewAssetStack constructs an asset's stack from cfg.
func NewAssetStack[Q any](cfg AssetConfig[Q]) *AssetStack[Q] {
	a := &AssetStack[Q]{
		symbolID:     cfg.SymbolID,
		assetNo:      cfg.AssetNo,
		tickSize:     cfg.TickSize,
		lotSize:      cfg.LotSize,
		fee:          cfg.Fee,
		tape:         cfg.Tape,
		exchangeBook: cfg.ExchangeBook,
		localBook:    cfg.LocalBook,
		sim:          cfg.Exchange,
		latency:      cfg.Latency,
		bus:          order.NewBus[Q](),
		state:        state.NewAssetState(cfg.SymbolID, cfg.AssetType, cfg.LotSize),
		metrics:      cfg.Metrics,
		orders:       make(map[uint64]*schema.Order[Q]),
		userData:     make(map[uint32]schema.Event),
	}
	if book, ok := cfg.ExchangeBook.(*depth.MarketDepth); ok {
		a.exchangeApplier = depth.NewSnapshotApplier(book)
	}
	if cfg.LocalBook != nil {
		a.localApplier = depth.NewSnapshotApplier(cfg.LocalBook)
	}
	return a
}

func (a *AssetStack[Q]) SymbolID() schema.SymbolID { return a.symbolID }
func (a *AssetStack[Q]) AssetNo() uint16           { return a.assetNo }

func (a *AssetStack[Q]) NextExchTs() (int64, bool) {
	ev, ok := a.tape.PeekExch()
	if !ok {
		return 0, false
	}
	return ev.ExchTs, true
}

func (a *AssetStack[Q]) NextLocalTs() (int64, bool) {
	ev, ok := a.tape.PeekLocal()
	if !ok {
		return 0, false
	}
	return ev.LocalTs, true
}

func (a *AssetStack[Q]) NextRequestTs() (int64, bool)  { return a.bus.NextRequestTs() }
func (a *AssetStack[Q]) NextResponseTs() (int64, bool) { return a.bus.NextResponseTs() }

func (a *AssetStack[Q]) EndOfData() bool {
	return a.tape.ExchExhausted() && a.tape.LocalExhausted()
}

// ApplyTapeToExchange drains every EXCH_EVENT row due at or before ts into
// the exchange simulator, scheduling a response for every fill or
// cancellation produced (spec §4.E "match... emits a response").
func (a *AssetStack[Q]) ApplyTapeToExchange(ts int64) {
	for {
		ev, ok := a.tape.PeekExch()
		if !ok || ev.ExchTs > ts {
			return
		}
		a.tape.PopExch()
		a.applyExchangeTapeRow(ev)
	}
}

func (a *AssetStack[Q]) applyExchangeTapeRow(ev schema.Event) {
	switch {
	case ev.Flags.Has(schema.SnapshotBeginEvent):
		if a.exchangeApplier != nil {
			a.exchangeApplier.BeginSnapshot(snapshotSides(ev)...)
		}
	case ev.Flags.Has(schema.SnapshotEndEvent):
		if a.exchangeApplier != nil {
			a.exchangeApplier.EndSnapshot()
		}
	case ev.Flags.Has(schema.DepthSnapshotEvent):
		if a.exchangeApplier != nil {
			tick := schema.RoundToTick(ev.Px, a.tickSize)
			a.exchangeApplier.ApplyRow(ev.Side(), tick, ev.Qty)
		}
	case ev.Flags.Has(schema.DepthClearEvent):
		for _, resp := range a.sim.ApplyClearEvent(ev) {
			a.scheduleResponse(ev.ExchTs, resp.Order, nil, resp.Code)
		}
	case ev.Flags.Has(schema.DepthEvent):
		a.scheduleFills(ev.ExchTs, a.sim.ApplyDepthEvent(ev))
	case ev.Flags.Has(schema.TradeEvent):
		a.scheduleFills(ev.ExchTs, a.sim.ApplyTradeEvent(ev))
	}
}

func snapshotSides(ev schema.Event) []schema.Side {
	var sides []schema.Side
	if ev.Flags.Has(schema.BuyEvent) {
		sides = append(sides, schema.Buy)
	}
	if ev.Flags.Has(schema.SellEvent) {
		sides = append(sides, schema.Sell)
	}
	return sides
}

// scheduleFills groups tape-driven fills by order and schedules one
// response per order, delivered at exch_ts + response_latency.
func (a *AssetStack[Q]) scheduleFills(exchTs int64, fills []exchange.Fill) {
	if len(fills) == 0 {
		return
	}
	byOrder := make(map[uint64][]exchange.Fill)
	orderIDs := make([]uint64, 0, len(fills))
	for _, f := range fills {
		if _, seen := byOrder[f.OrderID]; !seen {
			orderIDs = append(orderIDs, f.OrderID)
		}
		byOrder[f.OrderID] = append(byOrder[f.OrderID], f)
	}
	for _, id := range orderIDs {
		ord, ok := a.sim.Order(id)
		if !ok {
			continue
		}
		a.scheduleResponse(exchTs, ord, byOrder[id], errors.CodeOK)
	}
}

func (a *AssetStack[Q]) scheduleResponse(exchTs int64, ord *schema.Order[Q], fills []exchange.Fill, code errors.Code) {
	ref := latency.OrderRef{
		OrderID: ord.OrderID, Side: ord.Side, PriceTick: ord.PriceTick,
		Qty: ord.Qty, OrderType: ord.OrderType, TimeInForce: ord.TimeInForce,
	}
	respLatency := a.latency.Response(exchTs, ref)
	if respLatency < 0 {
		respLatency = 0
	}
	a.metrics.ObserveResponse(time.Duration(respLatency))
	if code != errors.CodeOK {
		a.metrics.ObserveReject(code)
	}
	a.bus.ScheduleResponse(exchTs+respLatency, ord, toOrderFills(fills), code)
}

func toOrderFills(fills []exchange.Fill) []order.Fill {
	if len(fills) == 0 {
		return nil
	}
	out := make([]order.Fill, len(fills))
	for i, f := range fills {
		out[i] = order.Fill{Side: f.Side, PriceTick: f.PriceTick, Qty: f.Qty, Maker: f.Maker}
	}
	return out
}

// ApplyStrategyToExchange drains every order request due at ts into the
// exchange simulator. Requests are pre-built schema.Order[Q] rows (entry
// latency already applied when they were scheduled by SubmitOrder/
// ModifyOrder/CancelOrder), so this only needs to replay whichever action
// ival carries.
func (a *AssetStack[Q]) ApplyStrategyToExchange(ts int64) {
	for _, ord := range a.bus.PopRequestsDue(ts) {
		var resp exchange.Response[Q]
		switch requestKind(ord.Ival) {
		case reqCancel:
			resp = a.sim.Cancel(ts, ord.OrderID)
		case reqModify:
			resp = a.sim.Modify(ts, ord.OrderID, ord.PriceTick, ord.Qty)
		default:
			resp = a.sim.Submit(ts, ord)
		}
		a.scheduleResponse(ts, resp.Order, resp.Fills, resp.Code)
	}
}

// ApplyExchangeToLocal delivers every response due at ts, folding its
// fills into state.AssetState and refreshing the local-observable order
// view (spec §4.E response delivery, §4.F "exchange->local").
func (a *AssetStack[Q]) ApplyExchangeToLocal(ts int64) []Delivered {
	due := a.bus.PopResponsesDue(ts)
	if len(due) == 0 {
		return nil
	}
	delivered := make([]Delivered, 0, len(due))
	for _, resp := range due {
		ord := resp.Order
		if ord == nil {
			continue
		}
		ord.LocalTs = ts
		a.orders[ord.OrderID] = ord
		for _, f := range resp.Fills {
			fee := a.fee.Fee(schema.TickToPrice(f.PriceTick, a.tickSize), f.Qty, f.Maker)
			a.state.ApplyFill(f.Side, schema.TickToPrice(f.PriceTick, a.tickSize), f.Qty, fee)
			a.metrics.ObserveFill(f.Maker, f.Qty)
		}
		delivered = append(delivered, Delivered{OrderID: ord.OrderID, Status: ord.Status, Code: resp.Code})
	}
	return delivered
}

// ApplyTapeToLocal drains every LOCAL_EVENT row due at or before ts into
// the local-side mirror book and the user-data stash, reporting whether
// any DEPTH_EVENT/TRADE_EVENT row was fed — what wait_next_feed waits on.
func (a *AssetStack[Q]) ApplyTapeToLocal(ts int64) bool {
	fed := false
	for {
		ev, ok := a.tape.PeekLocal()
		if !ok || ev.LocalTs > ts {
			return fed
		}
		a.tape.PopLocal()
		if a.applyLocalTapeRow(ev) {
			fed = true
		}
		if fo, ok := a.latency.(feedObserver); ok {
			if next, ok := a.tape.PeekLocal(); ok && (next.Flags.Has(schema.DepthEvent) || next.Flags.Has(schema.TradeEvent)) {
				fo.ObserveNext(next.LocalTs, next.ExchTs)
			}
		}
	}
}

// feedObserver is implemented by latency.FeedLatency to let the tape feed
// its observed local_ts-exch_ts samples; most latency.Model implementations
// don't need this and are left untouched.
type feedObserver interface {
	Observe(localTs, exchTs int64)
	ObserveNext(localTs, exchTs int64)
}

func (a *AssetStack[Q]) applyLocalTapeRow(ev schema.Event) bool {
	switch {
	case ev.Flags.Has(schema.UserEvent):
		a.userData[ev.Flags.Tag()] = ev
	case ev.Flags.Has(schema.SnapshotBeginEvent):
		if a.localApplier != nil {
			a.localApplier.BeginSnapshot(snapshotSides(ev)...)
		}
	case ev.Flags.Has(schema.SnapshotEndEvent):
		if a.localApplier != nil {
			a.localApplier.EndSnapshot()
		}
	case ev.Flags.Has(schema.DepthSnapshotEvent):
		if a.localApplier != nil {
			tick := schema.RoundToTick(ev.Px, a.tickSize)
			a.localApplier.ApplyRow(ev.Side(), tick, ev.Qty)
		}
	case ev.Flags.Has(schema.DepthClearEvent):
		for _, side := range snapshotSides(ev) {
			a.localBook.Clear(side)
		}
	case ev.Flags.Has(schema.TradeEvent):
		tick := schema.RoundToTick(ev.Px, a.tickSize)
		a.localBook.ApplyTrade(ev.Side(), tick, ev.Qty)
		a.lastTrades = append(a.lastTrades, ev)
		a.metrics.ObserveFeed(time.Duration(ev.LocalTs - ev.ExchTs))
		if fo, ok := a.latency.(feedObserver); ok {
			fo.Observe(ev.LocalTs, ev.ExchTs)
		}
		return true
	case ev.Flags.Has(schema.DepthEvent):
		tick := schema.RoundToTick(ev.Px, a.tickSize)
		a.localBook.ApplyDepth(ev.Side(), tick, ev.Qty)
		a.metrics.ObserveFeed(time.Duration(ev.LocalTs - ev.ExchTs))
		if fo, ok := a.latency.(feedObserver); ok {
			fo.Observe(ev.LocalTs, ev.ExchTs)
		}
		return true
	}
	return false
}

func (a *AssetStack[Q]) LocalDepth() *depth.MarketDepth { return a.localBook }

func (a *AssetStack[Q]) Position() float64 { return a.state.Position }

// State returns the asset's bookkeeping, for building a post-run state.Report.
func (a *AssetStack[Q]) State() *state.AssetState { return a.state }

func (a *AssetStack[Q]) StateValues(midPrice float64) schema.StateValuesRecord {
	return a.state.Values(a.assetNo, midPrice)
}

func (a *AssetStack[Q]) Orders() []OrderView {
	views := make([]OrderView, 0, len(a.orders))
	for _, ord := range a.orders {
		views = append(views, toOrderView(ord))
	}
	return views
}

func (a *AssetStack[Q]) Order(orderID uint64) (OrderView, bool) {
	ord, ok := a.orders[orderID]
	if !ok {
		return OrderView{}, false
	}
	return toOrderView(ord), true
}

func toOrderView[Q any](ord *schema.Order[Q]) OrderView {
	return OrderView{
		OrderID: ord.OrderID, Side: ord.Side, PriceTick: ord.PriceTick,
		Qty: ord.Qty, LeftoverQty: ord.LeftoverQty, TimeInForce: ord.TimeInForce,
		OrderType: ord.OrderType, Status: ord.Status, Maker: ord.Maker,
		ExchTs: ord.ExchTs, LocalTs: ord.LocalTs,
	}
}

func (a *AssetStack[Q]) LastTrades() []schema.Event { return a.lastTrades }

func (a *AssetStack[Q]) ClearLastTrades() {
	a.lastTrades = a.lastTrades[:0]
	a.state.ClearTradeCounters()
}

// ClearInactiveOrders drops every locally-observed order in a terminal
// status, per spec §4.F.
func (a *AssetStack[Q]) ClearInactiveOrders() {
	for id, ord := range a.orders {
		if ord.Status.Inactive() {
			delete(a.orders, id)
		}
	}
}

func (a *AssetStack[Q]) UserData(tag uint32) (schema.Event, bool) {
	ev, ok := a.userData[tag]
	return ev, ok
}

// Metrics returns the asset's latency/fill/rejection counters, or nil if
// none were configured.
func (a *AssetStack[Q]) Metrics() *obs.Metrics { return a.metrics }

// requestKind distinguishes submit/modify/cancel requests queued on the
// same bus, packed into the placeholder order's Ival field (submit
// requests never carry a meaningful Ival of their own, since the original
// order's ival semantics is tape-row-only per §3).
type requestKind int64

const (
	reqSubmit requestKind = 0
	reqCancel requestKind = 1
	reqModify requestKind = 2
)

// SubmitOrder schedules a new order request for exchange arrival at
// now + entry_latency (spec §4.C/§4.F).
func (a *AssetStack[Q]) SubmitOrder(now int64, orderID uint64, side schema.Side, priceTick int64, qty float64, tif schema.TimeInForce, otype schema.OrderType) errors.Code {
	ref := latency.OrderRef{OrderID: orderID, Side: side, PriceTick: priceTick, Qty: qty, OrderType: otype, TimeInForce: tif}
	entry := a.latency.Entry(now, ref)
	if entry < 0 {
		a.metrics.ObserveReject(errors.CodeOrderRejected)
		return errors.CodeOrderRejected
	}
	a.metrics.ObserveEntry(time.Duration(entry))
	ord := &schema.Order[Q]{
		OrderID: orderID, Side: side, PriceTick: priceTick, Qty: qty,
		LeftoverQty: qty, TimeInForce: tif, OrderType: otype,
		Status: schema.StatusPendingSubmit, Ival: int64(reqSubmit),
	}
	a.bus.ScheduleRequest(now+entry, ord)
	return errors.CodeOK
}

func (a *AssetStack[Q]) ModifyOrder(now int64, orderID uint64, priceTick int64, qty float64) errors.Code {
	ord, ok := a.orders[orderID]
	if !ok {
		return errors.CodeOrderRejected
	}
	ref := latency.OrderRef{OrderID: orderID, Side: ord.Side, PriceTick: priceTick, Qty: qty, OrderType: ord.OrderType, TimeInForce: ord.TimeInForce}
	entry := a.latency.Entry(now, ref)
	if entry < 0 {
		a.metrics.ObserveReject(errors.CodeOrderRejected)
		return errors.CodeOrderRejected
	}
	a.metrics.ObserveEntry(time.Duration(entry))
	req := &schema.Order[Q]{OrderID: orderID, PriceTick: priceTick, Qty: qty, Ival: int64(reqModify)}
	a.bus.ScheduleRequest(now+entry, req)
	return errors.CodeOK
}

func (a *AssetStack[Q]) CancelOrder(now int64, orderID uint64) errors.Code {
	ord, ok := a.orders[orderID]
	if !ok {
		return errors.CodeOrderRejected
	}
	ref := latency.OrderRef{OrderID: orderID, Side: ord.Side, PriceTick: ord.PriceTick, Qty: ord.Qty, OrderType: ord.OrderType, TimeInForce: ord.TimeInForce}
	entry := a.latency.Entry(now, ref)
	if entry < 0 {
		a.metrics.ObserveReject(errors.CodeOrderRejected)
		return errors.CodeOrderRejected
	}
	a.metrics.ObserveEntry(time.Duration(entry))
	req := &schema.Order[Q]{OrderID: orderID, Ival: int64(reqCancel)}
	a.bus.ScheduleRequest(now+entry, req)
	return errors.CodeOK
}
