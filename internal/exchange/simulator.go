// Package exchange drives the exchange-side market depth from tape events,
// matches the strategy's resting orders against it, and emits order
// responses (spec §4.E). The strategy's own orders are the only orders
// this package tracks individually — the book levels themselves come
// straight from the replayed, exogenous tape (spec §8 invariant 5, "no
// impact": the strategy's activity never mutates future tape events).
package exchange

import (
	"math"

	"hftbacktest/internal/depth"
	"hftbacktest/internal/errors"
	"hftbacktest/internal/queue"
	"hftbacktest/internal/schema"
)

// BookView is the exchange-side depth surface the matching engine needs:
// queue-model lookups plus the mutators tape events drive.
type BookView interface {
	queue.DepthView
	BestBidTick() int64
	BestAskTick() int64
	ApplyDepth(side schema.Side, tick int64, newQty float64)
	Clear(side schema.Side)
}

// orderAwareBook is implemented by *depth.L3Book: when the configured
// depth mode is L3, the strategy's own resting orders are inserted into
// the real per-level linked list so L3QueueModel can read an exact
// distance-to-head. L2 books never see the strategy's own orders — their
// queue position is estimated purely from the exogenous level quantity.
type orderAwareBook interface {
	AddOrder(orderID uint64, side schema.Side, tick int64, qty float64)
	ModifyOrder(orderID uint64, newTick int64, newQty float64) bool
	CancelOrder(orderID uint64) bool
	FillOrder(side schema.Side, tick int64, qty float64) []depth.FilledSlice
}

// Fill is one execution produced by the matching engine.
type Fill struct {
	OrderID   uint64
	Side      schema.Side
	PriceTick int64
	Qty       float64
	Maker     bool
}

// Response is the outcome of one order-lifecycle call: a (possibly
// rejected) order plus any fills produced synchronously.
type Response[Q any] struct {
	Order *schema.Order[Q]
	Fills []Fill
	Code  errors.Code
}

// Simulator is the exchange-side behavior spec §4.E names, parameterized
// by the queue-position representation Q the configured queue model uses.
type Simulator[Q any] interface {
	ApplyDepthEvent(ev schema.Event) []Fill
	ApplyTradeEvent(ev schema.Event) []Fill
	ApplyClearEvent(ev schema.Event) []Response[Q]
	Submit(now int64, ord *schema.Order[Q]) Response[Q]
	Cancel(now int64, orderID uint64) Response[Q]
	Modify(now int64, orderID uint64, newPriceTick int64, newQty float64) Response[Q]
	Order(orderID uint64) (*schema.Order[Q], bool)
	Book() BookView
}

const maxTakerLevels = 10_000

type engine[Q any] struct {
	book       BookView
	queueModel queue.Model[Q]
	orders     map[uint64]*schema.Order[Q]
	byLevel    map[int64][]uint64
	tickSize   float64
	lotSize    float64
	partial    bool
}

func newEngine[Q any](book BookView, qm queue.Model[Q], tickSize, lotSize float64, partial bool) engine[Q] {
	return engine[Q]{
		book:       book,
		queueModel: qm,
		orders:     make(map[uint64]*schema.Order[Q]),
		byLevel:    make(map[int64][]uint64),
		tickSize:   tickSize,
		lotSize:    lotSize,
		partial:    partial,
	}
}

func levelKey(side schema.Side, tick int64) int64 {
	if side == schema.Buy {
		return tick<<1 | 1
	}
	return tick << 1
}

func (e *engine[Q]) Book() BookView { return e.book }

func (e *engine[Q]) Order(orderID uint64) (*schema.Order[Q], bool) {
	ord, ok := e.orders[orderID]
	return ord, ok
}

// Submit admits a new order (spec §4.E "Order admission"), matching it
// immediately if marketable and resting the remainder otherwise.
func (e *engine[Q]) Submit(now int64, ord *schema.Order[Q]) Response[Q] {
	if _, exists := e.orders[ord.OrderID]; exists {
		return Response[Q]{Order: ord, Code: errors.CodeOrderRejected}
	}
	params := AdmitParams{
		Side: ord.Side, PriceTick: ord.PriceTick, Qty: ord.Qty,
		TimeInForce: ord.TimeInForce, OrderType: ord.OrderType,
		BestBidTick: e.book.BestBidTick(), BestAskTick: e.book.BestAskTick(),
		LotSize: e.lotSize, NoTick: depth.NoTick,
	}
	if d := Admit(params); !d.Allow {
		return Response[Q]{Order: ord, Code: errors.CodeOrderRejected}
	}

	ord.ExchTs = now
	ord.LeftoverQty = ord.Qty
	e.orders[ord.OrderID] = ord

	if !params.marketable() {
		if ord.TimeInForce == schema.IOC || ord.TimeInForce == schema.FOK {
			delete(e.orders, ord.OrderID)
			ord.Status = schema.StatusCanceled
			return Response[Q]{Order: ord, Code: errors.CodeOK}
		}
		e.restOrder(ord)
		ord.Status = schema.StatusOpen
		return Response[Q]{Order: ord, Code: errors.CodeOK}
	}

	if ord.TimeInForce == schema.FOK && !e.fokFillable(ord) {
		delete(e.orders, ord.OrderID)
		ord.Status = schema.StatusRejected
		return Response[Q]{Order: ord, Code: errors.CodeOrderRejected}
	}

	fills := e.takerFill(ord)
	for _, f := range fills {
		ord.LeftoverQty -= f.Qty
	}
	if ord.LeftoverQty < 0 {
		ord.LeftoverQty = 0
	}
	ord.Maker = false

	switch {
	case ord.LeftoverQty <= 0:
		ord.Status = schema.StatusFilled
	case ord.TimeInForce == schema.IOC, ord.TimeInForce == schema.FOK:
		ord.Status = schema.StatusCanceled
	default:
		e.restOrder(ord)
		ord.Status = schema.StatusPartiallyFilled
	}
	return Response[Q]{Order: ord, Fills: fills, Code: errors.CodeOK}
}

// Cancel unlinks a resting order.
func (e *engine[Q]) Cancel(now int64, orderID uint64) Response[Q] {
	ord, ok := e.orders[orderID]
	if !ok {
		return Response[Q]{Order: &schema.Order[Q]{OrderID: orderID, Status: schema.StatusRejected}, Code: errors.CodeOrderRejected}
	}
	if ord.Status.Inactive() {
		return Response[Q]{Order: ord, Code: errors.CodeOrderRejected}
	}
	e.removeFromLevel(ord)
	if oab, ok := e.book.(orderAwareBook); ok {
		oab.CancelOrder(orderID)
	}
	ord.Status = schema.StatusCanceled
	ord.ExchTs = now
	return Response[Q]{Order: ord, Code: errors.CodeOK}
}

// Modify changes a resting order's price and/or quantity, losing queue
// priority on a price change or quantity increase (spec §4.B, mirrored in
// depth.L3Book.ModifyOrder; L2 queue models re-derive position from the
// book via a fresh OnNew since they have no linked-list priority to lose).
func (e *engine[Q]) Modify(now int64, orderID uint64, newTick int64, newQty float64) Response[Q] {
	ord, ok := e.orders[orderID]
	if !ok {
		return Response[Q]{Order: &schema.Order[Q]{OrderID: orderID, Status: schema.StatusRejected}, Code: errors.CodeOrderRejected}
	}
	if ord.Status.Inactive() {
		return Response[Q]{Order: ord, Code: errors.CodeOrderRejected}
	}
	if !schema.IsLotAligned(newQty, e.lotSize) {
		return Response[Q]{Order: ord, Code: errors.CodeOrderRejected}
	}
	e.removeFromLevel(ord)
	oab, l3 := e.book.(orderAwareBook)
	if l3 {
		oab.ModifyOrder(orderID, newTick, newQty)
	}
	ord.PriceTick = newTick
	ord.Qty = newQty
	ord.LeftoverQty = newQty
	ord.ExchTs = now
	if l3 {
		// ModifyOrder has already re-linked the order in the L3 book.
		key := levelKey(ord.Side, ord.PriceTick)
		e.byLevel[key] = append(e.byLevel[key], ord.OrderID)
		e.queueModel.OnNew(ord, e.book)
	} else {
		e.restOrder(ord)
	}
	ord.Status = schema.StatusOpen
	return Response[Q]{Order: ord, Code: errors.CodeOK}
}

// ApplyDepthEvent applies a tape DEPTH_EVENT to the exchange-side book,
// notifies the queue model of the level's quantity change, and checks
// whether any of the strategy's resting orders on the opposite side are
// now crossed (spec §4.E condition 1).
func (e *engine[Q]) ApplyDepthEvent(ev schema.Event) []Fill {
	if !ev.Flags.Has(schema.DepthEvent) {
		return nil
	}
	side := ev.Side()
	tick := schema.RoundToTick(ev.Px, e.tickSize)
	prevQty := e.book.QtyAtTick(side, tick)
	e.book.ApplyDepth(side, tick, ev.Qty)

	for _, id := range e.byLevel[levelKey(side, tick)] {
		e.queueModel.OnDepthChange(e.orders[id], prevQty, ev.Qty, e.book)
	}
	return e.reactToCrossing(side.Opposite())
}

// ApplyTradeEvent applies a tape TRADE_EVENT: a trade on one side only
// ever matches resting orders on the *opposite* side (a sell trade lifts
// resting buys, a buy trade hits resting sells) — orders strictly better
// than the trade price fill fully (condition 2), then orders resting
// exactly at the trade price advance through the queue model (condition
// 3).
func (e *engine[Q]) ApplyTradeEvent(ev schema.Event) []Fill {
	if !ev.Flags.Has(schema.TradeEvent) {
		return nil
	}
	side := ev.Side()
	restingSide := side.Opposite()
	tick := schema.RoundToTick(ev.Px, e.tickSize)

	var fills []Fill
	for _, ord := range e.orders {
		if ord.Status.Inactive() || ord.Side != restingSide {
			continue
		}
		if e.strictlyBetter(ord.Side, ord.PriceTick, tick) {
			fills = append(fills, e.fillResting(ord, ord.PriceTick, ord.LeftoverQty)...)
		}
	}
	fills = append(fills, e.onTradeAtTick(restingSide, tick, ev.Qty)...)
	return fills
}

// ApplyClearEvent wipes the given side(s) of the book and cancels every
// resting order on a cleared side (spec §8 scenario 6).
func (e *engine[Q]) ApplyClearEvent(ev schema.Event) []Response[Q] {
	var responses []Response[Q]
	for _, side := range []schema.Side{schema.Buy, schema.Sell} {
		flag := schema.SellEvent
		if side == schema.Buy {
			flag = schema.BuyEvent
		}
		if !ev.Flags.Has(flag) {
			continue
		}
		e.book.Clear(side)
		for _, ord := range e.orders {
			if ord.Side != side || ord.Status.Inactive() {
				continue
			}
			e.removeFromLevel(ord)
			ord.Status = schema.StatusCanceled
			ord.ExchTs = ev.ExchTs
			responses = append(responses, Response[Q]{Order: ord, Code: errors.CodeOK})
		}
	}
	return responses
}

func (e *engine[Q]) strictlyBetter(side schema.Side, orderTick, tradeTick int64) bool {
	if side == schema.Buy {
		return orderTick > tradeTick
	}
	return orderTick < tradeTick
}

func (e *engine[Q]) crossed(ord *schema.Order[Q]) bool {
	if ord.Side == schema.Buy {
		best := e.book.BestAskTick()
		return best != depth.NoTick && ord.PriceTick >= best
	}
	best := e.book.BestBidTick()
	return best != depth.NoTick && ord.PriceTick <= best
}

func (e *engine[Q]) reactToCrossing(side schema.Side) []Fill {
	var fills []Fill
	for _, ord := range e.orders {
		if ord.Status.Inactive() || ord.Side != side {
			continue
		}
		if e.crossed(ord) {
			fills = append(fills, e.fillResting(ord, ord.PriceTick, ord.LeftoverQty)...)
		}
	}
	return fills
}

func (e *engine[Q]) onTradeAtTick(side schema.Side, tick int64, tradeQty float64) []Fill {
	key := levelKey(side, tick)
	ids := e.byLevel[key]
	var fills []Fill
	i := 0
	for i < len(ids) {
		id := ids[i]
		ord := e.orders[id]
		e.queueModel.OnTrade(ord, tradeQty, e.book)
		filledQty, _ := e.queueModel.IsFilled(ord, e.book)
		if filledQty > 0 {
			take := ord.LeftoverQty
			if e.partial && take > tradeQty {
				take = tradeQty
			}
			fills = append(fills, e.applyFill(ord, tick, take)...)
			if ord.LeftoverQty <= 0 {
				ids = append(ids[:i], ids[i+1:]...)
				continue
			}
		}
		i++
	}
	e.byLevel[key] = ids
	return fills
}

func (e *engine[Q]) fillResting(ord *schema.Order[Q], tick int64, qty float64) []Fill {
	fills := e.applyFill(ord, tick, qty)
	e.removeFromLevel(ord)
	return fills
}

func (e *engine[Q]) applyFill(ord *schema.Order[Q], tick int64, qty float64) []Fill {
	if qty > ord.LeftoverQty {
		qty = ord.LeftoverQty
	}
	ord.LeftoverQty -= qty
	ord.Maker = true
	if ord.LeftoverQty <= 1e-9 {
		ord.LeftoverQty = 0
		ord.Status = schema.StatusFilled
	} else {
		ord.Status = schema.StatusPartiallyFilled
	}
	if oab, ok := e.book.(orderAwareBook); ok {
		oab.FillOrder(ord.Side, tick, qty)
	}
	return []Fill{{OrderID: ord.OrderID, Side: ord.Side, PriceTick: tick, Qty: qty, Maker: true}}
}

// takerFill computes the fills for an order that is marketable at
// arrival, without mutating the exogenous book: NoPartialFillExchange
// fills the entire order at the best opposite price regardless of
// available quantity; PartialFillExchange walks levels outward from best,
// consuming up to each level's quantity (spec §4.E).
func (e *engine[Q]) takerFill(ord *schema.Order[Q]) []Fill {
	opposite := ord.Side.Opposite()
	best := e.bestTick(opposite)
	if best == depth.NoTick {
		return nil
	}
	if !e.partial {
		return []Fill{{OrderID: ord.OrderID, Side: ord.Side, PriceTick: best, Qty: ord.Qty, Maker: false}}
	}

	remaining := ord.Qty
	tick := best
	var fills []Fill
	for steps := 0; remaining > 0 && steps < maxTakerLevels; steps++ {
		levelQty := e.book.QtyAtTick(opposite, tick)
		if levelQty > 0 {
			take := math.Min(levelQty, remaining)
			fills = append(fills, Fill{OrderID: ord.OrderID, Side: ord.Side, PriceTick: tick, Qty: take, Maker: false})
			remaining -= take
		}
		tick = e.nextTickOutward(opposite, tick)
	}
	return fills
}

func (e *engine[Q]) fokFillable(ord *schema.Order[Q]) bool {
	if !e.partial {
		return e.bestTick(ord.Side.Opposite()) != depth.NoTick
	}
	opposite := ord.Side.Opposite()
	tick := e.bestTick(opposite)
	if tick == depth.NoTick {
		return false
	}
	remaining := ord.Qty
	for steps := 0; remaining > 0 && steps < maxTakerLevels; steps++ {
		remaining -= math.Max(0, e.book.QtyAtTick(opposite, tick))
		if remaining <= 0 {
			return true
		}
		tick = e.nextTickOutward(opposite, tick)
	}
	return false
}

func (e *engine[Q]) bestTick(side schema.Side) int64 {
	if side == schema.Buy {
		return e.book.BestBidTick()
	}
	return e.book.BestAskTick()
}

func (e *engine[Q]) nextTickOutward(side schema.Side, tick int64) int64 {
	if side == schema.Buy {
		return tick - 1
	}
	return tick + 1
}

func (e *engine[Q]) restOrder(ord *schema.Order[Q]) {
	key := levelKey(ord.Side, ord.PriceTick)
	e.byLevel[key] = append(e.byLevel[key], ord.OrderID)
	if oab, ok := e.book.(orderAwareBook); ok {
		oab.AddOrder(ord.OrderID, ord.Side, ord.PriceTick, ord.LeftoverQty)
	}
	e.queueModel.OnNew(ord, e.book)
}

func (e *engine[Q]) removeFromLevel(ord *schema.Order[Q]) {
	key := levelKey(ord.Side, ord.PriceTick)
	ids := e.byLevel[key]
	for i, id := range ids {
		if id == ord.OrderID {
			e.byLevel[key] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// NoPartialFillExchange fills resting orders fully at once and takers
// fully at the best opposite price, regardless of available quantity.
type NoPartialFillExchange[Q any] struct{ engine[Q] }

// NewNoPartialFillExchange constructs a NoPartialFillExchange over book.
func NewNoPartialFillExchange[Q any](book BookView, qm queue.Model[Q], tickSize, lotSize float64) *NoPartialFillExchange[Q] {
	return &NoPartialFillExchange[Q]{engine: newEngine(book, qm, tickSize, lotSize, false)}
}

// PartialFillExchange fills up to the available quantity per level,
// leaving remainders resting with their queue position preserved.
type PartialFillExchange[Q any] struct{ engine[Q] }

// NewPartialFillExchange constructs a PartialFillExchange over book.
func NewPartialFillExchange[Q any](book BookView, qm queue.Model[Q], tickSize, lotSize float64) *PartialFillExchange[Q] {
	return &PartialFillExchange[Q]{engine: newEngine(book, qm, tickSize, lotSize, true)}
}
