// Package queue implements the queue-position model variants of §4.D:
// tracking and evolving the FIFO queue position of each resting limit
// order as the book and trades evolve.
package queue

import (
	"math"

	"hftbacktest/internal/schema"
)

// DepthView is the subset of market depth a queue model needs: the resting
// quantity at a price level and the asset's lot size (for the is-filled
// rounding tolerance).
type DepthView interface {
	QtyAtTick(side schema.Side, tick int64) float64
	LotSize() float64
}

// Model tracks and evolves the FIFO queue position of a resting order of
// opaque position representation Q — float64 for RiskAverseQueueModel,
// QueuePos for ProbQueueModel, float64 quantity ahead for L3QueueModel.
type Model[Q any] interface {
	// OnNew assigns an initial queue position when an order is admitted.
	OnNew(order *schema.Order[Q], depth DepthView)
	// OnTrade advances the position when the book trades at the order's price.
	OnTrade(order *schema.Order[Q], tradeQty float64, depth DepthView)
	// OnDepthChange updates the position when the level's aggregated
	// quantity changes by cancellation or replacement.
	OnDepthChange(order *schema.Order[Q], prevQty, newQty float64, depth DepthView)
	// IsFilled reports the filled and still-open quantity given the
	// order's current position and leftover quantity.
	IsFilled(order *schema.Order[Q], depth DepthView) (filledQty, stillOpenQty float64)
}

func qtyAtOrderPrice(order *schema.Order[float64], depth DepthView) float64 {
	return depth.QtyAtTick(order.Side, order.PriceTick)
}

// RiskAverseQueueModel assumes the order never advances ahead of
// cancellations: position only advances on trades at the order's price
// (apart from being capped at the level's quantity when the level shrinks
// below it), and the order is filled once its estimated position reaches
// zero or below.
type RiskAverseQueueModel struct{}

func (RiskAverseQueueModel) OnNew(order *schema.Order[float64], depth DepthView) {
	order.QueuePos = qtyAtOrderPrice(order, depth)
}

func (RiskAverseQueueModel) OnTrade(order *schema.Order[float64], tradeQty float64, _ DepthView) {
	order.QueuePos -= tradeQty
}

func (RiskAverseQueueModel) OnDepthChange(order *schema.Order[float64], _, newQty float64, _ DepthView) {
	order.QueuePos = math.Min(order.QueuePos, newQty)
}

func (RiskAverseQueueModel) IsFilled(order *schema.Order[float64], depth DepthView) (float64, float64) {
	lot := depth.LotSize()
	pos := order.QueuePos
	if lot > 0 {
		pos = math.Round(pos/lot) * lot
	}
	if pos <= 0 {
		return order.LeftoverQty, 0
	}
	return 0, order.LeftoverQty
}

// QueuePos is ProbQueueModel's opaque position: the estimated quantity in
// front of the order (front) plus a running total of trade quantity
// observed at the order's price since the last depth-change update
// (cumTradeQty), needed to avoid double-counting trade-driven decreases
// when the subsequent depth-change event arrives.
type QueuePos struct {
	Front       float64
	CumTradeQty float64
}

// Probability computes the probability that a quantity decrease at a price
// level comes from behind the order, given the estimated front and
// back quantities. Implementations must satisfy f(0)=0, f(1)=1, monotone.
type Probability interface {
	Prob(front, back float64) float64
}

// ProbQueueModel estimates queue position probabilistically on depth
// decreases, per https://quant.stackexchange.com/questions/3782 and the
// original ProbQueueModel.
type ProbQueueModel struct {
	Prob Probability
}

func (m ProbQueueModel) OnNew(order *schema.Order[QueuePos], depth DepthView) {
	order.QueuePos.Front = depth.QtyAtTick(order.Side, order.PriceTick)
	order.QueuePos.CumTradeQty = 0
}

func (m ProbQueueModel) OnTrade(order *schema.Order[QueuePos], tradeQty float64, _ DepthView) {
	order.QueuePos.Front -= tradeQty
	order.QueuePos.CumTradeQty += tradeQty
}

func (m ProbQueueModel) OnDepthChange(order *schema.Order[QueuePos], prevQty, newQty float64, _ DepthView) {
	chg := prevQty - newQty - order.QueuePos.CumTradeQty
	order.QueuePos.CumTradeQty = 0

	if chg < 0 {
		order.QueuePos.Front = math.Min(order.QueuePos.Front, newQty)
		return
	}

	front := order.QueuePos.Front
	back := prevQty - front

	prob := m.Prob.Prob(front, back)
	if math.IsInf(prob, 0) {
		prob = 1
	}

	estFront := front - (1-prob)*chg + math.Min(back-prob*chg, 0)
	order.QueuePos.Front = math.Min(estFront, newQty)
}

func (m ProbQueueModel) IsFilled(order *schema.Order[QueuePos], depth DepthView) (float64, float64) {
	lot := depth.LotSize()
	pos := order.QueuePos.Front
	if lot > 0 {
		pos = math.Round(pos/lot) * lot
	}
	if pos <= 0 {
		return order.LeftoverQty, 0
	}
	return 0, order.LeftoverQty
}

// L3DepthView is the per-order distance-to-head lookup an L3 book exposes.
type L3DepthView interface {
	DepthView
	QueuePosition(orderID uint64) (float64, bool)
}

// L3QueueModel reports the exact queue position: the resting quantity of
// orders ahead of this one at its level, tracked by the depth's intrusive
// per-level linked list (§4.B, §4.D). The L3 book itself keeps the FIFO up
// to date as orders are added, matched, and canceled, so OnTrade is a no-op;
// OnNew and OnDepthChange copy the book's current distance into QueuePos, and
// IsFilled reads it from the book directly.
type L3QueueModel struct{}

func (L3QueueModel) OnNew(order *schema.Order[float64], depth DepthView) {
	l3, ok := depth.(L3DepthView)
	if !ok {
		return
	}
	if pos, ok := l3.QueuePosition(order.OrderID); ok {
		order.QueuePos = pos
	}
}

func (L3QueueModel) OnTrade(_ *schema.Order[float64], _ float64, _ DepthView) {}

func (L3QueueModel) OnDepthChange(order *schema.Order[float64], _, _ float64, depth DepthView) {
	l3, ok := depth.(L3DepthView)
	if !ok {
		return
	}
	if pos, ok := l3.QueuePosition(order.OrderID); ok {
		order.QueuePos = pos
	}
}

func (L3QueueModel) IsFilled(order *schema.Order[float64], depth DepthView) (float64, float64) {
	l3, ok := depth.(L3DepthView)
	if !ok {
		return 0, order.LeftoverQty
	}
	pos, ok := l3.QueuePosition(order.OrderID)
	if !ok || pos > 0 {
		return 0, order.LeftoverQty
	}
	return order.LeftoverQty, 0
}
