package exchange

import "hftbacktest/internal/schema"

// AdmissionReason names why Admit rejected an order, adapted from the
// teacher's risk.Engine deny-reason enum — repurposed here from portfolio
// risk limits to order-validity checks (TIF/tick/lot), per spec §4.E
// "Order admission" and §7's ORDER_REJECTED kind.
type AdmissionReason uint8

const (
	AdmitOK AdmissionReason = iota
	AdmitLotMisaligned
	AdmitGTXMarketable
	AdmitFOKUnfillable
	AdmitDuplicateID
	AdmitUnknownID
)

func (r AdmissionReason) String() string {
	switch r {
	case AdmitOK:
		return "ok"
	case AdmitLotMisaligned:
		return "lot size misaligned"
	case AdmitGTXMarketable:
		return "GTX order would cross the book"
	case AdmitFOKUnfillable:
		return "FOK order not fully fillable at arrival"
	case AdmitDuplicateID:
		return "duplicate order id"
	case AdmitUnknownID:
		return "unknown order id"
	default:
		return "unknown"
	}
}

// Decision is Admit's verdict.
type Decision struct {
	Allow  bool
	Reason AdmissionReason
}

func allow() Decision { return Decision{Allow: true, Reason: AdmitOK} }

func deny(reason AdmissionReason) Decision { return Decision{Allow: false, Reason: reason} }

// AdmitParams is the subset of order and book state Admit needs.
type AdmitParams struct {
	Side        schema.Side
	PriceTick   int64
	Qty         float64
	TimeInForce schema.TimeInForce
	OrderType   schema.OrderType
	BestBidTick int64
	BestAskTick int64
	LotSize     float64
	NoTick      int64
}

// marketable reports whether an order would immediately cross the book.
func (p AdmitParams) marketable() bool {
	if p.OrderType == schema.Market {
		return true
	}
	if p.Side == schema.Buy {
		return p.BestAskTick != p.NoTick && p.PriceTick >= p.BestAskTick
	}
	return p.BestBidTick != p.NoTick && p.PriceTick <= p.BestBidTick
}

// Admit checks TIF and lot-size validity on order arrival (spec §4.E). FOK
// fillability is checked separately by the simulator, which alone has
// access to the full available quantity across levels.
func Admit(p AdmitParams) Decision {
	if !schema.IsLotAligned(p.Qty, p.LotSize) {
		return deny(AdmitLotMisaligned)
	}
	if p.TimeInForce == schema.GTX && p.marketable() {
		return deny(AdmitGTXMarketable)
	}
	return allow()
}
