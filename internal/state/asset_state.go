// Package state tracks the per-asset position/balance/fee bookkeeping of
// spec §3 ("State per asset") and the PnL/fee-model arithmetic of the asset
// types in §6 ("Fees and asset types"), grounded on
// original_source/rust/src/backtest/assettype.rs and adapted from the
// teacher's PositionReducer reducer shape.
package state

import "hftbacktest/internal/schema"

// AssetType computes a fill's notional amount and an asset's mark-to-market
// equity, varying by contract denomination (linear: quote-denominated;
// inverse: base-denominated).
type AssetType interface {
	Amount(execPrice, qty float64) float64
	Equity(price, balance, position, fee float64) float64
}

// LinearAsset is the common case: notional = contractSize * price * qty.
type LinearAsset struct {
	ContractSize float64
}

func (a LinearAsset) Amount(execPrice, qty float64) float64 {
	return a.ContractSize * execPrice * qty
}

func (a LinearAsset) Equity(price, balance, position, fee float64) float64 {
	return balance + a.ContractSize*position*price - fee
}

// InverseAsset denominates notional in the quote currency divided by price,
// e.g. BTC-margined perpetuals quoted in USD.
type InverseAsset struct {
	ContractSize float64
}

func (a InverseAsset) Amount(execPrice, qty float64) float64 {
	return a.ContractSize * qty / execPrice
}

func (a InverseAsset) Equity(price, balance, position, fee float64) float64 {
	return -balance - a.ContractSize*position/price - fee
}

// AssetState is the per-asset bookkeeping of spec §3: position, balance,
// cumulative fee, and trade counters. Conservation invariant (§8.3):
// balance_final - balance_initial + position_final*mid - fee_total equals
// the sum of each fill's signed PnL contribution.
type AssetState struct {
	SymbolID schema.SymbolID
	AssetType AssetType
	LotSize  float64

	Position    float64
	Balance     float64
	Fee         float64
	TradeNum    int64
	TradeQty    float64
	TradeAmount float64
}

// NewAssetState constructs a zeroed state for symbolID under assetType.
func NewAssetState(symbolID schema.SymbolID, assetType AssetType, lotSize float64) *AssetState {
	return &AssetState{SymbolID: symbolID, AssetType: assetType, LotSize: lotSize}
}

// ApplyFill updates position/balance/fee/trade counters for one fill. side
// is the filled order's side; fee is the signed fee amount (positive cost,
// negative rebate) already computed by schema.FeeModel.Fee.
func (s *AssetState) ApplyFill(side schema.Side, price, qty, fee float64) {
	signedQty := qty
	if side == schema.Sell {
		signedQty = -qty
	}
	amount := s.AssetType.Amount(price, qty)
	if side == schema.Sell {
		amount = -amount
	}

	s.Position += signedQty
	s.Balance -= amount
	s.Balance -= fee
	s.Fee += fee
	s.TradeNum++
	s.TradeQty += qty
	s.TradeAmount += amount

	s.Position = schema.SnapToLot(s.Position, s.LotSize)
}

// Equity returns the current mark-to-market equity at the given mid price.
func (s *AssetState) Equity(midPrice float64) float64 {
	return s.AssetType.Equity(midPrice, s.Balance, s.Position, s.Fee)
}

// Values snapshots the current bookkeeping into the wire-level record the
// stats recorder consumes on every elapse (spec §6).
func (s *AssetState) Values(assetNo uint16, midPrice float64) schema.StateValuesRecord {
	return schema.StateValuesRecord{
		AssetNo:     assetNo,
		Position:    s.Position,
		Balance:     s.Balance,
		Fee:         s.Fee,
		TradeNum:    s.TradeNum,
		TradeQty:    s.TradeQty,
		TradeAmount: s.TradeAmount,
		MidPrice:    midPrice,
	}
}

// ClearTradeCounters resets the trade counters without touching
// position/balance/fee, used alongside clear_last_trades (spec §4.F).
func (s *AssetState) ClearTradeCounters() {
	s.TradeNum = 0
	s.TradeQty = 0
	s.TradeAmount = 0
}
