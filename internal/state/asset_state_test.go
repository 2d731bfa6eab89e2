package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/schema"
)

func TestLinearAssetAmount(t *testing.T) {
	a := LinearAsset{ContractSize: 1}
	require.Equal(t, 1001.0, a.Amount(100.1, 10))
}

func TestInverseAssetAmount(t *testing.T) {
	a := InverseAsset{ContractSize: 1}
	require.InDelta(t, 0.1, a.Amount(100, 10), 1e-9)
}

func TestApplyFillConservation(t *testing.T) {
	s := NewAssetState(1, LinearAsset{ContractSize: 1}, 0.001)
	s.ApplyFill(schema.Buy, 100.1, 0.5, 0.05005)

	require.Equal(t, 0.5, s.Position)
	require.InDelta(t, -50.10005, s.Balance, 1e-9) // -100.1*0.5 - fee
	require.Equal(t, 0.05005, s.Fee)
	require.Equal(t, int64(1), s.TradeNum)
}

func TestApplyFillSellReducesPosition(t *testing.T) {
	s := NewAssetState(1, LinearAsset{ContractSize: 1}, 0.001)
	s.ApplyFill(schema.Buy, 100, 1.0, 0)
	s.ApplyFill(schema.Sell, 101, 1.0, 0)

	require.InDelta(t, 0.0, s.Position, 1e-9)
	require.InDelta(t, 1.0, s.Balance, 1e-9) // bought at 100, sold at 101
}

func TestClearTradeCountersPreservesPosition(t *testing.T) {
	s := NewAssetState(1, LinearAsset{ContractSize: 1}, 0.001)
	s.ApplyFill(schema.Buy, 100, 1.0, 0.1)
	s.ClearTradeCounters()

	require.Equal(t, int64(0), s.TradeNum)
	require.Equal(t, 1.0, s.Position)
	require.Equal(t, 0.1, s.Fee)
}
