package depth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/schema"
)

func TestApplyDepthTracksBest(t *testing.T) {
	d := New(0.1, 0.001, -1000, 1000)
	d.ApplyDepth(schema.Buy, 1000, 1.0) // 100.0
	d.ApplyDepth(schema.Buy, 999, 2.0)  // 99.9
	require.Equal(t, int64(1000), d.BestBidTick())

	d.ApplyDepth(schema.Buy, 1000, 0) // remove the best level
	require.Equal(t, int64(999), d.BestBidTick())
}

func TestApplyDepthOutsideROIUsesMap(t *testing.T) {
	d := New(1.0, 1.0, 0, 10)
	d.ApplyDepth(schema.Sell, 50, 3.0)
	require.Equal(t, 3.0, d.QtyAtTick(schema.Sell, 50))
	require.Equal(t, int64(50), d.BestAskTick())
}

func TestClearWipesOneSide(t *testing.T) {
	d := New(1.0, 1.0, 0, 10)
	d.ApplyDepth(schema.Buy, 5, 1.0)
	d.ApplyDepth(schema.Sell, 6, 1.0)
	d.Clear(schema.Buy)
	require.Equal(t, int64(NoTick), d.BestBidTick())
	require.Equal(t, int64(6), d.BestAskTick())
}

func TestSnapshotApplierAtomicFraming(t *testing.T) {
	d := New(0.1, 0.001, -1000, 1000)
	d.ApplyDepth(schema.Buy, 995, 1.0)

	s := NewSnapshotApplier(d)
	s.BeginSnapshot(schema.Buy)
	require.Equal(t, int64(NoTick), d.BestBidTick())
	s.ApplyRow(schema.Buy, 990, 2.0)
	s.EndSnapshot()
	require.Equal(t, int64(990), d.BestBidTick())
}

func TestL3AddModifyCancelFill(t *testing.T) {
	b := NewL3(1.0, 1.0, 0, 0)
	b.AddOrder(1, schema.Sell, 100, 2.0)
	b.AddOrder(2, schema.Sell, 100, 3.0)

	pos, ok := b.QueuePosition(2)
	require.True(t, ok)
	require.Equal(t, 2.0, pos) // order 1's qty is ahead

	fills := b.FillOrder(schema.Sell, 100, 2.5)
	require.Equal(t, []FilledSlice{{OrderID: 1, Qty: 2.0}, {OrderID: 2, Qty: 0.5}}, fills)
	require.Equal(t, 2.5, b.QtyAtTick(schema.Sell, 100))

	require.True(t, b.CancelOrder(2))
	require.Equal(t, 0.0, b.QtyAtTick(schema.Sell, 100))
}

func TestL3ModifyPreservesPositionOnQtyDecrease(t *testing.T) {
	b := NewL3(1.0, 1.0, 0, 0)
	b.AddOrder(1, schema.Buy, 10, 5.0)
	b.AddOrder(2, schema.Buy, 10, 5.0)

	require.True(t, b.ModifyOrder(2, 10, 2.0))
	pos, ok := b.QueuePosition(2)
	require.True(t, ok)
	require.Equal(t, 5.0, pos) // still behind order 1, position preserved
}

func TestL3ModifyPriceChangeLosesPriority(t *testing.T) {
	b := NewL3(1.0, 1.0, 0, 0)
	b.AddOrder(1, schema.Buy, 10, 5.0)
	b.AddOrder(2, schema.Buy, 10, 5.0)

	require.True(t, b.ModifyOrder(1, 11, 5.0))
	pos, ok := b.QueuePosition(1)
	require.True(t, ok)
	require.Equal(t, 0.0, pos) // alone at the new level
}
