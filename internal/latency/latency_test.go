package latency

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstantLatency(t *testing.T) {
	m := NewConstantLatency(1_000_000, 2_000_000)
	require.Equal(t, int64(1_000_000), m.Entry(0, OrderRef{}))
	require.Equal(t, int64(2_000_000), m.Response(0, OrderRef{}))
}

func TestFeedLatencyPlainAverages(t *testing.T) {
	f := &FeedLatency{Variant: FeedPlain, EntryMul: 1, ResponseMul: 1}
	f.Observe(110, 100) // lat1 = 10
	f.ObserveNext(130, 100) // lat2 = 30
	require.Equal(t, int64(20), f.Entry(0, OrderRef{}))
}

func TestFeedLatencyBackwardOnly(t *testing.T) {
	f := &FeedLatency{Variant: FeedBackward, EntryMul: 1, ResponseMul: 1}
	f.Observe(110, 100)
	require.Equal(t, int64(10), f.Entry(0, OrderRef{}))
}

func TestFeedLatencyNoSampleIsDropped(t *testing.T) {
	f := &FeedLatency{Variant: FeedBackward}
	require.Equal(t, int64(-1), f.Entry(0, OrderRef{}))
}

func TestIntpOrderLatencyInterpolates(t *testing.T) {
	rows := []LatencyRow{
		{ReqTs: 0, ExchTs: 10, RespTs: 30},
		{ReqTs: 100, ExchTs: 120, RespTs: 150},
	}
	m, err := NewIntpOrderLatency(rows)
	require.NoError(t, err)

	entry := m.Entry(50, OrderRef{})
	require.Equal(t, int64(15), entry) // exch lat interpolates 10 -> 20 at midpoint

	resp := m.Response(65, OrderRef{})
	require.Equal(t, int64(25), resp) // resp lat interpolates 20 -> 30 at the 65 mark
}

func TestIntpOrderLatencyRejectsNonMonotone(t *testing.T) {
	_, err := NewIntpOrderLatency([]LatencyRow{{ReqTs: 10}, {ReqTs: 5}})
	require.Error(t, err)
}
