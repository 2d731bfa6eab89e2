package tape

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/errors"
	"hftbacktest/internal/schema"
)

func ev(exch, local int64, both bool) schema.Event {
	f := schema.ExchEvent
	if both {
		f |= schema.LocalEvent
	}
	return schema.Event{Flags: f | schema.DepthEvent | schema.BuyEvent, ExchTs: exch, LocalTs: local}
}

func TestTapeDualCursors(t *testing.T) {
	events := []schema.Event{
		{Flags: schema.ExchEvent | schema.DepthEvent, ExchTs: 1},
		{Flags: schema.ExchEvent | schema.LocalEvent | schema.DepthEvent, ExchTs: 2, LocalTs: 3},
		{Flags: schema.LocalEvent | schema.DepthEvent, LocalTs: 4},
	}
	tp, err := New(events)
	require.NoError(t, err)

	e, ok := tp.PopExch()
	require.True(t, ok)
	require.Equal(t, int64(1), e.ExchTs)

	e, ok = tp.PopExch()
	require.True(t, ok)
	require.Equal(t, int64(2), e.ExchTs)

	require.True(t, tp.ExchExhausted())

	e, ok = tp.PopLocal()
	require.True(t, ok)
	require.Equal(t, int64(3), e.LocalTs)

	e, ok = tp.PopLocal()
	require.True(t, ok)
	require.Equal(t, int64(4), e.LocalTs)

	require.True(t, tp.LocalExhausted())
}

func TestTapeRejectsDecreasingExchTs(t *testing.T) {
	events := []schema.Event{
		{Flags: schema.ExchEvent | schema.DepthEvent, ExchTs: 5},
		{Flags: schema.ExchEvent | schema.DepthEvent, ExchTs: 4},
	}
	_, err := New(events)
	require.Error(t, err)
	require.Equal(t, errors.CodeDataInvalid, errors.CodeOf(err))
}

func TestTapeRejectsNegativeFeedLatency(t *testing.T) {
	events := []schema.Event{
		{Flags: schema.ExchEvent | schema.LocalEvent | schema.DepthEvent, ExchTs: 10, LocalTs: 5},
	}
	_, err := New(events)
	require.Error(t, err)
	require.Equal(t, errors.CodeDataInvalid, errors.CodeOf(err))
}

func TestTapeRejectsNeitherFlag(t *testing.T) {
	events := []schema.Event{{Flags: schema.DepthEvent}}
	_, err := New(events)
	require.Error(t, err)
}

func TestConcatInsertsClearBetweenFiles(t *testing.T) {
	a := []schema.Event{ev(1, 1, true)}
	b := []schema.Event{ev(5, 5, true)}
	merged := Concat([][]schema.Event{a, b}, true)
	require.Len(t, merged, 3)
	require.True(t, merged[1].Flags.Has(schema.DepthClearEvent))
}
