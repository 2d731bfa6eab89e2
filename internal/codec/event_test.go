package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/errors"
	"hftbacktest/internal/schema"
)

func TestEventRoundTrip(t *testing.T) {
	ev := schema.Event{
		Flags:   schema.DepthEvent | schema.ExchEvent | schema.BuyEvent,
		ExchTs:  1_000,
		LocalTs: 1_500,
		Px:      100.25,
		Qty:     1.5,
		OrderID: 42,
		Ival:    -7,
		Fval:    3.125,
	}
	buf := EncodeEvent(nil, ev)
	require.Len(t, buf, EventPayloadSize)

	got, ok := DecodeEvent(buf)
	require.True(t, ok)
	require.Equal(t, ev, got)
}

func TestContainerRoundTrip(t *testing.T) {
	events := []schema.Event{
		{Flags: schema.DepthEvent | schema.ExchEvent, ExchTs: 1, LocalTs: 2, Px: 100, Qty: 1},
		{Flags: schema.TradeEvent | schema.ExchEvent | schema.LocalEvent, ExchTs: 3, LocalTs: 4, Px: 101, Qty: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteContainer(&buf, events))

	got, err := ReadContainer(&buf)
	require.NoError(t, err)
	require.Equal(t, events, got)
}

func TestReadContainerBadMagic(t *testing.T) {
	buf := bytes.NewReader(make([]byte, ContainerHeaderSize))
	_, err := ReadContainer(buf)
	require.Error(t, err)
	require.Equal(t, errors.CodeDataInvalid, errors.CodeOf(err))
}
