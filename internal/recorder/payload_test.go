package recorder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/schema"
)

func TestEncodeDecodeStateValues(t *testing.T) {
	rec := schema.StateValuesRecord{
		AssetNo: 3, Position: 1.5, Balance: -20.25, Fee: 0.01,
		TradeNum: 4, TradeQty: 6.0, TradeAmount: 600.0, MidPrice: 100.05,
	}
	got, ok := DecodeStateValues(EncodeStateValues(rec))
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestEncodeDecodeFill(t *testing.T) {
	rec := schema.FillRecord{
		AssetNo: 1, OrderID: 42, Side: schema.Sell,
		PriceTick: 1001, Qty: 0.3, Fee: 0.002, Maker: true,
	}
	got, ok := DecodeFill(EncodeFill(rec))
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestEncodeDecodeOrderAck(t *testing.T) {
	rec := schema.OrderAckRecord{
		AssetNo: 2, OrderID: 7, Status: schema.StatusPartiallyFilled, LeavesQty: 0.7,
	}
	got, ok := DecodeOrderAck(EncodeOrderAck(rec))
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	_, ok := DecodeStateValues(make([]byte, 3))
	require.False(t, ok)
	_, ok = DecodeFill(make([]byte, 3))
	require.False(t, ok)
	_, ok = DecodeOrderAck(make([]byte, 3))
	require.False(t, ok)
}

func TestRecordHeaderRoundTrip(t *testing.T) {
	header := schema.NewHeader(schema.RecordStateValues, 5, 9, 1000, 1200)
	buf := make([]byte, recordHeaderSize)
	encodeHeader(buf, header, 58)

	got, payloadLen, err := decodeRecordHeader(buf)
	require.NoError(t, err)
	require.Equal(t, uint32(58), payloadLen)
	require.Equal(t, header.Type, got.Type)
	require.Equal(t, header.AssetNo, got.AssetNo)
	require.Equal(t, header.Seq, got.Seq)
	require.Equal(t, header.TsEvent, got.TsEvent)
	require.Equal(t, header.TsRecv, got.TsRecv)
}
