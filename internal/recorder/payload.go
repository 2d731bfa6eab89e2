package recorder

import (
	"encoding/binary"
	"math"

	"hftbacktest/internal/schema"
)

func float64bits(f float64) uint64     { return math.Float64bits(f) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// stateValuesPayloadSize is the on-wire size in bytes of a StateValuesRecord.
const stateValuesPayloadSize = 2 + 8*7

// EncodeStateValues serializes a state-values sample for RecordStateValues.
func EncodeStateValues(rec schema.StateValuesRecord) []byte {
	dst := make([]byte, stateValuesPayloadSize)
	binary.LittleEndian.PutUint16(dst[0:2], rec.AssetNo)
	binary.LittleEndian.PutUint64(dst[2:10], float64bits(rec.Position))
	binary.LittleEndian.PutUint64(dst[10:18], float64bits(rec.Balance))
	binary.LittleEndian.PutUint64(dst[18:26], float64bits(rec.Fee))
	binary.LittleEndian.PutUint64(dst[26:34], uint64(rec.TradeNum))
	binary.LittleEndian.PutUint64(dst[34:42], float64bits(rec.TradeQty))
	binary.LittleEndian.PutUint64(dst[42:50], float64bits(rec.TradeAmount))
	binary.LittleEndian.PutUint64(dst[50:58], float64bits(rec.MidPrice))
	return dst
}

// DecodeStateValues parses a RecordStateValues payload.
func DecodeStateValues(src []byte) (schema.StateValuesRecord, bool) {
	if len(src) < stateValuesPayloadSize {
		return schema.StateValuesRecord{}, false
	}
	return schema.StateValuesRecord{
		AssetNo:     binary.LittleEndian.Uint16(src[0:2]),
		Position:    float64frombits(binary.LittleEndian.Uint64(src[2:10])),
		Balance:     float64frombits(binary.LittleEndian.Uint64(src[10:18])),
		Fee:         float64frombits(binary.LittleEndian.Uint64(src[18:26])),
		TradeNum:    int64(binary.LittleEndian.Uint64(src[26:34])),
		TradeQty:    float64frombits(binary.LittleEndian.Uint64(src[34:42])),
		TradeAmount: float64frombits(binary.LittleEndian.Uint64(src[42:50])),
		MidPrice:    float64frombits(binary.LittleEndian.Uint64(src[50:58])),
	}, true
}

// fillPayloadSize is the on-wire size in bytes of a FillRecord.
const fillPayloadSize = 2 + 8 + 1 + 8 + 8 + 8 + 1

// EncodeFill serializes a fill for RecordFill.
func EncodeFill(rec schema.FillRecord) []byte {
	dst := make([]byte, fillPayloadSize)
	binary.LittleEndian.PutUint16(dst[0:2], rec.AssetNo)
	binary.LittleEndian.PutUint64(dst[2:10], rec.OrderID)
	dst[10] = byte(rec.Side)
	binary.LittleEndian.PutUint64(dst[11:19], uint64(rec.PriceTick))
	binary.LittleEndian.PutUint64(dst[19:27], float64bits(rec.Qty))
	binary.LittleEndian.PutUint64(dst[27:35], float64bits(rec.Fee))
	if rec.Maker {
		dst[35] = 1
	}
	return dst
}

// DecodeFill parses a RecordFill payload.
func DecodeFill(src []byte) (schema.FillRecord, bool) {
	if len(src) < fillPayloadSize {
		return schema.FillRecord{}, false
	}
	return schema.FillRecord{
		AssetNo:   binary.LittleEndian.Uint16(src[0:2]),
		OrderID:   binary.LittleEndian.Uint64(src[2:10]),
		Side:      schema.Side(src[10]),
		PriceTick: int64(binary.LittleEndian.Uint64(src[11:19])),
		Qty:       float64frombits(binary.LittleEndian.Uint64(src[19:27])),
		Fee:       float64frombits(binary.LittleEndian.Uint64(src[27:35])),
		Maker:     src[35] != 0,
	}, true
}

// orderAckPayloadSize is the on-wire size in bytes of an OrderAckRecord.
const orderAckPayloadSize = 2 + 8 + 1 + 8

// EncodeOrderAck serializes an order acknowledgment for RecordOrderAck.
func EncodeOrderAck(rec schema.OrderAckRecord) []byte {
	dst := make([]byte, orderAckPayloadSize)
	binary.LittleEndian.PutUint16(dst[0:2], rec.AssetNo)
	binary.LittleEndian.PutUint64(dst[2:10], rec.OrderID)
	dst[10] = byte(rec.Status)
	binary.LittleEndian.PutUint64(dst[11:19], float64bits(rec.LeavesQty))
	return dst
}

// DecodeOrderAck parses a RecordOrderAck payload.
func DecodeOrderAck(src []byte) (schema.OrderAckRecord, bool) {
	if len(src) < orderAckPayloadSize {
		return schema.OrderAckRecord{}, false
	}
	return schema.OrderAckRecord{
		AssetNo:   binary.LittleEndian.Uint16(src[0:2]),
		OrderID:   binary.LittleEndian.Uint64(src[2:10]),
		Status:    schema.Status(src[10]),
		LeavesQty: float64frombits(binary.LittleEndian.Uint64(src[11:19])),
	}, true
}
