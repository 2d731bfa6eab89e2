package codec

import (
	"encoding/binary"

	"hftbacktest/internal/schema"
)

// EventPayloadSize is the on-wire size in bytes of one schema.Event row.
const EventPayloadSize = 64

// EncodeEvent serializes an event into a fixed-size payload.
func EncodeEvent(dst []byte, ev schema.Event) []byte {
	if cap(dst) < EventPayloadSize {
		dst = make([]byte, EventPayloadSize)
	} else {
		dst = dst[:EventPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], uint64(ev.Flags))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(ev.ExchTs))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(ev.LocalTs))
	binary.LittleEndian.PutUint64(dst[24:32], float64bits(ev.Px))
	binary.LittleEndian.PutUint64(dst[32:40], float64bits(ev.Qty))
	binary.LittleEndian.PutUint64(dst[40:48], ev.OrderID)
	binary.LittleEndian.PutUint64(dst[48:56], uint64(ev.Ival))
	binary.LittleEndian.PutUint64(dst[56:64], float64bits(ev.Fval))

	return dst
}

// DecodeEvent parses a fixed-size event payload.
func DecodeEvent(src []byte) (schema.Event, bool) {
	if len(src) < EventPayloadSize {
		return schema.Event{}, false
	}
	return schema.Event{
		Flags:   schema.EventFlags(binary.LittleEndian.Uint64(src[0:8])),
		ExchTs:  int64(binary.LittleEndian.Uint64(src[8:16])),
		LocalTs: int64(binary.LittleEndian.Uint64(src[16:24])),
		Px:      float64frombits(binary.LittleEndian.Uint64(src[24:32])),
		Qty:     float64frombits(binary.LittleEndian.Uint64(src[32:40])),
		OrderID: binary.LittleEndian.Uint64(src[40:48]),
		Ival:    int64(binary.LittleEndian.Uint64(src[48:56])),
		Fval:    float64frombits(binary.LittleEndian.Uint64(src[56:64])),
	}, true
}
