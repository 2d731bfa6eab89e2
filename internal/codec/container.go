package codec

import (
	"encoding/binary"
	"io"

	"hftbacktest/internal/errors"
	"hftbacktest/internal/schema"
)

// containerMagic identifies the self-describing Event container format (§6).
var containerMagic = [4]byte{'H', 'F', 'T', '0'}

// ContainerHeaderSize is the byte size of the magic + field-size header that
// precedes the array-of-structures Event payload.
const ContainerHeaderSize = 4 + 8 + 8

// WriteContainer writes events as an HFT0 container: magic header, an
// 8-byte little-endian record size, an 8-byte little-endian record count,
// then the events themselves.
func WriteContainer(w io.Writer, events []schema.Event) error {
	header := make([]byte, ContainerHeaderSize)
	copy(header[0:4], containerMagic[:])
	binary.LittleEndian.PutUint64(header[4:12], uint64(EventPayloadSize))
	binary.LittleEndian.PutUint64(header[12:20], uint64(len(events)))
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "write container header")
	}

	buf := make([]byte, EventPayloadSize)
	for _, ev := range events {
		buf = EncodeEvent(buf, ev)
		if _, err := w.Write(buf); err != nil {
			return errors.Wrap(err, "write event row")
		}
	}
	return nil
}

// ReadContainer reads an HFT0 container in full and decodes its events.
// A magic mismatch or a record size the caller cannot interpret is reported
// as errors.CodeDataInvalid, matching §7's tape-load failure mode.
func ReadContainer(r io.Reader) ([]schema.Event, error) {
	header := make([]byte, ContainerHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.WrapCoded(errors.CodeDataInvalid, err, "read container header")
	}
	if [4]byte(header[0:4]) != containerMagic {
		return nil, errors.NewCoded(errors.CodeDataInvalid, "bad container magic")
	}
	recordSize := binary.LittleEndian.Uint64(header[4:12])
	if recordSize != uint64(EventPayloadSize) {
		return nil, errors.NewCoded(errors.CodeDataInvalid, "unsupported event record size")
	}
	recordCount := binary.LittleEndian.Uint64(header[12:20])

	events := make([]schema.Event, 0, recordCount)
	row := make([]byte, EventPayloadSize)
	for i := uint64(0); i < recordCount; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, errors.WrapCoded(errors.CodeDataInvalid, err, "read event row")
		}
		ev, ok := DecodeEvent(row)
		if !ok {
			return nil, errors.NewCoded(errors.CodeDataInvalid, "truncated event row")
		}
		events = append(events, ev)
	}
	return events, nil
}
