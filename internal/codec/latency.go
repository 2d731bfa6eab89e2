package codec

import (
	"encoding/binary"
	"io"

	"hftbacktest/internal/errors"
)

// LatencyRow is one (req_ts, exch_ts, resp_ts) sample used by the
// interpolated order-latency model (§4.C). Pad mirrors the wire format's
// fourth int64 and is otherwise unused.
type LatencyRow struct {
	ReqTs  int64
	ExchTs int64
	RespTs int64
	Pad    int64
}

// LatencyRowSize is the on-wire size in bytes of one LatencyRow quadruple.
const LatencyRowSize = 32

// EncodeLatencyRow serializes a latency row into a fixed-size payload.
func EncodeLatencyRow(dst []byte, row LatencyRow) []byte {
	if cap(dst) < LatencyRowSize {
		dst = make([]byte, LatencyRowSize)
	} else {
		dst = dst[:LatencyRowSize]
	}
	binary.LittleEndian.PutUint64(dst[0:8], uint64(row.ReqTs))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(row.ExchTs))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(row.RespTs))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(row.Pad))
	return dst
}

// DecodeLatencyRow parses a fixed-size latency row payload.
func DecodeLatencyRow(src []byte) (LatencyRow, bool) {
	if len(src) < LatencyRowSize {
		return LatencyRow{}, false
	}
	return LatencyRow{
		ReqTs:  int64(binary.LittleEndian.Uint64(src[0:8])),
		ExchTs: int64(binary.LittleEndian.Uint64(src[8:16])),
		RespTs: int64(binary.LittleEndian.Uint64(src[16:24])),
		Pad:    int64(binary.LittleEndian.Uint64(src[24:32])),
	}, true
}

// ReadLatencyTable reads a latency file in full: a flat array of LatencyRow
// quadruples with no container header, monotone in ReqTs. Non-monotone
// input is reported as errors.CodeDataInvalid.
func ReadLatencyTable(r io.Reader) ([]LatencyRow, error) {
	var rows []LatencyRow
	buf := make([]byte, LatencyRowSize)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapCoded(errors.CodeDataInvalid, err, "read latency row")
		}
		row, ok := DecodeLatencyRow(buf)
		if !ok {
			return nil, errors.NewCoded(errors.CodeDataInvalid, "truncated latency row")
		}
		if len(rows) > 0 && row.ReqTs < rows[len(rows)-1].ReqTs {
			return nil, errors.NewCoded(errors.CodeDataInvalid, "latency table not monotone in req_ts")
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteLatencyTable writes a flat array of latency rows with no header.
func WriteLatencyTable(w io.Writer, rows []LatencyRow) error {
	buf := make([]byte, LatencyRowSize)
	for _, row := range rows {
		buf = EncodeLatencyRow(buf, row)
		if _, err := w.Write(buf); err != nil {
			return errors.Wrap(err, "write latency row")
		}
	}
	return nil
}
