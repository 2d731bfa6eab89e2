// Command latencyconv converts a latency CSV or JSON sample file into the
// flat binary latency table latency.IntpOrderLatency reads
// (internal/codec.WriteLatencyTable), sorted and validated monotone in
// req_ts the same way codec.ReadLatencyTable requires on load.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"hftbacktest/internal/codec"
)

func main() {
	in := flag.String("in", "", "Input latency sample file (.csv or .json)")
	out := flag.String("out", "", "Output binary latency table path")
	format := flag.String("format", "", "Input format: csv or json (default: inferred from -in's extension)")
	flag.Parse()

	if *in == "" || *out == "" {
		log.Fatalf("-in and -out are required")
	}

	fmt := *format
	if fmt == "" {
		fmt = strings.TrimPrefix(strings.ToLower(filepath.Ext(*in)), ".")
	}

	rows, err := readRows(*in, fmt)
	if err != nil {
		log.Fatalf("read %s: %v", *in, err)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ReqTs < rows[j].ReqTs })

	w, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create %s: %v", *out, err)
	}
	defer w.Close()

	if err := codec.WriteLatencyTable(w, rows); err != nil {
		log.Fatalf("write latency table: %v", err)
	}
	log.Printf("wrote %d rows to %s", len(rows), *out)
}

func readRows(path, format string) ([]codec.LatencyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case "json":
		return readJSONRows(f)
	case "csv":
		return readCSVRows(f)
	default:
		return nil, errUnknownFormat(format)
	}
}

type errUnknownFormat string

func (e errUnknownFormat) Error() string {
	return "unknown input format " + strconv.Quote(string(e)) + " (want csv or json)"
}

// jsonRow mirrors codec.LatencyRow's fields without its Pad slot, which a
// sample file has no reason to populate.
type jsonRow struct {
	ReqTs  int64 `json:"req_ts"`
	ExchTs int64 `json:"exch_ts"`
	RespTs int64 `json:"resp_ts"`
}

func readJSONRows(r io.Reader) ([]codec.LatencyRow, error) {
	var parsed []jsonRow
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, err
	}
	rows := make([]codec.LatencyRow, len(parsed))
	for i, p := range parsed {
		rows[i] = codec.LatencyRow{ReqTs: p.ReqTs, ExchTs: p.ExchTs, RespTs: p.RespTs}
	}
	return rows, nil
}

// readCSVRows expects a header row (req_ts,exch_ts,resp_ts) followed by one
// row per sample.
func readCSVRows(r io.Reader) ([]codec.LatencyRow, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	reqIdx, ok := col["req_ts"]
	if !ok {
		return nil, errMissingColumn("req_ts")
	}
	exchIdx, ok := col["exch_ts"]
	if !ok {
		return nil, errMissingColumn("exch_ts")
	}
	respIdx, ok := col["resp_ts"]
	if !ok {
		return nil, errMissingColumn("resp_ts")
	}

	rows := make([]codec.LatencyRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		reqTs, err := strconv.ParseInt(strings.TrimSpace(rec[reqIdx]), 10, 64)
		if err != nil {
			return nil, err
		}
		exchTs, err := strconv.ParseInt(strings.TrimSpace(rec[exchIdx]), 10, 64)
		if err != nil {
			return nil, err
		}
		respTs, err := strconv.ParseInt(strings.TrimSpace(rec[respIdx]), 10, 64)
		if err != nil {
			return nil, err
		}
		rows = append(rows, codec.LatencyRow{ReqTs: reqTs, ExchTs: exchTs, RespTs: respTs})
	}
	return rows, nil
}

type errMissingColumn string

func (e errMissingColumn) Error() string { return "missing column: " + string(e) }
