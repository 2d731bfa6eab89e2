package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/codec"
)

func TestReadCSVRows(t *testing.T) {
	csv := "req_ts,exch_ts,resp_ts\n10,11,20\n5,6,15\n"
	rows, err := readCSVRows(strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, []codec.LatencyRow{
		{ReqTs: 10, ExchTs: 11, RespTs: 20},
		{ReqTs: 5, ExchTs: 6, RespTs: 15},
	}, rows)
}

func TestReadCSVRowsMissingColumn(t *testing.T) {
	csv := "req_ts,resp_ts\n10,20\n"
	_, err := readCSVRows(strings.NewReader(csv))
	require.Error(t, err)
}

func TestReadJSONRows(t *testing.T) {
	in := `[{"req_ts":10,"exch_ts":11,"resp_ts":20},{"req_ts":5,"exch_ts":6,"resp_ts":15}]`
	rows, err := readJSONRows(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, []codec.LatencyRow{
		{ReqTs: 10, ExchTs: 11, RespTs: 20},
		{ReqTs: 5, ExchTs: 6, RespTs: 15},
	}, rows)
}

func TestReadRowsRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.xyz")
	require.NoError(t, os.WriteFile(path, []byte("10,11,20\n"), 0o644))

	_, err := readRows(path, "xyz")
	require.Error(t, err)
	var target errUnknownFormat
	require.ErrorAs(t, err, &target)
}
