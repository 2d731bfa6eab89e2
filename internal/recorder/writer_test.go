package recorder

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"hftbacktest/internal/schema"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	want := []schema.StateValuesRecord{
		{AssetNo: 0, Position: 1, Balance: 10, TradeNum: 1},
		{AssetNo: 0, Position: 2, Balance: 20, TradeNum: 2},
		{AssetNo: 1, Position: -1, Balance: -5, TradeNum: 1},
	}
	for i, rec := range want {
		header := schema.NewHeader(schema.RecordStateValues, rec.AssetNo, uint64(i+1), int64(i*1000), int64(i*1000+10))
		require.NoError(t, w.TryAppend(header, EncodeStateValues(rec)))
	}
	require.NoError(t, w.Close())

	files, err := (&Replay{cfg: ReplayConfig{Dir: dir, FilePrefix: defaultFilePrefix}}).collectFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)

	f, err := os.Open(files[0])
	require.NoError(t, err)
	defer f.Close()

	reader := NewReader(f, ReaderOptions{})
	var got []schema.StateValuesRecord
	for {
		header, payload, err := reader.Next()
		if err != nil {
			break
		}
		require.Equal(t, schema.RecordStateValues, header.Type)
		rec, ok := DecodeStateValues(payload)
		require.True(t, ok)
		got = append(got, rec)
	}
	require.Equal(t, want, got)
}

func TestWriterTryAppendRejectsBeforeStart(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)

	header := schema.NewHeader(schema.RecordStateValues, 0, 1, 0, 0)
	err = w.TryAppend(header, nil)
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestWriterTryAppendRejectsAfterClose(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Close())

	header := schema.NewHeader(schema.RecordStateValues, 0, 1, 0, 0)
	err = w.TryAppend(header, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestReplayRunReplaysEveryRecordInOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	for i := 0; i < 3; i++ {
		rec := schema.StateValuesRecord{AssetNo: uint16(i), Position: float64(i)}
		header := schema.NewHeader(schema.RecordStateValues, rec.AssetNo, uint64(i+1), int64(i), int64(i))
		require.NoError(t, w.TryAppend(header, EncodeStateValues(rec)))
	}
	require.NoError(t, w.Close())

	pb, err := NewReplay(ReplayConfig{Dir: dir})
	require.NoError(t, err)

	var seen []uint16
	err = pb.Run(context.Background(), func(header schema.EventHeader, payload []byte) error {
		seen = append(seen, header.AssetNo)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint16{0, 1, 2}, seen)
}
