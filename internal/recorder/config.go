package recorder

import "fmt"

const (
	defaultSegmentMaxBytes   int64 = 1 << 30
	defaultSegmentMaxRecords int64 = 500_000
	defaultQueueSize               = 4096
	defaultBufferSize              = 256 * 1024
	defaultFilePrefix              = "run"
	defaultFlushEvery        int64 = 1024
)

// Config controls how a run's sampled records (state values, fills, order
// acks) are persisted to disk as they are produced.
//
// A backtest run has no wall-clock component worth tracking — the tape's
// own event timestamps drive it, not time.Now — so unlike a live-system
// WAL writer, segments rotate on record count and byte size only, and the
// buffer flushes on a record cadence rather than a ticker.
type Config struct {
	Dir               string
	SegmentMaxBytes   int64
	SegmentMaxRecords int64
	QueueSize         int
	BufferSize        int
	FilePrefix        string
	FlushEvery        int64
	SyncOnRotate      bool
	CopyPayload       bool
}

// DefaultConfig returns a baseline configuration for a run recorder
// writing into dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:               dir,
		SegmentMaxBytes:   defaultSegmentMaxBytes,
		SegmentMaxRecords: defaultSegmentMaxRecords,
		QueueSize:         defaultQueueSize,
		BufferSize:        defaultBufferSize,
		FilePrefix:        defaultFilePrefix,
		FlushEvery:        defaultFlushEvery,
		SyncOnRotate:      true,
	}
}

func (c Config) withDefaults() Config {
	if c.SegmentMaxBytes == 0 {
		c.SegmentMaxBytes = defaultSegmentMaxBytes
	}
	if c.SegmentMaxRecords == 0 {
		c.SegmentMaxRecords = defaultSegmentMaxRecords
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	if c.FlushEvery == 0 {
		c.FlushEvery = defaultFlushEvery
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid recorder config: Dir is empty")
	}
	if c.SegmentMaxBytes <= 0 {
		return fmt.Errorf("invalid recorder config: SegmentMaxBytes must be > 0")
	}
	if c.SegmentMaxRecords <= 0 {
		return fmt.Errorf("invalid recorder config: SegmentMaxRecords must be > 0")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("invalid recorder config: QueueSize must be > 0")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid recorder config: BufferSize must be > 0")
	}
	if c.FilePrefix == "" {
		return fmt.Errorf("invalid recorder config: FilePrefix is empty")
	}
	if c.FlushEvery <= 0 {
		return fmt.Errorf("invalid recorder config: FlushEvery must be > 0")
	}
	return nil
}
