package depth

import "hftbacktest/internal/schema"

// SnapshotApplier replays a DEPTH_SNAPSHOT_EVENT sequence atomically: the
// begin marker clears the affected side(s), each row repopulates one
// level, and the end marker recomputes the best pointers. Strategy
// observation is not permitted to interleave with an in-progress snapshot
// (§4.B) — callers must not hand the depth to the strategy between
// BeginSnapshot and EndSnapshot.
type SnapshotApplier struct {
	depth *MarketDepth
	open  bool
}

// NewSnapshotApplier binds a snapshot applier to depth.
func NewSnapshotApplier(depth *MarketDepth) *SnapshotApplier {
	return &SnapshotApplier{depth: depth}
}

// BeginSnapshot clears the given side(s) and opens the atomic window.
func (s *SnapshotApplier) BeginSnapshot(sides ...schema.Side) {
	for _, side := range sides {
		s.depth.Clear(side)
	}
	s.open = true
}

// ApplyRow applies one snapshot row while the window is open.
func (s *SnapshotApplier) ApplyRow(side schema.Side, tick int64, qty float64) {
	s.depth.ApplyDepth(side, tick, qty)
}

// EndSnapshot recomputes both best pointers and closes the window.
func (s *SnapshotApplier) EndSnapshot() {
	s.depth.RecomputeBest()
	s.open = false
}

// Open reports whether a snapshot window is currently in progress.
func (s *SnapshotApplier) Open() bool { return s.open }
