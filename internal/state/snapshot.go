package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Report is a post-run dump of every asset's final bookkeeping, for
// inspection or golden-file comparison in tests. The backtest core itself
// never reads a Report back into a running state — spec.md's Non-goals rule
// out persistence of state across runs; this is an output artifact only.
type Report struct {
	Timestamp int64          `json:"timestamp"`
	Assets    []AssetSummary `json:"assets"`
}

// AssetSummary is one asset's row within a Report.
type AssetSummary struct {
	SymbolID    uint32  `json:"symbolId"`
	Position    float64 `json:"position"`
	Balance     float64 `json:"balance"`
	Fee         float64 `json:"fee"`
	TradeNum    int64   `json:"tradeNum"`
	TradeQty    float64 `json:"tradeQty"`
	TradeAmount float64 `json:"tradeAmount"`
}

// BuildReport summarizes a set of per-asset states, sorted by symbol id.
func BuildReport(states map[uint32]*AssetState) Report {
	entries := make([]AssetSummary, 0, len(states))
	for symbolID, s := range states {
		entries = append(entries, AssetSummary{
			SymbolID:    symbolID,
			Position:    s.Position,
			Balance:     s.Balance,
			Fee:         s.Fee,
			TradeNum:    s.TradeNum,
			TradeQty:    s.TradeQty,
			TradeAmount: s.TradeAmount,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SymbolID < entries[j].SymbolID })
	return Report{Timestamp: time.Now().UTC().UnixNano(), Assets: entries}
}

// WriteReport writes a report to disk as JSON.
func WriteReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadReport loads a report from disk, e.g. to compare a run's output
// against a golden file.
func ReadReport(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return Report{}, err
	}
	return report, nil
}

// CompareReports checks two reports have matching per-asset summaries,
// ignoring the timestamp.
func CompareReports(expected, actual Report) error {
	if len(expected.Assets) != len(actual.Assets) {
		return fmt.Errorf("report length mismatch: expected=%d actual=%d", len(expected.Assets), len(actual.Assets))
	}
	want := make(map[uint32]AssetSummary, len(expected.Assets))
	for _, a := range expected.Assets {
		want[a.SymbolID] = a
	}
	for _, got := range actual.Assets {
		w, ok := want[got.SymbolID]
		if !ok {
			return fmt.Errorf("report missing symbol: %d", got.SymbolID)
		}
		if w != got {
			return fmt.Errorf("report mismatch for symbol %d: expected=%+v actual=%+v", got.SymbolID, w, got)
		}
	}
	return nil
}
