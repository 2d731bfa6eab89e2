package schema

// StateValuesRecord is the payload for RecordStateValues, sampled by the
// stats recorder on every elapse (spec §6, "Stats recorder" collaborator).
type StateValuesRecord struct {
	AssetNo     uint16
	Position    float64
	Balance     float64
	Fee         float64
	TradeNum    int64
	TradeQty    float64
	TradeAmount float64
	MidPrice    float64
}

// FillRecord is the payload for RecordFill.
type FillRecord struct {
	AssetNo  uint16
	OrderID  uint64
	Side     Side
	PriceTick int64
	Qty      float64
	Fee      float64
	Maker    bool
}

// OrderAckRecord is the payload for RecordOrderAck.
type OrderAckRecord struct {
	AssetNo  uint16
	OrderID  uint64
	Status   Status
	LeavesQty float64
}
