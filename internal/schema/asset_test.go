package schema

import "testing"

func TestRoundToTickBankersRounding(t *testing.T) {
	cases := []struct {
		price, tick float64
		want        int64
	}{
		{1000.5, 1.0, 1000}, // halfway, rounds to even (1000)
		{1001.5, 1.0, 1002}, // halfway, rounds to even (1002)
		{100.1, 0.1, 1001},
	}
	for _, c := range cases {
		if got := RoundToTick(c.price, c.tick); got != c.want {
			t.Fatalf("RoundToTick(%v,%v) = %d, want %d", c.price, c.tick, got, c.want)
		}
	}
}

func TestSnapToLotAndAlignment(t *testing.T) {
	if got := SnapToLot(0.37, 0.1); got < 0.39999 || got > 0.40001 {
		t.Fatalf("SnapToLot(0.37, 0.1) = %v, want ~0.4", got)
	}
	if !IsLotAligned(0.3, 0.1) {
		t.Fatalf("expected 0.3 to be lot-aligned to 0.1")
	}
	if IsLotAligned(0.35, 0.1) {
		t.Fatalf("expected 0.35 not to be lot-aligned to 0.1")
	}
}

func TestFeeModelModes(t *testing.T) {
	m := FeeModel{Mode: FeePerValue, MakerFee: -0.0001, TakerFee: 0.0005}
	if got := m.Fee(100, 2, false); got != 0.1 {
		t.Fatalf("taker per-value fee = %v, want 0.1", got)
	}
	if got := m.Fee(100, 2, true); got >= 0 {
		t.Fatalf("maker per-value fee should be a rebate (negative), got %v", got)
	}

	m2 := FeeModel{Mode: FeePerQty, TakerFee: 0.01}
	if got := m2.Fee(100, 3, false); got != 0.03 {
		t.Fatalf("per-qty fee = %v, want 0.03", got)
	}

	m3 := FeeModel{Mode: FeePerTrade, TakerFee: 1.5}
	if got := m3.Fee(100, 3, false); got != 1.5 {
		t.Fatalf("per-trade fee = %v, want 1.5", got)
	}
}
