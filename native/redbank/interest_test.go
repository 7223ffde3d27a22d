package redbank

import (
	"testing"

	sdkmath "cosmossdk.io/math"
)

func mustDec(t *testing.T, s string) sdkmath.LegacyDec {
	t.Helper()
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func testMarket(t *testing.T) *Market {
	return &Market{
		Denom:          "uusdc",
		BorrowIndex:    sdkmath.LegacyOneDec(),
		LiquidityIndex: sdkmath.LegacyOneDec(),
		BorrowRate:     sdkmath.LegacyZeroDec(),
		LiquidityRate:  sdkmath.LegacyZeroDec(),
		ReserveFactor:  mustDec(t, "0.2"),
		Model: InterestRateModel{
			OptimalUtilization: mustDec(t, "0.8"),
			Base:               mustDec(t, "0"),
			Slope1:             mustDec(t, "0.07"),
			Slope2:             mustDec(t, "0.45"),
		},
		DebtTotalScaled:       sdkmath.ZeroInt(),
		CollateralTotalScaled: sdkmath.ZeroInt(),
	}
}

func TestUpdateRates(t *testing.T) {
	cases := []struct {
		name          string
		utilization   string
		wantBorrow    string
		wantLiquidity string
	}{
		{"idle", "0", "0", "0"},
		{"below kink", "0.5", "0.04375", "0.0175"},
		{"at kink", "0.8", "0.07", "0.0448"},
		{"above kink", "0.9", "0.295", "0.2124"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := testMarket(t)
			UpdateRates(m, mustDec(t, tc.utilization))
			if want := mustDec(t, tc.wantBorrow); !m.BorrowRate.Equal(want) {
				t.Fatalf("borrow rate = %s, want %s", m.BorrowRate, want)
			}
			if want := mustDec(t, tc.wantLiquidity); !m.LiquidityRate.Equal(want) {
				t.Fatalf("liquidity rate = %s, want %s", m.LiquidityRate, want)
			}
		})
	}
}

func TestUpdateRatesKinkAtFullUtilization(t *testing.T) {
	m := testMarket(t)
	m.Model.OptimalUtilization = sdkmath.LegacyOneDec()
	UpdateRates(m, sdkmath.LegacyOneDec())
	if want := mustDec(t, "0.07"); !m.BorrowRate.Equal(want) {
		t.Fatalf("borrow rate = %s, want %s", m.BorrowRate, want)
	}
}

func TestAdvanceIndicesSimpleInterest(t *testing.T) {
	m := testMarket(t)
	m.BorrowRate = mustDec(t, "0.04375")
	m.LiquidityRate = mustDec(t, "0.0175")
	m.IndexesLastUpdated = 100

	AdvanceIndices(m, 100+SecondsPerYear)
	if want := mustDec(t, "1.04375"); !m.BorrowIndex.Equal(want) {
		t.Fatalf("borrow index = %s, want %s", m.BorrowIndex, want)
	}
	if want := mustDec(t, "1.0175"); !m.LiquidityIndex.Equal(want) {
		t.Fatalf("liquidity index = %s, want %s", m.LiquidityIndex, want)
	}
	if m.IndexesLastUpdated != 100+SecondsPerYear {
		t.Fatalf("last updated = %d", m.IndexesLastUpdated)
	}
}

func TestAdvanceIndicesNoTimePassed(t *testing.T) {
	m := testMarket(t)
	m.BorrowRate = mustDec(t, "0.5")
	m.IndexesLastUpdated = 100

	AdvanceIndices(m, 100)
	if !m.BorrowIndex.Equal(sdkmath.LegacyOneDec()) {
		t.Fatalf("index moved without time passing: %s", m.BorrowIndex)
	}
	// A stale clock must never rewind the index.
	AdvanceIndices(m, 50)
	if m.IndexesLastUpdated != 100 {
		t.Fatalf("last updated rewound to %d", m.IndexesLastUpdated)
	}
}

func TestUtilization(t *testing.T) {
	m := testMarket(t)
	if u := Utilization(m, sdkmath.ZeroInt()); !u.IsZero() {
		t.Fatalf("empty market utilization = %s", u)
	}
	m.DebtTotalScaled = sdkmath.NewInt(500_000_000)
	if u, want := Utilization(m, sdkmath.NewInt(500)), mustDec(t, "0.5"); !u.Equal(want) {
		t.Fatalf("utilization = %s, want %s", u, want)
	}
}

func TestScaledConversionsRoundForThePool(t *testing.T) {
	index := mustDec(t, "1.1")
	amount := sdkmath.NewInt(100)

	down := ScaledLiquidityAmount(amount, index)
	up := ScaledLiquidityAmountUp(amount, index)
	if !down.Equal(sdkmath.NewInt(90_909_090)) {
		t.Fatalf("scaled liquidity down = %s", down)
	}
	if !up.Equal(sdkmath.NewInt(90_909_091)) {
		t.Fatalf("scaled liquidity up = %s", up)
	}
	// A deposit-then-redeem round trip may lose a unit, never gain one.
	if back := UnderlyingLiquidityAmount(down, index); back.GT(amount) {
		t.Fatalf("round trip gained value: %s", back)
	}

	debtScaled := ScaledDebtAmount(amount, index)
	if !debtScaled.Equal(sdkmath.NewInt(90_909_091)) {
		t.Fatalf("scaled debt = %s", debtScaled)
	}
	// The owed amount always covers what was borrowed.
	if owed := UnderlyingDebtAmount(debtScaled, index); owed.LT(amount) {
		t.Fatalf("owed %s below borrowed %s", owed, amount)
	}
	if cleared := ScaledDebtAmountDown(amount, index); cleared.GT(debtScaled) {
		t.Fatalf("repay cleared more scaled debt than minted")
	}
}

func TestConversionsAtUnitIndex(t *testing.T) {
	one := sdkmath.LegacyOneDec()
	amount := sdkmath.NewInt(1_000)
	scaled := ScaledLiquidityAmount(amount, one)
	if !scaled.Equal(sdkmath.NewInt(1_000_000_000)) {
		t.Fatalf("scaled = %s", scaled)
	}
	if back := UnderlyingLiquidityAmount(scaled, one); !back.Equal(amount) {
		t.Fatalf("round trip at unit index = %s", back)
	}
}
