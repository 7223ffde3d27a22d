package redbank_test

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"

	"redbank/native/redbank"
)

// Sets up a borrower with 1000 uatom collateral against 4000 uusdc debt and
// drops the collateral price from 10 to 6 so the position trips its
// liquidation threshold.
func underwaterFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.initMarket(t, "uusdc", "1")
	f.initMarket(t, "uatom", "10")

	f.bank.fund("nhb1whale", "uusdc", 10_000)
	f.bank.fund("nhb1bob", "uatom", 1_000)

	if _, err := f.engine.Deposit("nhb1whale", "", "", "uusdc", sdkmath.NewInt(10_000)); err != nil {
		t.Fatalf("whale deposit: %v", err)
	}
	if _, err := f.engine.Deposit("nhb1bob", "", "", "uatom", sdkmath.NewInt(1_000)); err != nil {
		t.Fatalf("borrower deposit: %v", err)
	}
	if err := f.engine.Borrow("nhb1bob", "uusdc", sdkmath.NewInt(4_000), ""); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	f.oracle.prices["uatom"] = dec(t, "6")
	return f
}

func TestLiquidateUnderwaterPosition(t *testing.T) {
	f := underwaterFixture(t)
	f.bank.fund("nhb1liq", "uusdc", 5_000)

	outcome, err := f.engine.Liquidate("nhb1liq", "nhb1bob", "uatom", "uusdc", sdkmath.NewInt(5_000), "")
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	// CR = 6000/4000 caps the bonus at max_lb 0.1; the target health factor
	// bounds the repay at 600/0.39.
	if want := sdkmath.NewInt(1_538); !outcome.DebtRepaid.Equal(want) {
		t.Fatalf("debt repaid = %s, want %s", outcome.DebtRepaid, want)
	}
	if want := sdkmath.NewInt(282); !outcome.CollateralSeized.Equal(want) {
		t.Fatalf("collateral seized = %s, want %s", outcome.CollateralSeized, want)
	}
	if want := sdkmath.NewInt(1); !outcome.ProtocolFee.Equal(want) {
		t.Fatalf("protocol fee = %s, want %s", outcome.ProtocolFee, want)
	}
	if want := sdkmath.NewInt(281); !outcome.CollateralToLiquidator.Equal(want) {
		t.Fatalf("collateral to liquidator = %s, want %s", outcome.CollateralToLiquidator, want)
	}
	if !outcome.CollateralToLiquidator.Add(outcome.ProtocolFee).Equal(outcome.CollateralSeized) {
		t.Fatalf("seized split does not add up")
	}
	if want := sdkmath.NewInt(3_462); !outcome.Refund.Equal(want) {
		t.Fatalf("refund = %s, want %s", outcome.Refund, want)
	}

	// Seizure moves ownership, it does not touch market liquidity.
	borrowerCol, err := f.engine.UserCollateral("nhb1bob", "", "uatom")
	if err != nil {
		t.Fatalf("query borrower collateral: %v", err)
	}
	if want := sdkmath.NewInt(718); !borrowerCol.Amount.Equal(want) {
		t.Fatalf("borrower collateral = %s, want %s", borrowerCol.Amount, want)
	}
	liqCol, err := f.engine.UserCollateral("nhb1liq", "", "uatom")
	if err != nil {
		t.Fatalf("query liquidator collateral: %v", err)
	}
	if want := sdkmath.NewInt(281); !liqCol.Amount.Equal(want) {
		t.Fatalf("liquidator collateral = %s, want %s", liqCol.Amount, want)
	}
	feeCol, err := f.engine.UserCollateral(feeCollector, "", "uatom")
	if err != nil {
		t.Fatalf("query fee collateral: %v", err)
	}
	if want := sdkmath.NewInt(1); !feeCol.Amount.Equal(want) {
		t.Fatalf("fee collector collateral = %s, want %s", feeCol.Amount, want)
	}

	// Only the executed repay leaves the liquidator's wallet.
	liqBalance, _ := f.bank.Balance("nhb1liq", "uusdc")
	if want := sdkmath.NewInt(3_462); !liqBalance.Equal(want) {
		t.Fatalf("liquidator balance = %s, want %s", liqBalance, want)
	}
}

func TestLiquidateHealthyPositionRejected(t *testing.T) {
	f := underwaterFixture(t)
	f.oracle.prices["uatom"] = dec(t, "10")
	f.bank.fund("nhb1liq", "uusdc", 5_000)

	_, err := f.engine.Liquidate("nhb1liq", "nhb1bob", "uatom", "uusdc", sdkmath.NewInt(5_000), "")
	if !errors.Is(err, redbank.ErrNotLiquidatable) {
		t.Fatalf("expected ErrNotLiquidatable, got %v", err)
	}
}

func TestLiquidateGuards(t *testing.T) {
	f := underwaterFixture(t)
	f.bank.fund("nhb1liq", "uusdc", 5_000)

	if _, err := f.engine.Liquidate("nhb1bob", "nhb1bob", "uatom", "uusdc", sdkmath.NewInt(100), ""); !errors.Is(err, redbank.ErrCannotLiquidateOwn) {
		t.Fatalf("expected ErrCannotLiquidateOwn, got %v", err)
	}
	if _, err := f.engine.Liquidate("nhb1liq", "nhb1whale", "uusdc", "uusdc", sdkmath.NewInt(100), ""); !errors.Is(err, redbank.ErrNoDebt) {
		t.Fatalf("expected ErrNoDebt, got %v", err)
	}
}

func TestLiquidateCreditLineDebtRejected(t *testing.T) {
	f := newFixture(t)
	f.initMarket(t, "uusdc", "1")
	f.bank.fund("nhb1whale", "uusdc", 10_000)
	f.bank.fund("nhb1liq", "uusdc", 1_000)

	if _, err := f.engine.Deposit("nhb1whale", "", "", "uusdc", sdkmath.NewInt(10_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.engine.UpdateUncollateralizedLoanLimit(ownerAddr, "nhb1bob", "uusdc", sdkmath.NewInt(1_000)); err != nil {
		t.Fatalf("set credit line: %v", err)
	}
	if err := f.engine.Borrow("nhb1bob", "uusdc", sdkmath.NewInt(500), ""); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	// Credit-line borrowers hold no collateral to seize.
	_, err := f.engine.Liquidate("nhb1liq", "nhb1bob", "uusdc", "uusdc", sdkmath.NewInt(500), "")
	if !errors.Is(err, redbank.ErrUserNoCollateralBalance) {
		t.Fatalf("expected ErrUserNoCollateralBalance, got %v", err)
	}
}
