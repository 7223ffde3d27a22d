package redbank

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

// InterestRateModel is the two-slope kinked borrow rate curve. All rates are
// decimal APRs; OptimalUtilization is the kink position in (0, 1].
type InterestRateModel struct {
	OptimalUtilization sdkmath.LegacyDec
	Base               sdkmath.LegacyDec
	Slope1             sdkmath.LegacyDec
	Slope2             sdkmath.LegacyDec
}

// Validate enforces the model parameter relationships.
func (m InterestRateModel) Validate() error {
	if m.OptimalUtilization.IsNil() || !m.OptimalUtilization.IsPositive() || m.OptimalUtilization.GT(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(errInvalidModel, "optimal_utilization %s must be in (0, 1]", m.OptimalUtilization)
	}
	if m.Base.IsNil() || m.Base.IsNegative() {
		return errorsmod.Wrapf(errInvalidModel, "base %s must be non-negative", m.Base)
	}
	if m.Slope1.IsNil() || m.Slope1.IsNegative() || m.Slope2.IsNil() {
		return errorsmod.Wrap(errInvalidModel, "slopes must be non-negative")
	}
	if !m.Slope1.LT(m.Slope2) {
		return errorsmod.Wrapf(errInvalidModel, "slope_1 %s must be less than slope_2 %s", m.Slope1, m.Slope2)
	}
	return nil
}

// Market captures the global accounting state for one asset denom. Scaled
// totals grow into underlying values as the indices advance.
type Market struct {
	Denom         string
	ReserveFactor sdkmath.LegacyDec
	Model         InterestRateModel

	BorrowIndex        sdkmath.LegacyDec
	LiquidityIndex     sdkmath.LegacyDec
	BorrowRate         sdkmath.LegacyDec
	LiquidityRate      sdkmath.LegacyDec
	IndexesLastUpdated uint64

	CollateralTotalScaled sdkmath.Int
	DebtTotalScaled       sdkmath.Int
}

// NewMarket initialises a market with unit indices and zero totals.
func NewMarket(denom string, reserveFactor sdkmath.LegacyDec, model InterestRateModel, now uint64) *Market {
	return &Market{
		Denom:                 denom,
		ReserveFactor:         reserveFactor,
		Model:                 model,
		BorrowIndex:           sdkmath.LegacyOneDec(),
		LiquidityIndex:        sdkmath.LegacyOneDec(),
		BorrowRate:            sdkmath.LegacyZeroDec(),
		LiquidityRate:         sdkmath.LegacyZeroDec(),
		IndexesLastUpdated:    now,
		CollateralTotalScaled: sdkmath.ZeroInt(),
		DebtTotalScaled:       sdkmath.ZeroInt(),
	}
}

// Clone returns a deep copy of the market.
func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Collateral is a user's scaled deposit position in one denom. Enabled
// positions count toward the health factor.
type Collateral struct {
	Denom        string
	AmountScaled sdkmath.Int
	Enabled      bool
}

// Debt is a user's scaled borrow position in one denom. Uncollateralized is
// set when the position was opened against a delegated credit line.
type Debt struct {
	Denom            string
	AmountScaled     sdkmath.Int
	Uncollateralized bool
}
