package health

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

// Position is one denom's contribution to an account's health: its priced
// collateral and debt amounts together with the risk parameters that apply
// to it. Under HLS mode the caller substitutes the strategy overrides before
// building positions.
type Position struct {
	Denom                string
	Price                sdkmath.LegacyDec
	CollateralAmount     sdkmath.Int
	DebtAmount           sdkmath.Int
	Uncollateralized     bool
	MaxLTV               sdkmath.LegacyDec
	LiquidationThreshold sdkmath.LegacyDec
}

// Health is the result of valuing a set of positions. The health factors are
// nil when the account carries no countable debt.
type Health struct {
	TotalCollateralValue         sdkmath.LegacyDec
	TotalDebtValue               sdkmath.LegacyDec
	MaxLtvAdjustedCollateral     sdkmath.LegacyDec
	LiquidationThresholdAdjusted sdkmath.LegacyDec
	MaxLtvHealthFactor           *sdkmath.LegacyDec
	LiquidationHealthFactor      *sdkmath.LegacyDec
}

// Compute values the positions and derives both health factors. Debt marked
// uncollateralized does not count against the account.
func Compute(positions []Position) (Health, error) {
	totalCollateral := sdkmath.LegacyZeroDec()
	totalDebt := sdkmath.LegacyZeroDec()
	maxLtvAdjusted := sdkmath.LegacyZeroDec()
	liqThresholdAdjusted := sdkmath.LegacyZeroDec()

	for _, p := range positions {
		if p.Price.IsNil() || p.Price.IsNegative() {
			return Health{}, errorsmod.Wrapf(ErrMissingPrice, "%s", p.Denom)
		}
		if !p.CollateralAmount.IsNil() && p.CollateralAmount.IsPositive() {
			value := p.Price.MulInt(p.CollateralAmount)
			totalCollateral = totalCollateral.Add(value)
			maxLtvAdjusted = maxLtvAdjusted.Add(value.Mul(p.MaxLTV))
			liqThresholdAdjusted = liqThresholdAdjusted.Add(value.Mul(p.LiquidationThreshold))
		}
		if !p.DebtAmount.IsNil() && p.DebtAmount.IsPositive() && !p.Uncollateralized {
			totalDebt = totalDebt.Add(p.Price.MulInt(p.DebtAmount))
		}
	}

	h := Health{
		TotalCollateralValue:         totalCollateral,
		TotalDebtValue:               totalDebt,
		MaxLtvAdjustedCollateral:     maxLtvAdjusted,
		LiquidationThresholdAdjusted: liqThresholdAdjusted,
	}
	if totalDebt.IsPositive() {
		maxLtvHF := maxLtvAdjusted.Quo(totalDebt)
		liqHF := liqThresholdAdjusted.Quo(totalDebt)
		h.MaxLtvHealthFactor = &maxLtvHF
		h.LiquidationHealthFactor = &liqHF
	}
	return h, nil
}

// IsAboveMaxLtv reports whether the account has exhausted its borrowing
// capacity. Debt-free accounts are never above max LTV.
func (h Health) IsAboveMaxLtv() bool {
	return h.MaxLtvHealthFactor != nil && h.MaxLtvHealthFactor.LT(sdkmath.LegacyOneDec())
}

// IsLiquidatable reports whether the account may be liquidated. Debt-free
// accounts are never liquidatable.
func (h Health) IsLiquidatable() bool {
	return h.LiquidationHealthFactor != nil && h.LiquidationHealthFactor.LT(sdkmath.LegacyOneDec())
}

// ValidateCorrelations enforces the HLS rule that every debt denom must be a
// member of the correlation set of every collateral denom held under the
// strategy. correlations maps each HLS collateral denom to its correlation
// set.
func ValidateCorrelations(correlations map[string][]string, debtDenoms []string) error {
	for collateralDenom, set := range correlations {
		allowed := make(map[string]struct{}, len(set))
		for _, denom := range set {
			allowed[denom] = struct{}{}
		}
		for _, debtDenom := range debtDenoms {
			if _, ok := allowed[debtDenom]; !ok {
				return errorsmod.Wrapf(ErrHlsCorrelationViolated,
					"debt %s is not correlated with collateral %s", debtDenom, collateralDenom)
			}
		}
	}
	return nil
}
