package liquidation

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"redbank/native/health"
	"redbank/native/params"
)

// Inputs carries everything the close-factor calculation needs. Health must
// come from liquidation pricing and must already be liquidatable.
type Inputs struct {
	Health             health.Health
	CollateralAmount   sdkmath.Int
	CollateralPrice    sdkmath.LegacyDec
	CollateralParams   params.AssetParams
	DebtAmount         sdkmath.Int
	DebtPrice          sdkmath.LegacyDec
	RequestedRepay     sdkmath.Int
	TargetHealthFactor sdkmath.LegacyDec
}

// Result is the settled outcome of a liquidation. CollateralToLiquidator
// plus ProtocolFee always equals CollateralSeized.
type Result struct {
	DebtToRepay            sdkmath.Int
	CollateralSeized       sdkmath.Int
	CollateralToLiquidator sdkmath.Int
	ProtocolFee            sdkmath.Int
	Bonus                  sdkmath.LegacyDec
}

// Bonus derives the dynamic liquidation bonus: a health-factor-driven
// candidate clamped by a collateralization-ratio ceiling and the per-asset
// floor and cap.
func Bonus(h health.Health, lb params.LiquidationBonus) sdkmath.LegacyDec {
	one := sdkmath.LegacyOneDec()

	crAdj := sdkmath.LegacyZeroDec()
	if h.TotalDebtValue.IsPositive() {
		cr := h.TotalCollateralValue.Quo(h.TotalDebtValue)
		if cr.GT(one) {
			crAdj = cr.Sub(one)
		}
	}
	ceiling := sdkmath.LegacyMaxDec(sdkmath.LegacyMinDec(crAdj, lb.MaxLB), lb.MinLB)

	liqHF := sdkmath.LegacyZeroDec()
	if h.LiquidationHealthFactor != nil {
		liqHF = *h.LiquidationHealthFactor
	}
	candidate := lb.StartingLB.Add(lb.Slope.Mul(one.Sub(liqHF)))

	return sdkmath.LegacyMinDec(candidate, ceiling)
}

// Calculate settles how much debt a liquidator may repay and how much
// collateral that buys, honoring the target health factor policy. Rounding
// favors the protocol throughout except the final collateral unit, which
// rounds up so the borrower is never left holding a stranded sub-unit.
func Calculate(in Inputs) (Result, error) {
	if !in.Health.IsLiquidatable() {
		return Result{}, errorsmod.Wrap(ErrNotLiquidatable, "liquidation health factor is at or above one")
	}

	one := sdkmath.LegacyOneDec()
	lb := Bonus(in.Health, in.CollateralParams.LiquidationBonus)
	onePlusLB := one.Add(lb)

	// Maximum debt repayable before the position would overshoot the target
	// health factor. A non-positive denominator means the position is so deep
	// the whole debt may be closed.
	maxRepayable := in.DebtAmount
	denomExpr := in.TargetHealthFactor.Sub(in.CollateralParams.LiquidationThreshold.Mul(onePlusLB))
	if denomExpr.IsPositive() {
		mdrValue := in.TargetHealthFactor.Mul(in.Health.TotalDebtValue).
			Sub(in.Health.LiquidationThresholdAdjusted).
			Quo(denomExpr)
		mdrAmount := mdrValue.QuoTruncate(in.DebtPrice).TruncateInt()
		maxRepayable = sdkmath.MinInt(maxRepayable, mdrAmount)
	}

	// The requested collateral denom also bounds the repay: seizing more than
	// the borrower holds is impossible.
	collateralValue := in.CollateralPrice.MulInt(in.CollateralAmount)
	collateralLimited := collateralValue.QuoTruncate(onePlusLB).QuoTruncate(in.DebtPrice).TruncateInt()

	debtToRepay := sdkmath.MinInt(
		sdkmath.MinInt(in.DebtAmount, in.RequestedRepay),
		sdkmath.MinInt(maxRepayable, collateralLimited),
	)
	if debtToRepay.IsNegative() {
		debtToRepay = sdkmath.ZeroInt()
	}

	debtValueRepaid := in.DebtPrice.MulInt(debtToRepay)
	seized := debtValueRepaid.Mul(onePlusLB).Quo(in.CollateralPrice).Ceil().TruncateInt()
	if seized.GT(in.CollateralAmount) {
		seized = in.CollateralAmount
	}

	if debtToRepay.IsZero() != seized.IsZero() {
		return Result{}, errorsmod.Wrapf(ErrInvalidLiquidation,
			"debt_to_repay %s, collateral_seized %s", debtToRepay, seized)
	}

	fee := debtValueRepaid.Mul(lb).Mul(in.CollateralParams.ProtocolLiquidationFee).
		Quo(in.CollateralPrice).Ceil().TruncateInt()
	if fee.GT(seized) {
		fee = seized
	}

	return Result{
		DebtToRepay:            debtToRepay,
		CollateralSeized:       seized,
		CollateralToLiquidator: seized.Sub(fee),
		ProtocolFee:            fee,
		Bonus:                  lb,
	}, nil
}
