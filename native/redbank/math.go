package redbank

import sdkmath "cosmossdk.io/math"

// ScalingFactor widens scaled amounts so precision survives for very small
// units. Scaled and underlying values must never meet in the same expression
// without passing through one of the conversions below; each conversion fixes
// its rounding direction so the pool never loses to rounding.
var ScalingFactor = sdkmath.LegacyNewDec(1_000_000)

// ScaledLiquidityAmount converts an underlying deposit into scaled collateral
// shares, rounding down.
func ScaledLiquidityAmount(amount sdkmath.Int, liquidityIndex sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(amount).Mul(ScalingFactor).QuoTruncate(liquidityIndex).TruncateInt()
}

// ScaledLiquidityAmountUp converts an underlying withdrawal into the scaled
// shares to burn, rounding up so a withdrawal never burns less than it pays.
func ScaledLiquidityAmountUp(amount sdkmath.Int, liquidityIndex sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(amount).Mul(ScalingFactor).QuoRoundUp(liquidityIndex).Ceil().TruncateInt()
}

// UnderlyingLiquidityAmount converts scaled collateral shares back into
// underlying units, rounding down.
func UnderlyingLiquidityAmount(scaled sdkmath.Int, liquidityIndex sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(scaled).Mul(liquidityIndex).QuoTruncate(ScalingFactor).TruncateInt()
}

// ScaledDebtAmount converts borrowed underlying into scaled debt shares,
// rounding up.
func ScaledDebtAmount(amount sdkmath.Int, borrowIndex sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(amount).Mul(ScalingFactor).QuoRoundUp(borrowIndex).Ceil().TruncateInt()
}

// ScaledDebtAmountDown converts a repayment into the scaled debt shares it
// clears, rounding down so a repayment never clears more than it pays.
func ScaledDebtAmountDown(amount sdkmath.Int, borrowIndex sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(amount).Mul(ScalingFactor).QuoTruncate(borrowIndex).TruncateInt()
}

// UnderlyingDebtAmount converts scaled debt shares into the underlying owed,
// rounding up.
func UnderlyingDebtAmount(scaled sdkmath.Int, borrowIndex sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.LegacyNewDecFromInt(scaled).Mul(borrowIndex).QuoRoundUp(ScalingFactor).Ceil().TruncateInt()
}
