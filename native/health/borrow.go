package health

import (
	sdkmath "cosmossdk.io/math"
)

// BorrowTarget names where a hypothetical borrow would land, which changes
// how much of the borrowed value feeds back into collateral.
type BorrowTarget int

const (
	// TargetWallet withdraws the borrowed coins out of the account.
	TargetWallet BorrowTarget = iota
	// TargetDeposit re-deposits the borrowed coins as collateral.
	TargetDeposit
	// TargetVault places the borrowed coins into a vault position.
	TargetVault
)

// MaxBorrowEstimate solves for the largest borrow amount of a denom that
// keeps the max-LTV health factor at or above one. collateralLTV is the
// max LTV credited to the borrowed coins at their destination: the borrow
// denom's own LTV for TargetDeposit, the vault's LTV for TargetVault,
// ignored for TargetWallet. Returns zero when the account is already above
// max LTV or the inputs leave no headroom.
func MaxBorrowEstimate(h Health, price, collateralLTV sdkmath.LegacyDec, target BorrowTarget) sdkmath.Int {
	if h.IsAboveMaxLtv() || price.IsNil() || !price.IsPositive() {
		return sdkmath.ZeroInt()
	}
	headroom := h.MaxLtvAdjustedCollateral.Sub(h.TotalDebtValue)
	if !headroom.IsPositive() {
		return sdkmath.ZeroInt()
	}

	switch target {
	case TargetWallet:
		// Each borrowed unit only adds debt value.
		return headroom.QuoTruncate(price).TruncateInt()
	case TargetDeposit, TargetVault:
		// Each borrowed unit adds price of debt but credits price*ltv of
		// collateral, so the divisor shrinks by the destination LTV.
		oneMinusLtv := sdkmath.LegacyOneDec().Sub(collateralLTV)
		if !oneMinusLtv.IsPositive() {
			return sdkmath.ZeroInt()
		}
		divisor := price.Mul(oneMinusLtv)
		if !divisor.IsPositive() {
			return sdkmath.ZeroInt()
		}
		return headroom.QuoTruncate(divisor).TruncateInt()
	default:
		return sdkmath.ZeroInt()
	}
}
