package redbank

import sdkmath "cosmossdk.io/math"

// SecondsPerYear is the accrual period the APR parameters are quoted against.
const SecondsPerYear = 31_536_000

// AdvanceIndices rolls both cumulative indices forward to now using the rates
// fixed at the last refresh. No-op when no time has passed. Indices are
// monotonically non-decreasing because rates are never negative.
func AdvanceIndices(m *Market, now uint64) {
	if m == nil || now <= m.IndexesLastUpdated {
		return
	}
	dt := now - m.IndexesLastUpdated
	m.BorrowIndex = advancedIndex(m.BorrowIndex, m.BorrowRate, dt)
	m.LiquidityIndex = advancedIndex(m.LiquidityIndex, m.LiquidityRate, dt)
	m.IndexesLastUpdated = now
}

// advancedIndex applies simple interest over dt seconds: index * (1 + rate*dt/T).
func advancedIndex(index, rate sdkmath.LegacyDec, dt uint64) sdkmath.LegacyDec {
	if rate.IsNil() || rate.IsZero() || dt == 0 {
		return index
	}
	growth := rate.MulInt64(int64(dt)).QuoInt64(SecondsPerYear)
	return index.Mul(sdkmath.LegacyOneDec().Add(growth))
}

// UpdateRates refreshes the borrow and liquidity rates from the kinked model
// at the given utilization. Must run after amount arithmetic so the rates
// reflect the post-operation pool shape.
func UpdateRates(m *Market, utilization sdkmath.LegacyDec) {
	if m == nil {
		return
	}
	one := sdkmath.LegacyOneDec()
	optimal := m.Model.OptimalUtilization

	var borrowRate sdkmath.LegacyDec
	switch {
	case utilization.IsZero():
		borrowRate = m.Model.Base
	case utilization.LTE(optimal):
		borrowRate = m.Model.Base.Add(m.Model.Slope1.Mul(utilization.Quo(optimal)))
	case optimal.Equal(one):
		// Kink at full utilization: the second slope never engages.
		borrowRate = m.Model.Base.Add(m.Model.Slope1)
	default:
		excess := utilization.Sub(optimal).Quo(one.Sub(optimal))
		borrowRate = m.Model.Base.Add(m.Model.Slope1).Add(m.Model.Slope2.Mul(excess))
	}

	m.BorrowRate = borrowRate
	m.LiquidityRate = borrowRate.Mul(utilization).Mul(one.Sub(m.ReserveFactor))
}

// Utilization computes underlying_debt / (underlying_debt + available)
// against a market whose indices are already advanced. Zero when the market
// is empty.
func Utilization(m *Market, availableLiquidity sdkmath.Int) sdkmath.LegacyDec {
	debt := UnderlyingDebtAmount(m.DebtTotalScaled, m.BorrowIndex)
	total := debt.Add(availableLiquidity)
	if !total.IsPositive() {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromInt(debt).Quo(sdkmath.LegacyNewDecFromInt(total))
}
