package creditmanager

import sdkmath "cosmossdk.io/math"

// defaultSharesPerCoin seeds an empty share pool: the first participant in a
// denom receives exactly this many shares per coin, independent of the
// prevailing underlying-per-share ratio in the money market.
var defaultSharesPerCoin = sdkmath.NewInt(1_000_000)

// sharesForAmount converts an underlying amount into pool shares. An empty
// pool is seeded at the default ratio. roundUp selects the direction that
// favors the pool: up when minting debt shares, down when minting lent
// shares.
func sharesForAmount(totalShares, totalUnderlying, amount sdkmath.Int, roundUp bool) sdkmath.Int {
	if !totalShares.IsPositive() || !totalUnderlying.IsPositive() {
		return amount.Mul(defaultSharesPerCoin)
	}
	num := sdkmath.LegacyNewDecFromInt(totalShares.Mul(amount))
	den := sdkmath.LegacyNewDecFromInt(totalUnderlying)
	if roundUp {
		return num.QuoRoundUp(den).Ceil().TruncateInt()
	}
	return num.QuoTruncate(den).TruncateInt()
}

// amountForShares converts pool shares back into underlying. roundUp selects
// the direction that favors the pool: up when valuing debt owed, down when
// valuing lent holdings.
func amountForShares(shares, totalShares, totalUnderlying sdkmath.Int, roundUp bool) sdkmath.Int {
	if !totalShares.IsPositive() {
		return sdkmath.ZeroInt()
	}
	num := sdkmath.LegacyNewDecFromInt(shares.Mul(totalUnderlying))
	den := sdkmath.LegacyNewDecFromInt(totalShares)
	if roundUp {
		return num.QuoRoundUp(den).Ceil().TruncateInt()
	}
	return num.QuoTruncate(den).TruncateInt()
}
