package coin

import (
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
)

// Coin pairs a denom with a non-negative integer amount.
type Coin struct {
	Denom  string
	Amount sdkmath.Int
}

// New builds a coin from an int64 amount.
func New(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: sdkmath.NewInt(amount)}
}

// IsPositive reports whether the amount is set and greater than zero.
func (c Coin) IsPositive() bool {
	return !c.Amount.IsNil() && c.Amount.IsPositive()
}

func (c Coin) String() string {
	return fmt.Sprintf("%s%s", c.Amount, c.Denom)
}

// Add merges a coin into the slice, summing amounts per denom and keeping the
// slice sorted by denom. Zero coins are dropped.
func Add(coins []Coin, add Coin) []Coin {
	if !add.IsPositive() {
		return coins
	}
	for i := range coins {
		if coins[i].Denom == add.Denom {
			coins[i].Amount = coins[i].Amount.Add(add.Amount)
			return coins
		}
	}
	coins = append(coins, add)
	sort.Slice(coins, func(i, j int) bool { return coins[i].Denom < coins[j].Denom })
	return coins
}

// AmountOf returns the amount held for denom, zero when absent.
func AmountOf(coins []Coin, denom string) sdkmath.Int {
	for _, c := range coins {
		if c.Denom == denom {
			return c.Amount
		}
	}
	return sdkmath.ZeroInt()
}
