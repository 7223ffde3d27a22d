package redbank

import (
	sdkmath "cosmossdk.io/math"

	"redbank/native/health"
)

const (
	defaultMarketPageLimit = 5
	maxMarketPageLimit     = 10
	defaultUserPageLimit   = 10
	maxUserPageLimit       = 30
)

func clampLimit(limit, def, max uint32) int {
	if limit == 0 {
		return int(def)
	}
	if limit > max {
		return int(max)
	}
	return int(limit)
}

// CollateralResponse is a collateral position reported in both scaled and
// present underlying terms.
type CollateralResponse struct {
	Denom        string
	AmountScaled sdkmath.Int
	Amount       sdkmath.Int
	Enabled      bool
}

// DebtResponse is a debt position reported in both scaled and present
// underlying terms.
type DebtResponse struct {
	Denom            string
	AmountScaled     sdkmath.Int
	Amount           sdkmath.Int
	Uncollateralized bool
}

// PositionResponse aggregates a user's priced positions and health factors.
type PositionResponse struct {
	Collaterals []CollateralResponse
	Debts       []DebtResponse
	Health      health.Health
}

// Market returns the market for denom with indices and rates projected to the
// current block time. The stored market is not modified.
func (e *Engine) Market(denom string) (*Market, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	market, err := e.ensureMarket(denom)
	if err != nil {
		return nil, err
	}
	return e.projected(market), nil
}

// Markets lists markets ordered by denom, starting after the given denom when
// non-empty. Limit zero applies the default page size.
func (e *Engine) Markets(startAfter string, limit uint32) ([]*Market, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	page := clampLimit(limit, defaultMarketPageLimit, maxMarketPageLimit)
	out := make([]*Market, 0, page)
	err := e.state.MarketsRange(startAfter, func(market *Market) bool {
		out = append(out, e.projected(market))
		return len(out) < page
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UserCollateral returns a single collateral position in present terms. The
// response carries zero amounts when no position exists.
func (e *Engine) UserCollateral(user, accountID, denom string) (CollateralResponse, error) {
	if err := e.ready(); err != nil {
		return CollateralResponse{}, err
	}
	col, err := e.state.GetCollateral(user, accountID, denom)
	if err != nil {
		return CollateralResponse{}, err
	}
	if col == nil {
		return CollateralResponse{Denom: denom, AmountScaled: sdkmath.ZeroInt(), Amount: sdkmath.ZeroInt()}, nil
	}
	market, err := e.ensureMarket(denom)
	if err != nil {
		return CollateralResponse{}, err
	}
	return e.collateralResponse(col, market), nil
}

// UserCollaterals lists a user's collateral positions ordered by denom.
func (e *Engine) UserCollaterals(user, accountID, startAfter string, limit uint32) ([]CollateralResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	page := clampLimit(limit, defaultUserPageLimit, maxUserPageLimit)
	out := make([]CollateralResponse, 0, page)
	var rangeErr error
	err := e.state.CollateralsRange(user, accountID, startAfter, func(col *Collateral) bool {
		market, merr := e.state.GetMarket(col.Denom)
		if merr != nil {
			rangeErr = merr
			return false
		}
		if market == nil {
			out = append(out, CollateralResponse{
				Denom:        col.Denom,
				AmountScaled: col.AmountScaled,
				Amount:       sdkmath.ZeroInt(),
				Enabled:      col.Enabled,
			})
		} else {
			out = append(out, e.collateralResponse(col, market))
		}
		return len(out) < page
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}
	return out, nil
}

// UserDebt returns a single debt position in present terms. The response
// carries zero amounts when no debt exists.
func (e *Engine) UserDebt(user, denom string) (DebtResponse, error) {
	if err := e.ready(); err != nil {
		return DebtResponse{}, err
	}
	debt, err := e.state.GetDebt(user, denom)
	if err != nil {
		return DebtResponse{}, err
	}
	if debt == nil {
		return DebtResponse{Denom: denom, AmountScaled: sdkmath.ZeroInt(), Amount: sdkmath.ZeroInt()}, nil
	}
	market, err := e.ensureMarket(denom)
	if err != nil {
		return DebtResponse{}, err
	}
	return e.debtResponse(debt, market), nil
}

// UserDebts lists a user's debt positions ordered by denom.
func (e *Engine) UserDebts(user, startAfter string, limit uint32) ([]DebtResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	page := clampLimit(limit, defaultUserPageLimit, maxUserPageLimit)
	out := make([]DebtResponse, 0, page)
	var rangeErr error
	err := e.state.DebtsRange(user, startAfter, func(debt *Debt) bool {
		market, merr := e.state.GetMarket(debt.Denom)
		if merr != nil {
			rangeErr = merr
			return false
		}
		if market == nil {
			out = append(out, DebtResponse{
				Denom:            debt.Denom,
				AmountScaled:     debt.AmountScaled,
				Amount:           sdkmath.ZeroInt(),
				Uncollateralized: debt.Uncollateralized,
			})
		} else {
			out = append(out, e.debtResponse(debt, market))
		}
		return len(out) < page
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}
	return out, nil
}

// UserPosition reports all of a user's positions alongside their computed
// health factors at spot pricing.
func (e *Engine) UserPosition(user, accountID string) (PositionResponse, error) {
	if err := e.ready(); err != nil {
		return PositionResponse{}, err
	}
	collaterals, err := e.UserCollaterals(user, accountID, "", maxUserPageLimit)
	if err != nil {
		return PositionResponse{}, err
	}
	debts, err := e.UserDebts(user, "", maxUserPageLimit)
	if err != nil {
		return PositionResponse{}, err
	}
	positions, err := e.accountPositions(user, accountID, false, nil)
	if err != nil {
		return PositionResponse{}, err
	}
	h, err := health.Compute(positions)
	if err != nil {
		return PositionResponse{}, err
	}
	return PositionResponse{Collaterals: collaterals, Debts: debts, Health: h}, nil
}

// UncollateralizedLimit returns the delegated credit line for user in denom,
// zero when none is set.
func (e *Engine) UncollateralizedLimit(user, denom string) (sdkmath.Int, error) {
	if err := e.ready(); err != nil {
		return sdkmath.Int{}, err
	}
	limit, err := e.state.GetUncollateralizedLimit(user, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if limit.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	return limit, nil
}

// ScaledBalances walks the user's collateral positions, yielding each scaled
// balance alongside the market's scaled total. Reward accrual uses this to
// realize pending emissions without a balance mutation.
func (e *Engine) ScaledBalances(user, accountID string, fn func(denom string, amountScaled, totalScaled sdkmath.Int) bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	var rangeErr error
	err := e.state.CollateralsRange(user, accountID, "", func(col *Collateral) bool {
		market, merr := e.state.GetMarket(col.Denom)
		if merr != nil {
			rangeErr = merr
			return false
		}
		totalScaled := sdkmath.ZeroInt()
		if market != nil {
			totalScaled = market.CollateralTotalScaled
		}
		return fn(col.Denom, col.AmountScaled, totalScaled)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func (e *Engine) projected(market *Market) *Market {
	m := market.Clone()
	AdvanceIndices(m, e.blockTime)
	return m
}

func (e *Engine) collateralResponse(col *Collateral, market *Market) CollateralResponse {
	m := e.projected(market)
	return CollateralResponse{
		Denom:        col.Denom,
		AmountScaled: col.AmountScaled,
		Amount:       UnderlyingLiquidityAmount(col.AmountScaled, m.LiquidityIndex),
		Enabled:      col.Enabled,
	}
}

func (e *Engine) debtResponse(debt *Debt, market *Market) DebtResponse {
	m := e.projected(market)
	return DebtResponse{
		Denom:            debt.Denom,
		AmountScaled:     debt.AmountScaled,
		Amount:           UnderlyingDebtAmount(debt.AmountScaled, m.BorrowIndex),
		Uncollateralized: debt.Uncollateralized,
	}
}
