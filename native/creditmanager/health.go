package creditmanager

import (
	sdkmath "cosmossdk.io/math"

	"redbank/native/health"
	"redbank/native/params"
)

// riskParams resolves the LTV pair for a denom, applying the HLS override
// when the account runs a high-leverage strategy and an override exists.
func riskParams(p params.AssetParams, hls bool) (maxLtv, threshold sdkmath.LegacyDec) {
	if hls && p.HLS != nil {
		return p.HLS.MaxLoanToValue, p.HLS.LiquidationThreshold
	}
	return p.MaxLoanToValue, p.LiquidationThreshold
}

// accountHealth assembles and evaluates the full composite position of one
// credit account: deposits, staked LP, lent holdings, vault values and debt
// shares.
func (e *Engine) accountHealth(accountID string, liquidationPricing bool) (health.Health, error) {
	positions, err := e.healthPositions(accountID, liquidationPricing)
	if err != nil {
		return health.Health{}, err
	}
	return health.Compute(positions)
}

func (e *Engine) healthPositions(accountID string, liquidationPricing bool) ([]health.Position, error) {
	kind, err := e.state.GetAccountKind(accountID)
	if err != nil {
		return nil, err
	}
	hls := kind == AccountKindHLS

	type side struct {
		collateral sdkmath.Int
		debt       sdkmath.Int
	}
	sides := make(map[string]*side)
	order := make([]string, 0, 8)
	ensure := func(denom string) *side {
		if s, ok := sides[denom]; ok {
			return s
		}
		s := &side{collateral: sdkmath.ZeroInt(), debt: sdkmath.ZeroInt()}
		sides[denom] = s
		order = append(order, denom)
		return s
	}

	err = e.state.DepositsRange(accountID, "", func(denom string, amount sdkmath.Int) bool {
		if amount.IsPositive() {
			s := ensure(denom)
			s.collateral = s.collateral.Add(amount)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	err = e.state.StakedLPRange(accountID, "", func(denom string, amount sdkmath.Int) bool {
		if amount.IsPositive() {
			s := ensure(denom)
			s.collateral = s.collateral.Add(amount)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	var rangeErr error
	err = e.state.LentSharesRange(accountID, "", func(denom string, shares sdkmath.Int) bool {
		_, amount, lerr := e.accountLent(accountID, denom)
		if lerr != nil {
			rangeErr = lerr
			return false
		}
		if amount.IsPositive() {
			s := ensure(denom)
			s.collateral = s.collateral.Add(amount)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}

	err = e.state.DebtSharesRange(accountID, "", func(denom string, shares sdkmath.Int) bool {
		_, amount, derr := e.accountDebt(accountID, denom)
		if derr != nil {
			rangeErr = derr
			return false
		}
		if amount.IsPositive() {
			s := ensure(denom)
			s.debt = s.debt.Add(amount)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}

	positions := make([]health.Position, 0, len(order)+2)
	correlations := make(map[string][]string)
	debtDenoms := make([]string, 0, 2)

	for _, denom := range order {
		s := sides[denom]
		assetParams, perr := e.params.AssetParams(denom)
		if perr != nil {
			return nil, perr
		}
		price, perr := e.priceOf(denom, liquidationPricing)
		if perr != nil {
			return nil, perr
		}
		maxLtv, threshold := riskParams(assetParams, hls)
		positions = append(positions, health.Position{
			Denom:                denom,
			Price:                price,
			CollateralAmount:     s.collateral,
			DebtAmount:           s.debt,
			MaxLTV:               maxLtv,
			LiquidationThreshold: threshold,
		})
		if s.debt.IsPositive() {
			debtDenoms = append(debtDenoms, denom)
		}
		if hls && s.collateral.IsPositive() {
			if assetParams.HLS != nil {
				correlations[denom] = assetParams.HLS.CorrelatedDenoms
			} else {
				correlations[denom] = nil
			}
		}
	}

	// Vault values enter at the vault's own LTV pair against the base denom
	// price.
	if e.vaults != nil {
		err = e.state.VaultPositionsRange(accountID, "", func(pos *VaultPosition) bool {
			value, verr := e.vaultValue(pos)
			if verr != nil {
				rangeErr = verr
				return false
			}
			if !value.Amount.IsPositive() {
				return true
			}
			cfg, verr := e.params.VaultConfig(pos.VaultAddr)
			if verr != nil {
				rangeErr = verr
				return false
			}
			price, verr := e.priceOf(value.Denom, liquidationPricing)
			if verr != nil {
				rangeErr = verr
				return false
			}
			maxLtv := cfg.MaxLoanToValue
			threshold := cfg.LiquidationThreshold
			if hls && cfg.HLS != nil {
				maxLtv = cfg.HLS.MaxLoanToValue
				threshold = cfg.HLS.LiquidationThreshold
			}
			positions = append(positions, health.Position{
				Denom:                value.Denom,
				Price:                price,
				CollateralAmount:     value.Amount,
				DebtAmount:           sdkmath.ZeroInt(),
				MaxLTV:               maxLtv,
				LiquidationThreshold: threshold,
			})
			if hls {
				if cfg.HLS != nil {
					correlations[value.Denom] = cfg.HLS.CorrelatedDenoms
				} else {
					correlations[value.Denom] = nil
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		if rangeErr != nil {
			return nil, rangeErr
		}
	}

	if hls && len(debtDenoms) > 0 {
		if err := health.ValidateCorrelations(correlations, debtDenoms); err != nil {
			return nil, err
		}
	}
	return positions, nil
}

func (e *Engine) priceOf(denom string, liquidationPricing bool) (sdkmath.LegacyDec, error) {
	if liquidationPricing {
		return e.oracle.PriceForLiquidation(denom)
	}
	return e.oracle.Price(denom)
}

// MaxBorrowAmount estimates the largest borrow of denom the account can take
// toward the given target while staying at or below max loan-to-value.
func (e *Engine) MaxBorrowAmount(accountID, denom string, target health.BorrowTarget) (sdkmath.Int, error) {
	if err := e.ready(); err != nil {
		return sdkmath.Int{}, err
	}
	h, err := e.accountHealth(accountID, false)
	if err != nil {
		return sdkmath.Int{}, err
	}
	kind, err := e.state.GetAccountKind(accountID)
	if err != nil {
		return sdkmath.Int{}, err
	}
	assetParams, err := e.params.AssetParams(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	price, err := e.oracle.Price(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	maxLtv, _ := riskParams(assetParams, kind == AccountKindHLS)
	return health.MaxBorrowEstimate(h, price, maxLtv, target), nil
}
