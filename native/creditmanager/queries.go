package creditmanager

import (
	sdkmath "cosmossdk.io/math"

	"redbank/native/coin"
	"redbank/native/health"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 30
)

func clampLimit(limit uint32) int {
	if limit == 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return int(limit)
}

// AccountPositions reports the full composite position of one account with
// share positions valued at present underlying amounts.
func (e *Engine) AccountPositions(accountID string) (Positions, error) {
	if err := e.ready(); err != nil {
		return Positions{}, err
	}
	kind, err := e.state.GetAccountKind(accountID)
	if err != nil {
		return Positions{}, err
	}
	if kind == "" {
		return Positions{}, ErrAccountNotFound
	}
	out := Positions{AccountID: accountID, Kind: kind}

	err = e.state.DepositsRange(accountID, "", func(denom string, amount sdkmath.Int) bool {
		out.Deposits = coin.Add(out.Deposits, coin.Coin{Denom: denom, Amount: amount})
		return true
	})
	if err != nil {
		return Positions{}, err
	}
	err = e.state.StakedLPRange(accountID, "", func(denom string, amount sdkmath.Int) bool {
		out.StakedLP = coin.Add(out.StakedLP, coin.Coin{Denom: denom, Amount: amount})
		return true
	})
	if err != nil {
		return Positions{}, err
	}

	var rangeErr error
	err = e.state.DebtSharesRange(accountID, "", func(denom string, shares sdkmath.Int) bool {
		_, amount, derr := e.accountDebt(accountID, denom)
		if derr != nil {
			rangeErr = derr
			return false
		}
		out.Debts = append(out.Debts, SharesPosition{Denom: denom, Shares: shares, Amount: amount})
		return true
	})
	if err != nil {
		return Positions{}, err
	}
	if rangeErr != nil {
		return Positions{}, rangeErr
	}

	err = e.state.LentSharesRange(accountID, "", func(denom string, shares sdkmath.Int) bool {
		_, amount, lerr := e.accountLent(accountID, denom)
		if lerr != nil {
			rangeErr = lerr
			return false
		}
		out.Lends = append(out.Lends, SharesPosition{Denom: denom, Shares: shares, Amount: amount})
		return true
	})
	if err != nil {
		return Positions{}, err
	}
	if rangeErr != nil {
		return Positions{}, rangeErr
	}

	err = e.state.VaultPositionsRange(accountID, "", func(pos *VaultPosition) bool {
		out.Vaults = append(out.Vaults, *pos.Clone())
		return true
	})
	if err != nil {
		return Positions{}, err
	}
	return out, nil
}

// AccountHealth evaluates an account's health factors at spot pricing.
func (e *Engine) AccountHealth(accountID string) (health.Health, error) {
	if err := e.ready(); err != nil {
		return health.Health{}, err
	}
	return e.accountHealth(accountID, false)
}

// VaultPositions lists an account's vault positions ordered by vault
// address, starting after the given address when non-empty.
func (e *Engine) VaultPositions(accountID, startAfter string, limit uint32) ([]VaultPosition, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	page := clampLimit(limit)
	out := make([]VaultPosition, 0, page)
	err := e.state.VaultPositionsRange(accountID, startAfter, func(pos *VaultPosition) bool {
		out = append(out, *pos.Clone())
		return len(out) < page
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DebtSharePoolOf reports the total share denominator for a debt denom.
func (e *Engine) DebtSharePoolOf(denom string) (SharePool, error) {
	if err := e.ready(); err != nil {
		return SharePool{}, err
	}
	pool, err := e.debtSharePool(denom)
	if err != nil {
		return SharePool{}, err
	}
	return *pool, nil
}

// LentSharePoolOf reports the total share denominator for a lent denom.
func (e *Engine) LentSharePoolOf(denom string) (SharePool, error) {
	if err := e.ready(); err != nil {
		return SharePool{}, err
	}
	pool, err := e.lentSharePool(denom)
	if err != nil {
		return SharePool{}, err
	}
	return *pool, nil
}
