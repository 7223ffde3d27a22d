package state

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"redbank/native/redbank"
)

type storedMarket struct {
	Denom                 string
	ReserveFactor         string
	OptimalUtilization    string
	Base                  string
	Slope1                string
	Slope2                string
	BorrowIndex           string
	LiquidityIndex        string
	BorrowRate            string
	LiquidityRate         string
	IndexesLastUpdated    uint64
	CollateralTotalScaled string
	DebtTotalScaled       string
}

type storedCollateral struct {
	Denom        string
	AmountScaled string
	Enabled      bool
}

type storedDebt struct {
	Denom            string
	AmountScaled     string
	Uncollateralized bool
}

func (m *Manager) GetMarket(denom string) (*redbank.Market, error) {
	raw, err := m.get(storageKey(prefixMarket, denom))
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeMarket(raw)
}

func (m *Manager) PutMarket(market *redbank.Market) error {
	stored := storedMarket{
		Denom:                 market.Denom,
		ReserveFactor:         encodeDec(market.ReserveFactor),
		OptimalUtilization:    encodeDec(market.Model.OptimalUtilization),
		Base:                  encodeDec(market.Model.Base),
		Slope1:                encodeDec(market.Model.Slope1),
		Slope2:                encodeDec(market.Model.Slope2),
		BorrowIndex:           encodeDec(market.BorrowIndex),
		LiquidityIndex:        encodeDec(market.LiquidityIndex),
		BorrowRate:            encodeDec(market.BorrowRate),
		LiquidityRate:         encodeDec(market.LiquidityRate),
		IndexesLastUpdated:    market.IndexesLastUpdated,
		CollateralTotalScaled: encodeInt(market.CollateralTotalScaled),
		DebtTotalScaled:       encodeInt(market.DebtTotalScaled),
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixMarket, market.Denom), raw)
}

func (m *Manager) MarketsRange(start string, fn func(market *redbank.Market) bool) error {
	var startKey []byte
	if start != "" {
		startKey = storageKey(prefixMarket, start)
	}
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefixMarket), startKey, func(key, value []byte) bool {
		market, derr := decodeMarket(value)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(market)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func decodeMarket(raw []byte) (*redbank.Market, error) {
	var stored storedMarket
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	market := &redbank.Market{Denom: stored.Denom, IndexesLastUpdated: stored.IndexesLastUpdated}
	var err error
	if market.ReserveFactor, err = decodeDec(stored.ReserveFactor); err != nil {
		return nil, err
	}
	if market.Model.OptimalUtilization, err = decodeDec(stored.OptimalUtilization); err != nil {
		return nil, err
	}
	if market.Model.Base, err = decodeDec(stored.Base); err != nil {
		return nil, err
	}
	if market.Model.Slope1, err = decodeDec(stored.Slope1); err != nil {
		return nil, err
	}
	if market.Model.Slope2, err = decodeDec(stored.Slope2); err != nil {
		return nil, err
	}
	if market.BorrowIndex, err = decodeDec(stored.BorrowIndex); err != nil {
		return nil, err
	}
	if market.LiquidityIndex, err = decodeDec(stored.LiquidityIndex); err != nil {
		return nil, err
	}
	if market.BorrowRate, err = decodeDec(stored.BorrowRate); err != nil {
		return nil, err
	}
	if market.LiquidityRate, err = decodeDec(stored.LiquidityRate); err != nil {
		return nil, err
	}
	if market.CollateralTotalScaled, err = decodeInt(stored.CollateralTotalScaled); err != nil {
		return nil, err
	}
	if market.DebtTotalScaled, err = decodeInt(stored.DebtTotalScaled); err != nil {
		return nil, err
	}
	return market, nil
}

func (m *Manager) GetCollateral(user, accountID, denom string) (*redbank.Collateral, error) {
	raw, err := m.get(storageKey(prefixCollateral, user, accountID, denom))
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeCollateral(raw)
}

func (m *Manager) PutCollateral(user, accountID string, col *redbank.Collateral) error {
	stored := storedCollateral{
		Denom:        col.Denom,
		AmountScaled: encodeInt(col.AmountScaled),
		Enabled:      col.Enabled,
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixCollateral, user, accountID, col.Denom), raw)
}

func (m *Manager) DeleteCollateral(user, accountID, denom string) error {
	return m.db.Delete(storageKey(prefixCollateral, user, accountID, denom))
}

func (m *Manager) CollateralsRange(user, accountID, start string, fn func(col *redbank.Collateral) bool) error {
	var startKey []byte
	if start != "" {
		startKey = storageKey(prefixCollateral, user, accountID, start)
	}
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefixCollateral, user, accountID), startKey, func(key, value []byte) bool {
		col, derr := decodeCollateral(value)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(col)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func decodeCollateral(raw []byte) (*redbank.Collateral, error) {
	var stored storedCollateral
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	amount, err := decodeInt(stored.AmountScaled)
	if err != nil {
		return nil, err
	}
	return &redbank.Collateral{Denom: stored.Denom, AmountScaled: amount, Enabled: stored.Enabled}, nil
}

func (m *Manager) GetDebt(user, denom string) (*redbank.Debt, error) {
	raw, err := m.get(storageKey(prefixDebt, user, denom))
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeDebt(raw)
}

func (m *Manager) PutDebt(user string, debt *redbank.Debt) error {
	stored := storedDebt{
		Denom:            debt.Denom,
		AmountScaled:     encodeInt(debt.AmountScaled),
		Uncollateralized: debt.Uncollateralized,
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixDebt, user, debt.Denom), raw)
}

func (m *Manager) DeleteDebt(user, denom string) error {
	return m.db.Delete(storageKey(prefixDebt, user, denom))
}

func (m *Manager) DebtsRange(user, start string, fn func(debt *redbank.Debt) bool) error {
	var startKey []byte
	if start != "" {
		startKey = storageKey(prefixDebt, user, start)
	}
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefixDebt, user), startKey, func(key, value []byte) bool {
		debt, derr := decodeDebt(value)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(debt)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func decodeDebt(raw []byte) (*redbank.Debt, error) {
	var stored storedDebt
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	amount, err := decodeInt(stored.AmountScaled)
	if err != nil {
		return nil, err
	}
	return &redbank.Debt{Denom: stored.Denom, AmountScaled: amount, Uncollateralized: stored.Uncollateralized}, nil
}

func (m *Manager) GetUncollateralizedLimit(user, denom string) (sdkmath.Int, error) {
	raw, err := m.get(storageKey(prefixCreditLine, user, denom))
	if err != nil {
		return sdkmath.Int{}, err
	}
	if raw == nil {
		return sdkmath.ZeroInt(), nil
	}
	var stored string
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return sdkmath.Int{}, err
	}
	return decodeInt(stored)
}

func (m *Manager) PutUncollateralizedLimit(user, denom string, limit sdkmath.Int) error {
	raw, err := rlp.EncodeToBytes(encodeInt(limit))
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixCreditLine, user, denom), raw)
}
