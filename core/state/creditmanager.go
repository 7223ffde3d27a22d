package state

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"redbank/native/creditmanager"
)

type storedUnlockingSlot struct {
	ID          uint64
	Amount      string
	ReleaseTime uint64
}

type storedVaultPosition struct {
	VaultAddr string
	Unlocked  string
	Locked    string
	Unlocking []storedUnlockingSlot
}

type storedSharePool struct {
	Denom       string
	TotalShares string
}

func (m *Manager) NextAccountSequence() (uint64, error) {
	return m.nextSequence([]byte(keyAccountSequence))
}

func (m *Manager) NextUnlockID() (uint64, error) {
	return m.nextSequence([]byte(keyUnlockSequence))
}

func (m *Manager) GetAccountKind(accountID string) (creditmanager.AccountKind, error) {
	raw, err := m.get(storageKey(prefixAccountKind, accountID))
	if err != nil || raw == nil {
		return "", err
	}
	var stored string
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return "", err
	}
	return creditmanager.AccountKind(stored), nil
}

func (m *Manager) PutAccountKind(accountID string, kind creditmanager.AccountKind) error {
	raw, err := rlp.EncodeToBytes(string(kind))
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixAccountKind, accountID), raw)
}

// amount-per-segment helpers shared by the deposit, share and staked LP maps

func (m *Manager) getAmount(prefix, accountID, denom string) (sdkmath.Int, error) {
	raw, err := m.get(storageKey(prefix, accountID, denom))
	if err != nil || raw == nil {
		return sdkmath.Int{}, err
	}
	var stored string
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return sdkmath.Int{}, err
	}
	return decodeInt(stored)
}

func (m *Manager) putAmount(prefix, accountID, denom string, amount sdkmath.Int) error {
	raw, err := rlp.EncodeToBytes(encodeInt(amount))
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefix, accountID, denom), raw)
}

func (m *Manager) rangeAmounts(prefix, accountID, start string, fn func(denom string, amount sdkmath.Int) bool) error {
	var startKey []byte
	if start != "" {
		startKey = storageKey(prefix, accountID, start)
	}
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefix, accountID), startKey, func(key, value []byte) bool {
		var stored string
		if derr := rlp.DecodeBytes(value, &stored); derr != nil {
			rangeErr = derr
			return false
		}
		amount, derr := decodeInt(stored)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(lastSegment(key), amount)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func (m *Manager) GetDeposit(accountID, denom string) (sdkmath.Int, error) {
	return m.getAmount(prefixCmDeposit, accountID, denom)
}

func (m *Manager) PutDeposit(accountID, denom string, amount sdkmath.Int) error {
	return m.putAmount(prefixCmDeposit, accountID, denom, amount)
}

func (m *Manager) DeleteDeposit(accountID, denom string) error {
	return m.db.Delete(storageKey(prefixCmDeposit, accountID, denom))
}

func (m *Manager) DepositsRange(accountID, start string, fn func(denom string, amount sdkmath.Int) bool) error {
	return m.rangeAmounts(prefixCmDeposit, accountID, start, fn)
}

func (m *Manager) GetDebtShares(accountID, denom string) (sdkmath.Int, error) {
	return m.getAmount(prefixCmDebtShares, accountID, denom)
}

func (m *Manager) PutDebtShares(accountID, denom string, shares sdkmath.Int) error {
	return m.putAmount(prefixCmDebtShares, accountID, denom, shares)
}

func (m *Manager) DeleteDebtShares(accountID, denom string) error {
	return m.db.Delete(storageKey(prefixCmDebtShares, accountID, denom))
}

func (m *Manager) DebtSharesRange(accountID, start string, fn func(denom string, shares sdkmath.Int) bool) error {
	return m.rangeAmounts(prefixCmDebtShares, accountID, start, fn)
}

func (m *Manager) GetLentShares(accountID, denom string) (sdkmath.Int, error) {
	return m.getAmount(prefixCmLentShares, accountID, denom)
}

func (m *Manager) PutLentShares(accountID, denom string, shares sdkmath.Int) error {
	return m.putAmount(prefixCmLentShares, accountID, denom, shares)
}

func (m *Manager) DeleteLentShares(accountID, denom string) error {
	return m.db.Delete(storageKey(prefixCmLentShares, accountID, denom))
}

func (m *Manager) LentSharesRange(accountID, start string, fn func(denom string, shares sdkmath.Int) bool) error {
	return m.rangeAmounts(prefixCmLentShares, accountID, start, fn)
}

func (m *Manager) GetStakedLP(accountID, denom string) (sdkmath.Int, error) {
	return m.getAmount(prefixCmStakedLP, accountID, denom)
}

func (m *Manager) PutStakedLP(accountID, denom string, amount sdkmath.Int) error {
	return m.putAmount(prefixCmStakedLP, accountID, denom, amount)
}

func (m *Manager) DeleteStakedLP(accountID, denom string) error {
	return m.db.Delete(storageKey(prefixCmStakedLP, accountID, denom))
}

func (m *Manager) StakedLPRange(accountID, start string, fn func(denom string, amount sdkmath.Int) bool) error {
	return m.rangeAmounts(prefixCmStakedLP, accountID, start, fn)
}

func (m *Manager) GetVaultPosition(accountID, vaultAddr string) (*creditmanager.VaultPosition, error) {
	raw, err := m.get(storageKey(prefixCmVault, accountID, vaultAddr))
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeVaultPosition(raw)
}

func (m *Manager) PutVaultPosition(accountID string, pos *creditmanager.VaultPosition) error {
	stored := storedVaultPosition{
		VaultAddr: pos.VaultAddr,
		Unlocked:  encodeInt(pos.Unlocked),
		Locked:    encodeInt(pos.Locked),
	}
	for _, slot := range pos.Unlocking {
		stored.Unlocking = append(stored.Unlocking, storedUnlockingSlot{
			ID:          slot.ID,
			Amount:      encodeInt(slot.Amount),
			ReleaseTime: slot.ReleaseTime,
		})
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixCmVault, accountID, pos.VaultAddr), raw)
}

func (m *Manager) DeleteVaultPosition(accountID, vaultAddr string) error {
	return m.db.Delete(storageKey(prefixCmVault, accountID, vaultAddr))
}

func (m *Manager) VaultPositionsRange(accountID, start string, fn func(pos *creditmanager.VaultPosition) bool) error {
	var startKey []byte
	if start != "" {
		startKey = storageKey(prefixCmVault, accountID, start)
	}
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefixCmVault, accountID), startKey, func(key, value []byte) bool {
		pos, derr := decodeVaultPosition(value)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(pos)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func decodeVaultPosition(raw []byte) (*creditmanager.VaultPosition, error) {
	var stored storedVaultPosition
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	pos := &creditmanager.VaultPosition{VaultAddr: stored.VaultAddr}
	var err error
	if pos.Unlocked, err = decodeInt(stored.Unlocked); err != nil {
		return nil, err
	}
	if pos.Locked, err = decodeInt(stored.Locked); err != nil {
		return nil, err
	}
	for _, slot := range stored.Unlocking {
		amount, derr := decodeInt(slot.Amount)
		if derr != nil {
			return nil, derr
		}
		pos.Unlocking = append(pos.Unlocking, creditmanager.UnlockingSlot{
			ID:          slot.ID,
			Amount:      amount,
			ReleaseTime: slot.ReleaseTime,
		})
	}
	return pos, nil
}

func (m *Manager) getSharePool(prefix, denom string) (*creditmanager.SharePool, error) {
	raw, err := m.get(storageKey(prefix, denom))
	if err != nil || raw == nil {
		return nil, err
	}
	var stored storedSharePool
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	total, err := decodeInt(stored.TotalShares)
	if err != nil {
		return nil, err
	}
	return &creditmanager.SharePool{Denom: stored.Denom, TotalShares: total}, nil
}

func (m *Manager) putSharePool(prefix string, pool *creditmanager.SharePool) error {
	stored := storedSharePool{Denom: pool.Denom, TotalShares: encodeInt(pool.TotalShares)}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefix, pool.Denom), raw)
}

func (m *Manager) GetDebtSharePool(denom string) (*creditmanager.SharePool, error) {
	return m.getSharePool(prefixDebtSharePool, denom)
}

func (m *Manager) PutDebtSharePool(pool *creditmanager.SharePool) error {
	return m.putSharePool(prefixDebtSharePool, pool)
}

func (m *Manager) GetLentSharePool(denom string) (*creditmanager.SharePool, error) {
	return m.getSharePool(prefixLentSharePool, denom)
}

func (m *Manager) PutLentSharePool(pool *creditmanager.SharePool) error {
	return m.putSharePool(prefixLentSharePool, pool)
}
