package creditmanager

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"redbank/native/coin"
)

func (e *Engine) vaultPosition(accountID, vaultAddr string) (*VaultPosition, error) {
	pos, err := e.state.GetVaultPosition(accountID, vaultAddr)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &VaultPosition{
			VaultAddr: vaultAddr,
			Unlocked:  sdkmath.ZeroInt(),
			Locked:    sdkmath.ZeroInt(),
		}
	}
	return pos, nil
}

func (e *Engine) putOrDropVaultPosition(accountID string, pos *VaultPosition) error {
	if pos.Unlocked.IsZero() && pos.Locked.IsZero() && len(pos.Unlocking) == 0 {
		return e.state.DeleteVaultPosition(accountID, pos.VaultAddr)
	}
	return e.state.PutVaultPosition(accountID, pos)
}

func (e *Engine) actionEnterVault(ctx *batchContext, a EnterVaultAction) error {
	if !a.Coin.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "enter vault")
	}
	if err := e.guardAddress(a.VaultAddr); err != nil {
		return err
	}
	cfg, err := e.params.VaultConfig(a.VaultAddr)
	if err != nil {
		return err
	}
	if !cfg.Whitelisted {
		return errorsmod.Wrapf(ErrNotWhitelisted, "vault %s", a.VaultAddr)
	}
	if err := e.debitDeposit(ctx.accountID, a.Coin.Denom, a.Coin.Amount); err != nil {
		return err
	}

	shares, err := e.vaults.Deposit(a.VaultAddr, a.Coin)
	if err != nil {
		return err
	}
	if !shares.IsPositive() {
		return errorsmod.Wrapf(ErrMissingVaultValue, "vault %s minted no shares", a.VaultAddr)
	}
	lockup, err := e.vaults.Lockup(a.VaultAddr)
	if err != nil {
		return err
	}

	pos, err := e.vaultPosition(ctx.accountID, a.VaultAddr)
	if err != nil {
		return err
	}
	if lockup > 0 {
		pos.Locked = pos.Locked.Add(shares)
	} else {
		pos.Unlocked = pos.Unlocked.Add(shares)
	}
	return e.state.PutVaultPosition(ctx.accountID, pos)
}

func (e *Engine) actionExitVault(ctx *batchContext, a ExitVaultAction) error {
	if a.Amount.IsNil() || !a.Amount.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "exit vault")
	}
	pos, err := e.state.GetVaultPosition(ctx.accountID, a.VaultAddr)
	if err != nil {
		return err
	}
	if pos == nil {
		return errorsmod.Wrapf(ErrVaultAccountNotFound, "vault %s", a.VaultAddr)
	}
	if pos.Unlocked.LT(a.Amount) {
		return errorsmod.Wrapf(ErrInsufficientFunds,
			"vault %s unlocked %s, need %s", a.VaultAddr, pos.Unlocked, a.Amount)
	}
	pos.Unlocked = pos.Unlocked.Sub(a.Amount)
	if err := e.putOrDropVaultPosition(ctx.accountID, pos); err != nil {
		return err
	}
	return e.redeemVaultShares(ctx, a.VaultAddr, a.Amount)
}

func (e *Engine) actionRequestVaultUnlock(ctx *batchContext, a RequestVaultUnlockAction) error {
	if a.Amount.IsNil() || !a.Amount.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "request unlock")
	}
	pos, err := e.state.GetVaultPosition(ctx.accountID, a.VaultAddr)
	if err != nil {
		return err
	}
	if pos == nil {
		return errorsmod.Wrapf(ErrVaultAccountNotFound, "vault %s", a.VaultAddr)
	}
	if pos.Locked.LT(a.Amount) {
		return errorsmod.Wrapf(ErrInsufficientFunds,
			"vault %s locked %s, need %s", a.VaultAddr, pos.Locked, a.Amount)
	}
	lockup, err := e.vaults.Lockup(a.VaultAddr)
	if err != nil {
		return err
	}
	id, err := e.state.NextUnlockID()
	if err != nil {
		return err
	}
	pos.Locked = pos.Locked.Sub(a.Amount)
	pos.Unlocking = append(pos.Unlocking, UnlockingSlot{
		ID:          id,
		Amount:      a.Amount,
		ReleaseTime: e.blockTime + lockup,
	})
	return e.state.PutVaultPosition(ctx.accountID, pos)
}

func (e *Engine) actionWithdrawFromVault(ctx *batchContext, a WithdrawFromVaultAction) error {
	pos, err := e.state.GetVaultPosition(ctx.accountID, a.VaultAddr)
	if err != nil {
		return err
	}
	if pos == nil {
		return errorsmod.Wrapf(ErrVaultAccountNotFound, "vault %s", a.VaultAddr)
	}
	slot := -1
	for i := range pos.Unlocking {
		if pos.Unlocking[i].ID == a.UnlockID {
			slot = i
			break
		}
	}
	if slot < 0 {
		return errorsmod.Wrapf(ErrVaultAccountNotFound, "unlock id %d", a.UnlockID)
	}
	tranche := pos.Unlocking[slot]
	if e.blockTime < tranche.ReleaseTime {
		return errorsmod.Wrapf(ErrUnlockNotReady,
			"unlock id %d matures at %d, now %d", a.UnlockID, tranche.ReleaseTime, e.blockTime)
	}
	pos.Unlocking = append(pos.Unlocking[:slot], pos.Unlocking[slot+1:]...)
	if err := e.putOrDropVaultPosition(ctx.accountID, pos); err != nil {
		return err
	}
	return e.redeemVaultShares(ctx, a.VaultAddr, tranche.Amount)
}

// redeemVaultShares burns vault shares for coins using the two-phase balance
// pattern: the credit lands via the scheduled callback once the external
// call has settled.
func (e *Engine) redeemVaultShares(ctx *batchContext, vaultAddr string, shares sdkmath.Int) error {
	baseDenom, err := e.vaults.BaseDenom(vaultAddr)
	if err != nil {
		return err
	}
	previous, err := e.bank.Balance(e.selfAddress, baseDenom)
	if err != nil {
		return err
	}
	ctx.callbacks = append(ctx.callbacks, UpdateCoinBalance{
		AccountID:       ctx.accountID,
		Denom:           baseDenom,
		PreviousBalance: previous,
		Change:          BalanceIncrease,
	})
	return e.vaults.Withdraw(vaultAddr, shares)
}

// redeemableShares are the shares a forced exit may burn: unlocked shares
// plus matured unlocking tranches.
func (e *Engine) redeemableShares(pos *VaultPosition) sdkmath.Int {
	total := pos.Unlocked
	for _, slot := range pos.Unlocking {
		if slot.ReleaseTime <= e.blockTime {
			total = total.Add(slot.Amount)
		}
	}
	return total
}

// vaultedCollateral values the redeemable vault shares a liquidation may
// force out for denom, across all of the account's vaults with a matching
// base.
func (e *Engine) vaultedCollateral(accountID, denom string) (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	if e.vaults == nil {
		return total, nil
	}
	var rangeErr error
	err := e.state.VaultPositionsRange(accountID, "", func(pos *VaultPosition) bool {
		base, verr := e.vaults.BaseDenom(pos.VaultAddr)
		if verr != nil {
			rangeErr = verr
			return false
		}
		if base != denom {
			return true
		}
		redeemable := e.redeemableShares(pos)
		if !redeemable.IsPositive() {
			return true
		}
		value, verr := e.vaults.PreviewRedeem(pos.VaultAddr, redeemable)
		if verr != nil {
			rangeErr = verr
			return false
		}
		if !value.Amount.IsNil() && value.Amount.IsPositive() {
			total = total.Add(value.Amount)
		}
		return true
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	if rangeErr != nil {
		return sdkmath.Int{}, rangeErr
	}
	return total, nil
}

// forceExitVault burns shares from a position during liquidation, unlocked
// first and matured tranches after, bypassing the owner's exit flow. Returns
// the coins the vault released, measured as the manager's balance delta.
func (e *Engine) forceExitVault(accountID string, pos *VaultPosition, shares sdkmath.Int) (sdkmath.Int, error) {
	left := shares
	fromUnlocked := sdkmath.MinInt(pos.Unlocked, left)
	pos.Unlocked = pos.Unlocked.Sub(fromUnlocked)
	left = left.Sub(fromUnlocked)
	for i := 0; i < len(pos.Unlocking) && left.IsPositive(); {
		slot := pos.Unlocking[i]
		if slot.ReleaseTime > e.blockTime {
			i++
			continue
		}
		take := sdkmath.MinInt(slot.Amount, left)
		left = left.Sub(take)
		if take.Equal(slot.Amount) {
			pos.Unlocking = append(pos.Unlocking[:i], pos.Unlocking[i+1:]...)
		} else {
			pos.Unlocking[i].Amount = slot.Amount.Sub(take)
			i++
		}
	}
	if left.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(ErrInsufficientFunds,
			"vault %s redeemable short %s shares", pos.VaultAddr, left)
	}
	if err := e.putOrDropVaultPosition(accountID, pos); err != nil {
		return sdkmath.Int{}, err
	}

	base, err := e.vaults.BaseDenom(pos.VaultAddr)
	if err != nil {
		return sdkmath.Int{}, err
	}
	previous, err := e.bank.Balance(e.selfAddress, base)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.vaults.Withdraw(pos.VaultAddr, shares); err != nil {
		return sdkmath.Int{}, err
	}
	current, err := e.bank.Balance(e.selfAddress, base)
	if err != nil {
		return sdkmath.Int{}, err
	}
	proceeds := current.Sub(previous)
	if !proceeds.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(ErrMissingVaultValue,
			"vault %s released nothing", pos.VaultAddr)
	}
	return proceeds, nil
}

// vaultValue prices a vault position in its base denom for health purposes.
func (e *Engine) vaultValue(pos *VaultPosition) (coin.Coin, error) {
	total := pos.TotalShares()
	if !total.IsPositive() {
		base, err := e.vaults.BaseDenom(pos.VaultAddr)
		if err != nil {
			return coin.Coin{}, err
		}
		return coin.Coin{Denom: base, Amount: sdkmath.ZeroInt()}, nil
	}
	value, err := e.vaults.PreviewRedeem(pos.VaultAddr, total)
	if err != nil {
		return coin.Coin{}, err
	}
	if value.Amount.IsNil() {
		return coin.Coin{}, errorsmod.Wrapf(ErrMissingVaultValue, "vault %s", pos.VaultAddr)
	}
	return value, nil
}
