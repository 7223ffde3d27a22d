package creditmanager

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"redbank/native/liquidation"
	"redbank/observability/metrics"
)

// actionLiquidate repays part of an unhealthy target account's debt from the
// executing account and moves discounted collateral the other way. The
// batch-final health assertion covers the executing account; the target only
// ever improves.
func (e *Engine) actionLiquidate(ctx *batchContext, a LiquidateAction) error {
	if a.TargetAccountID == ctx.accountID {
		return ErrSelfLiquidation
	}
	if _, err := e.nft.OwnerOf(a.TargetAccountID); err != nil {
		return errorsmod.Wrapf(ErrAccountNotFound, "%s", a.TargetAccountID)
	}
	if !a.DebtCoin.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "liquidate")
	}

	h, err := e.accountHealth(a.TargetAccountID, true)
	if err != nil {
		return err
	}
	if !h.IsLiquidatable() {
		metrics.Ledger().ObserveLiquidation("not_liquidatable")
		return errorsmod.Wrapf(ErrNotLiquidatable,
			"account %s liquidation_hf %s", a.TargetAccountID, h.LiquidationHealthFactor)
	}

	debtShares, debtOwed, err := e.accountDebt(a.TargetAccountID, a.DebtCoin.Denom)
	if err != nil {
		return err
	}
	if !debtShares.IsPositive() {
		return errorsmod.Wrapf(ErrNoDebt, "account %s owes nothing in %s", a.TargetAccountID, a.DebtCoin.Denom)
	}

	depositHeld, err := e.accountDeposit(a.TargetAccountID, a.CollateralDenom)
	if err != nil {
		return err
	}
	lentShares, lentHeld, err := e.accountLent(a.TargetAccountID, a.CollateralDenom)
	if err != nil {
		return err
	}
	vaultHeld, err := e.vaultedCollateral(a.TargetAccountID, a.CollateralDenom)
	if err != nil {
		return err
	}
	totalCollateral := depositHeld.Add(lentHeld).Add(vaultHeld)
	if !totalCollateral.IsPositive() {
		return errorsmod.Wrapf(ErrInsufficientFunds,
			"account %s holds no %s collateral", a.TargetAccountID, a.CollateralDenom)
	}

	collateralParams, err := e.params.AssetParams(a.CollateralDenom)
	if err != nil {
		return err
	}
	collateralPrice, err := e.oracle.PriceForLiquidation(a.CollateralDenom)
	if err != nil {
		return err
	}
	debtPrice, err := e.oracle.PriceForLiquidation(a.DebtCoin.Denom)
	if err != nil {
		return err
	}

	result, err := liquidation.Calculate(liquidation.Inputs{
		Health:             h,
		CollateralAmount:   totalCollateral,
		CollateralPrice:    collateralPrice,
		CollateralParams:   collateralParams,
		DebtAmount:         debtOwed,
		DebtPrice:          debtPrice,
		RequestedRepay:     a.DebtCoin.Amount,
		TargetHealthFactor: e.targetHealthFactor,
	})
	if err != nil {
		metrics.Ledger().ObserveLiquidation("invalid")
		return err
	}

	// Repay leg: the executing account pays the ledger and the target's debt
	// shares burn.
	if err := e.debitDeposit(ctx.accountID, a.DebtCoin.Denom, result.DebtToRepay); err != nil {
		return err
	}
	pool, err := e.debtSharePool(a.DebtCoin.Denom)
	if err != nil {
		return err
	}
	totalDebt, err := e.moneyMarket.UserDebt(e.selfAddress, a.DebtCoin.Denom)
	if err != nil {
		return err
	}
	refund, err := e.moneyMarket.Repay(e.selfAddress, "", a.DebtCoin.Denom, result.DebtToRepay)
	if err != nil {
		return err
	}
	if refund.IsPositive() {
		if err := e.creditDeposit(ctx.accountID, a.DebtCoin.Denom, refund); err != nil {
			return err
		}
	}
	repaid := result.DebtToRepay.Sub(refund)
	burned := debtShares
	if repaid.LT(debtOwed) {
		burned = sharesForAmount(pool.TotalShares, totalDebt.Amount, repaid, false)
		if burned.GT(debtShares) {
			burned = debtShares
		}
	}
	remaining := debtShares.Sub(burned)
	if remaining.IsZero() {
		if err := e.state.DeleteDebtShares(a.TargetAccountID, a.DebtCoin.Denom); err != nil {
			return err
		}
	} else if err := e.state.PutDebtShares(a.TargetAccountID, a.DebtCoin.Denom, remaining); err != nil {
		return err
	}
	pool.TotalShares = pool.TotalShares.Sub(burned)
	if err := e.state.PutDebtSharePool(pool); err != nil {
		return err
	}

	// Collateral leg: seize deposits first, then reclaim lent funds, then
	// force vault exits for whatever is left.
	seizeRemaining := result.CollateralSeized
	fromDeposits := sdkmath.MinInt(depositHeld, seizeRemaining)
	if fromDeposits.IsPositive() {
		if err := e.debitDeposit(a.TargetAccountID, a.CollateralDenom, fromDeposits); err != nil {
			return err
		}
		seizeRemaining = seizeRemaining.Sub(fromDeposits)
	}
	if seizeRemaining.IsPositive() && lentHeld.IsPositive() {
		fromLent := sdkmath.MinInt(lentHeld, seizeRemaining)
		if err := e.seizeLent(a.TargetAccountID, a.CollateralDenom, fromLent, lentShares, lentHeld); err != nil {
			return err
		}
		seizeRemaining = seizeRemaining.Sub(fromLent)
	}
	if seizeRemaining.IsPositive() {
		if err := e.seizeVaulted(a.TargetAccountID, a.CollateralDenom, seizeRemaining); err != nil {
			return err
		}
	}

	if err := e.creditDeposit(ctx.accountID, a.CollateralDenom, result.CollateralToLiquidator); err != nil {
		return err
	}
	if result.ProtocolFee.IsPositive() {
		if err := e.bank.Send(e.selfAddress, e.feeCollector, a.CollateralDenom, result.ProtocolFee); err != nil {
			return err
		}
	}

	metrics.Ledger().ObserveLiquidation("liquidated")
	e.log().Info("credit account liquidated",
		"target", a.TargetAccountID, "liquidator", ctx.accountID,
		"debt_denom", a.DebtCoin.Denom, "collateral_denom", a.CollateralDenom,
		"debt_repaid", result.DebtToRepay.String(),
		"collateral_seized", result.CollateralSeized.String())
	return nil
}

// seizeLent reclaims the target's lent balance to cover the part of a
// seizure its liquid deposits could not.
func (e *Engine) seizeLent(targetAccountID, denom string, amount, lentShares, lentHeld sdkmath.Int) error {
	if amount.GT(lentHeld) {
		return errorsmod.Wrapf(ErrInsufficientFunds,
			"account %s lent %s %s, need %s", targetAccountID, lentHeld, denom, amount)
	}
	if err := e.settleLendIncentives(targetAccountID, denom, lentShares); err != nil {
		return err
	}
	pool, err := e.lentSharePool(denom)
	if err != nil {
		return err
	}
	total, err := e.moneyMarket.UserCollateral(e.selfAddress, "", denom)
	if err != nil {
		return err
	}
	if _, err := e.moneyMarket.Withdraw(e.selfAddress, "", denom, &amount, e.selfAddress, true); err != nil {
		return err
	}
	burned := lentShares
	if amount.LT(lentHeld) {
		burned = sharesForAmount(pool.TotalShares, total.Amount, amount, true)
		if burned.GT(lentShares) {
			burned = lentShares
		}
	}
	remaining := lentShares.Sub(burned)
	if remaining.IsZero() {
		if err := e.state.DeleteLentShares(targetAccountID, denom); err != nil {
			return err
		}
	} else if err := e.state.PutLentShares(targetAccountID, denom, remaining); err != nil {
		return err
	}
	pool.TotalShares = pool.TotalShares.Sub(burned)
	return e.state.PutLentSharePool(pool)
}

// seizeVaulted force-exits the target's redeemable vault shares to cover the
// part of a seizure neither deposits nor lent funds could. Redemption
// proceeds land in the target's deposits before the seizure debits them, so
// any over-redemption stays with the target.
func (e *Engine) seizeVaulted(targetAccountID, denom string, amount sdkmath.Int) error {
	if e.vaults == nil {
		return errorsmod.Wrapf(ErrInsufficientFunds,
			"account %s holds no %s collateral", targetAccountID, denom)
	}
	var positions []*VaultPosition
	if err := e.state.VaultPositionsRange(targetAccountID, "", func(pos *VaultPosition) bool {
		positions = append(positions, pos)
		return true
	}); err != nil {
		return err
	}

	remaining := amount
	for _, pos := range positions {
		if !remaining.IsPositive() {
			break
		}
		base, err := e.vaults.BaseDenom(pos.VaultAddr)
		if err != nil {
			return err
		}
		if base != denom {
			continue
		}
		redeemable := e.redeemableShares(pos)
		if !redeemable.IsPositive() {
			continue
		}
		value, err := e.vaults.PreviewRedeem(pos.VaultAddr, redeemable)
		if err != nil {
			return err
		}
		if value.Amount.IsNil() || !value.Amount.IsPositive() {
			continue
		}
		toRedeem := redeemable
		if value.Amount.GT(remaining) {
			// Shares priced pro rata, rounded up so the proceeds cover the ask.
			num := sdkmath.LegacyNewDecFromInt(redeemable.Mul(remaining))
			den := sdkmath.LegacyNewDecFromInt(value.Amount)
			toRedeem = num.QuoRoundUp(den).Ceil().TruncateInt()
		}
		proceeds, err := e.forceExitVault(targetAccountID, pos, toRedeem)
		if err != nil {
			return err
		}
		if err := e.creditDeposit(targetAccountID, denom, proceeds); err != nil {
			return err
		}
		remaining = remaining.Sub(sdkmath.MinInt(proceeds, remaining))
	}
	if remaining.IsPositive() {
		return errorsmod.Wrapf(ErrInsufficientFunds,
			"account %s vaults leave %s %s of the seizure uncovered",
			targetAccountID, remaining, denom)
	}
	return e.debitDeposit(targetAccountID, denom, amount)
}
