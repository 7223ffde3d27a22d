package creditmanager

import (
	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"redbank/native/coin"
	nativecommon "redbank/native/common"
	"redbank/observability/metrics"
)

// batchContext carries per-batch bookkeeping: the funds sent alongside the
// batch and the callbacks still to run.
type batchContext struct {
	accountID     string
	received      []coin.Coin
	callbacks     []CallbackMsg
	deleveraging  bool
	healthAccount string
}

// ExecuteActions runs an ordered action batch against a credit account. The
// caller must own the account. Sent funds must be fully consumed by Deposit
// actions. Unless the batch is purely deleveraging, the account must end at
// or below max loan-to-value.
func (e *Engine) ExecuteActions(caller, accountID string, actions []Action, sentFunds []coin.Coin) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireOwner(caller, accountID); err != nil {
		return err
	}

	ctx := &batchContext{
		accountID:     accountID,
		received:      append([]coin.Coin(nil), sentFunds...),
		deleveraging:  true,
		healthAccount: accountID,
	}

	for _, action := range actions {
		if err := e.executeAction(caller, ctx, action); err != nil {
			return err
		}
		if err := e.runCallbacks(ctx); err != nil {
			return err
		}
	}

	for _, c := range ctx.received {
		if c.IsPositive() {
			return errorsmod.Wrapf(ErrExtraFundsReceived, "%s", c)
		}
	}

	if !ctx.deleveraging {
		if err := e.Callback(e.selfAddress, AssertHealthFactor{AccountID: ctx.healthAccount}); err != nil {
			return err
		}
	}
	metrics.Ledger().ObserveOperation("execute_actions", "")
	return nil
}

func (e *Engine) executeAction(caller string, ctx *batchContext, action Action) error {
	switch a := action.(type) {
	case DepositAction:
		return e.actionDeposit(ctx, a)
	case WithdrawAction:
		ctx.deleveraging = ctx.deleveraging && a.liquidationRelated
		return e.actionWithdraw(caller, ctx, a)
	case BorrowAction:
		ctx.deleveraging = false
		return e.actionBorrow(ctx, a)
	case RepayAction:
		return e.actionRepay(ctx, a)
	case LendAction:
		ctx.deleveraging = false
		return e.actionLend(ctx, a)
	case ReclaimAction:
		ctx.deleveraging = ctx.deleveraging && a.liquidationRelated
		return e.actionReclaim(ctx, a)
	case EnterVaultAction:
		ctx.deleveraging = false
		return e.actionEnterVault(ctx, a)
	case ExitVaultAction:
		ctx.deleveraging = false
		return e.actionExitVault(ctx, a)
	case RequestVaultUnlockAction:
		ctx.deleveraging = false
		return e.actionRequestVaultUnlock(ctx, a)
	case WithdrawFromVaultAction:
		ctx.deleveraging = false
		return e.actionWithdrawFromVault(ctx, a)
	case SwapExactInAction:
		ctx.deleveraging = false
		return e.actionSwapExactIn(ctx, a)
	case LiquidateAction:
		ctx.deleveraging = false
		return e.actionLiquidate(ctx, a)
	case ClaimRewardsAction:
		ctx.deleveraging = false
		return e.actionClaimRewards(ctx)
	case StakeLPAction:
		ctx.deleveraging = false
		return e.actionStakeLP(ctx, a)
	case UnstakeLPAction:
		ctx.deleveraging = false
		return e.actionUnstakeLP(ctx, a)
	default:
		return errorsmod.Wrapf(ErrUnknownAction, "%T", action)
	}
}

// Callback dispatches a self-addressed follow-up step. Any sender other than
// the manager itself is rejected.
func (e *Engine) Callback(sender string, msg CallbackMsg) error {
	if err := e.ready(); err != nil {
		return err
	}
	if sender != e.selfAddress {
		return errorsmod.Wrapf(ErrExternalInvocation, "sender %s", sender)
	}
	switch m := msg.(type) {
	case UpdateCoinBalance:
		return e.callbackUpdateCoinBalance(m)
	case AssertHealthFactor:
		return e.callbackAssertHealthFactor(m)
	default:
		return errorsmod.Wrapf(ErrUnknownAction, "%T", msg)
	}
}

// runCallbacks drains the queue LIFO so nested schedules resolve before
// earlier ones.
func (e *Engine) runCallbacks(ctx *batchContext) error {
	for len(ctx.callbacks) > 0 {
		last := len(ctx.callbacks) - 1
		msg := ctx.callbacks[last]
		ctx.callbacks = ctx.callbacks[:last]
		if err := e.Callback(e.selfAddress, msg); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) callbackUpdateCoinBalance(m UpdateCoinBalance) error {
	current, err := e.bank.Balance(e.selfAddress, m.Denom)
	if err != nil {
		return err
	}
	switch m.Change {
	case BalanceIncrease:
		if current.LTE(m.PreviousBalance) {
			return errorsmod.Wrapf(ErrBalanceChange,
				"%s expected increase, prev %s curr %s", m.Denom, m.PreviousBalance, current)
		}
		return e.creditDeposit(m.AccountID, m.Denom, current.Sub(m.PreviousBalance))
	case BalanceDecrease:
		if current.GTE(m.PreviousBalance) {
			return errorsmod.Wrapf(ErrBalanceChange,
				"%s expected decrease, prev %s curr %s", m.Denom, m.PreviousBalance, current)
		}
		return e.debitDeposit(m.AccountID, m.Denom, m.PreviousBalance.Sub(current))
	default:
		return errorsmod.Wrapf(ErrBalanceChange, "unknown direction %d", m.Change)
	}
}

func (e *Engine) callbackAssertHealthFactor(m AssertHealthFactor) error {
	h, err := e.accountHealth(m.AccountID, false)
	if err != nil {
		return err
	}
	if h.IsAboveMaxLtv() {
		return errorsmod.Wrapf(ErrAboveMaxLTV,
			"account %s max_ltv_hf %s", m.AccountID, h.MaxLtvHealthFactor)
	}
	return nil
}

func (e *Engine) actionDeposit(ctx *batchContext, a DepositAction) error {
	if !a.Coin.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "deposit")
	}
	assetParams, err := e.params.AssetParams(a.Coin.Denom)
	if err != nil {
		return err
	}
	if !assetParams.Whitelisted {
		return errorsmod.Wrapf(ErrNotWhitelisted, "%s", a.Coin.Denom)
	}
	if !e.consumeReceived(ctx, a.Coin) {
		return errorsmod.Wrapf(ErrFundsMismatch, "deposit of %s not covered by sent funds", a.Coin)
	}
	return e.creditDeposit(ctx.accountID, a.Coin.Denom, a.Coin.Amount)
}

func (e *Engine) consumeReceived(ctx *batchContext, c coin.Coin) bool {
	for i := range ctx.received {
		if ctx.received[i].Denom == c.Denom && ctx.received[i].Amount.GTE(c.Amount) {
			ctx.received[i].Amount = ctx.received[i].Amount.Sub(c.Amount)
			return true
		}
	}
	return false
}

func (e *Engine) actionWithdraw(caller string, ctx *batchContext, a WithdrawAction) error {
	amount := a.Coin.Amount
	if a.All {
		balance, err := e.accountDeposit(ctx.accountID, a.Coin.Denom)
		if err != nil {
			return err
		}
		amount = balance
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "withdraw")
	}
	if err := e.debitDeposit(ctx.accountID, a.Coin.Denom, amount); err != nil {
		return err
	}
	return e.bank.Send(e.selfAddress, caller, a.Coin.Denom, amount)
}

func (e *Engine) actionBorrow(ctx *batchContext, a BorrowAction) error {
	if !a.Coin.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "borrow")
	}
	assetParams, err := e.params.AssetParams(a.Coin.Denom)
	if err != nil {
		return err
	}
	if !assetParams.Whitelisted {
		return errorsmod.Wrapf(ErrNotWhitelisted, "%s", a.Coin.Denom)
	}

	pool, err := e.debtSharePool(a.Coin.Denom)
	if err != nil {
		return err
	}
	before, err := e.moneyMarket.UserDebt(e.selfAddress, a.Coin.Denom)
	if err != nil {
		return err
	}
	if err := e.moneyMarket.Borrow(e.selfAddress, a.Coin.Denom, a.Coin.Amount, e.selfAddress); err != nil {
		return err
	}

	shares := sharesForAmount(pool.TotalShares, before.Amount, a.Coin.Amount, true)
	existing, err := e.state.GetDebtShares(ctx.accountID, a.Coin.Denom)
	if err != nil {
		return err
	}
	if existing.IsNil() {
		existing = sdkmath.ZeroInt()
	}
	if err := e.state.PutDebtShares(ctx.accountID, a.Coin.Denom, existing.Add(shares)); err != nil {
		return err
	}
	pool.TotalShares = pool.TotalShares.Add(shares)
	if err := e.state.PutDebtSharePool(pool); err != nil {
		return err
	}
	return e.creditDeposit(ctx.accountID, a.Coin.Denom, a.Coin.Amount)
}

func (e *Engine) actionRepay(ctx *batchContext, a RepayAction) error {
	debtor := ctx.accountID
	if a.OnBehalfOf != "" {
		if _, err := e.nft.OwnerOf(a.OnBehalfOf); err != nil {
			return errorsmod.Wrapf(ErrAccountNotFound, "%s", a.OnBehalfOf)
		}
		debtor = a.OnBehalfOf
	}

	shares, owed, err := e.accountDebt(debtor, a.Coin.Denom)
	if err != nil {
		return err
	}
	if !shares.IsPositive() {
		return errorsmod.Wrapf(ErrNoDebt, "account %s owes nothing in %s", debtor, a.Coin.Denom)
	}

	amount := a.Coin.Amount
	if a.All || amount.GT(owed) {
		amount = owed
	}
	if !amount.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "repay")
	}
	if err := e.debitDeposit(ctx.accountID, a.Coin.Denom, amount); err != nil {
		return err
	}

	pool, err := e.debtSharePool(a.Coin.Denom)
	if err != nil {
		return err
	}
	total, err := e.moneyMarket.UserDebt(e.selfAddress, a.Coin.Denom)
	if err != nil {
		return err
	}
	refund, err := e.moneyMarket.Repay(e.selfAddress, "", a.Coin.Denom, amount)
	if err != nil {
		return err
	}
	if refund.IsPositive() {
		if err := e.creditDeposit(ctx.accountID, a.Coin.Denom, refund); err != nil {
			return err
		}
		amount = amount.Sub(refund)
	}

	burned := shares
	if amount.LT(owed) {
		burned = sharesForAmount(pool.TotalShares, total.Amount, amount, false)
		if burned.GT(shares) {
			burned = shares
		}
	}
	remaining := shares.Sub(burned)
	if remaining.IsZero() {
		if err := e.state.DeleteDebtShares(debtor, a.Coin.Denom); err != nil {
			return err
		}
	} else if err := e.state.PutDebtShares(debtor, a.Coin.Denom, remaining); err != nil {
		return err
	}
	pool.TotalShares = pool.TotalShares.Sub(burned)
	return e.state.PutDebtSharePool(pool)
}

func (e *Engine) actionLend(ctx *batchContext, a LendAction) error {
	if !a.Coin.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "lend")
	}
	assetParams, err := e.params.AssetParams(a.Coin.Denom)
	if err != nil {
		return err
	}
	if !assetParams.Whitelisted {
		return errorsmod.Wrapf(ErrNotWhitelisted, "%s", a.Coin.Denom)
	}
	existing, err := e.state.GetLentShares(ctx.accountID, a.Coin.Denom)
	if err != nil {
		return err
	}
	if existing.IsNil() {
		existing = sdkmath.ZeroInt()
	}
	if err := e.settleLendIncentives(ctx.accountID, a.Coin.Denom, existing); err != nil {
		return err
	}
	if err := e.debitDeposit(ctx.accountID, a.Coin.Denom, a.Coin.Amount); err != nil {
		return err
	}

	pool, err := e.lentSharePool(a.Coin.Denom)
	if err != nil {
		return err
	}
	before, err := e.moneyMarket.UserCollateral(e.selfAddress, "", a.Coin.Denom)
	if err != nil {
		return err
	}
	if _, err := e.moneyMarket.Deposit(e.selfAddress, e.selfAddress, "", a.Coin.Denom, a.Coin.Amount); err != nil {
		return err
	}

	shares := sharesForAmount(pool.TotalShares, before.Amount, a.Coin.Amount, false)
	if err := e.state.PutLentShares(ctx.accountID, a.Coin.Denom, existing.Add(shares)); err != nil {
		return err
	}
	pool.TotalShares = pool.TotalShares.Add(shares)
	return e.state.PutLentSharePool(pool)
}

func (e *Engine) actionReclaim(ctx *batchContext, a ReclaimAction) error {
	shares, held, err := e.accountLent(ctx.accountID, a.Coin.Denom)
	if err != nil {
		return err
	}
	if !shares.IsPositive() {
		return errorsmod.Wrapf(ErrInsufficientFunds, "account %s has no %s lent", ctx.accountID, a.Coin.Denom)
	}

	amount := a.Coin.Amount
	if a.All || amount.GT(held) {
		amount = held
	}
	if !amount.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "reclaim")
	}
	if err := e.settleLendIncentives(ctx.accountID, a.Coin.Denom, shares); err != nil {
		return err
	}

	pool, err := e.lentSharePool(a.Coin.Denom)
	if err != nil {
		return err
	}
	total, err := e.moneyMarket.UserCollateral(e.selfAddress, "", a.Coin.Denom)
	if err != nil {
		return err
	}
	withdrawn, err := e.moneyMarket.Withdraw(e.selfAddress, "", a.Coin.Denom, &amount, e.selfAddress, a.liquidationRelated)
	if err != nil {
		return err
	}

	burned := shares
	if amount.LT(held) {
		burned = sharesForAmount(pool.TotalShares, total.Amount, amount, true)
		if burned.GT(shares) {
			burned = shares
		}
	}
	remaining := shares.Sub(burned)
	if remaining.IsZero() {
		if err := e.state.DeleteLentShares(ctx.accountID, a.Coin.Denom); err != nil {
			return err
		}
	} else if err := e.state.PutLentShares(ctx.accountID, a.Coin.Denom, remaining); err != nil {
		return err
	}
	pool.TotalShares = pool.TotalShares.Sub(burned)
	if err := e.state.PutLentSharePool(pool); err != nil {
		return err
	}
	return e.creditDeposit(ctx.accountID, a.Coin.Denom, withdrawn)
}

func (e *Engine) actionStakeLP(ctx *batchContext, a StakeLPAction) error {
	if !a.Coin.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "stake")
	}
	if err := e.debitDeposit(ctx.accountID, a.Coin.Denom, a.Coin.Amount); err != nil {
		return err
	}
	staked, err := e.state.GetStakedLP(ctx.accountID, a.Coin.Denom)
	if err != nil {
		return err
	}
	if staked.IsNil() {
		staked = sdkmath.ZeroInt()
	}
	return e.state.PutStakedLP(ctx.accountID, a.Coin.Denom, staked.Add(a.Coin.Amount))
}

func (e *Engine) actionUnstakeLP(ctx *batchContext, a UnstakeLPAction) error {
	staked, err := e.state.GetStakedLP(ctx.accountID, a.Coin.Denom)
	if err != nil {
		return err
	}
	if staked.IsNil() || !staked.IsPositive() {
		return errorsmod.Wrapf(ErrInsufficientFunds, "no staked %s", a.Coin.Denom)
	}
	amount := a.Coin.Amount
	if a.All || amount.GT(staked) {
		amount = staked
	}
	if !amount.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "unstake")
	}
	remaining := staked.Sub(amount)
	if remaining.IsZero() {
		if err := e.state.DeleteStakedLP(ctx.accountID, a.Coin.Denom); err != nil {
			return err
		}
	} else if err := e.state.PutStakedLP(ctx.accountID, a.Coin.Denom, remaining); err != nil {
		return err
	}
	return e.creditDeposit(ctx.accountID, a.Coin.Denom, amount)
}

func (e *Engine) actionSwapExactIn(ctx *batchContext, a SwapExactInAction) error {
	outParams, err := e.params.AssetParams(a.DenomOut)
	if err != nil {
		return err
	}
	if !outParams.Whitelisted {
		return errorsmod.Wrapf(ErrNotWhitelisted, "%s", a.DenomOut)
	}

	amountIn := a.CoinIn.Amount
	if a.All {
		balance, err := e.accountDeposit(ctx.accountID, a.CoinIn.Denom)
		if err != nil {
			return err
		}
		amountIn = balance
	}
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "swap")
	}
	if err := e.debitDeposit(ctx.accountID, a.CoinIn.Denom, amountIn); err != nil {
		return err
	}

	priceIn, err := e.oracle.Price(a.CoinIn.Denom)
	if err != nil {
		return err
	}
	priceOut, err := e.oracle.Price(a.DenomOut)
	if err != nil {
		return err
	}
	slippage := a.Slippage
	if slippage.IsNil() {
		slippage = sdkmath.LegacyZeroDec()
	}
	minOut := sdkmath.LegacyNewDecFromInt(amountIn).
		Mul(priceIn).QuoTruncate(priceOut).
		Mul(sdkmath.LegacyOneDec().Sub(slippage)).
		TruncateInt()

	previous, err := e.bank.Balance(e.selfAddress, a.DenomOut)
	if err != nil {
		return err
	}
	ctx.callbacks = append(ctx.callbacks, UpdateCoinBalance{
		AccountID:       ctx.accountID,
		Denom:           a.DenomOut,
		PreviousBalance: previous,
		Change:          BalanceIncrease,
	})

	coinIn := coin.Coin{Denom: a.CoinIn.Denom, Amount: amountIn}
	if err := e.swapper.SwapExactIn(coinIn, a.DenomOut, minOut, a.Route); err != nil {
		return err
	}
	current, err := e.bank.Balance(e.selfAddress, a.DenomOut)
	if err != nil {
		return err
	}
	if current.Sub(previous).LT(minOut) {
		return errorsmod.Wrapf(ErrSlippageExceeded,
			"received %s, need %s %s", current.Sub(previous), minOut, a.DenomOut)
	}
	return nil
}

func (e *Engine) actionClaimRewards(ctx *batchContext) error {
	// Settle every lent denom so the claim pays accrual up to this block.
	var settleErr error
	if err := e.state.LentSharesRange(ctx.accountID, "", func(denom string, shares sdkmath.Int) bool {
		if settleErr = e.settleLendIncentives(ctx.accountID, denom, shares); settleErr != nil {
			return false
		}
		return true
	}); err != nil {
		return err
	}
	if settleErr != nil {
		return settleErr
	}
	claimed, err := e.incentives.ClaimRewards(e.selfAddress, ctx.accountID, e.selfAddress, e.blockTime)
	if err != nil {
		return err
	}
	for _, c := range claimed {
		if err := e.creditDeposit(ctx.accountID, c.Denom, c.Amount); err != nil {
			return err
		}
	}
	return nil
}
