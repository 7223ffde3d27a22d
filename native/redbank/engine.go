package redbank

import (
	"log/slog"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	nativecommon "redbank/native/common"
	"redbank/native/health"
	"redbank/native/liquidation"
	"redbank/native/params"
	"redbank/observability/logging"
	"redbank/observability/metrics"
)

type engineState interface {
	GetMarket(denom string) (*Market, error)
	PutMarket(market *Market) error
	MarketsRange(start string, fn func(market *Market) bool) error
	GetCollateral(user, accountID, denom string) (*Collateral, error)
	PutCollateral(user, accountID string, col *Collateral) error
	DeleteCollateral(user, accountID, denom string) error
	CollateralsRange(user, accountID, start string, fn func(col *Collateral) bool) error
	GetDebt(user, denom string) (*Debt, error)
	PutDebt(user string, debt *Debt) error
	DeleteDebt(user, denom string) error
	DebtsRange(user, start string, fn func(debt *Debt) bool) error
	GetUncollateralizedLimit(user, denom string) (sdkmath.Int, error)
	PutUncollateralizedLimit(user, denom string, limit sdkmath.Int) error
}

// Oracle is the price surface the ledger consumes. Liquidation pricing may
// differ from spot pricing depending on the oracle's internal policy.
type Oracle interface {
	Price(denom string) (sdkmath.LegacyDec, error)
	PriceForLiquidation(denom string) (sdkmath.LegacyDec, error)
}

// ParamsSource resolves per-denom risk parameters.
type ParamsSource interface {
	AssetParams(denom string) (params.AssetParams, error)
}

// Bank is the chain's coin transfer and balance primitive.
type Bank interface {
	Send(from, to, denom string, amount sdkmath.Int) error
	Balance(addr, denom string) (sdkmath.Int, error)
}

// CollateralHook observes every collateral mutation before it is applied,
// carrying the holder's scaled balance and the market total as they stood
// before the change.
type CollateralHook interface {
	BalanceChange(user, accountID, denom string, amountScaled, totalScaled sdkmath.Int, now uint64) error
}

// Engine is the market ledger: it owns scaled collateral and debt positions
// per (user, account, denom) and refreshes interest indices around every
// mutation.
type Engine struct {
	state  engineState
	oracle Oracle
	params ParamsSource
	bank   Bank
	hook   CollateralHook
	pauses nativecommon.PauseView
	logger *slog.Logger

	moduleAddress      string
	feeCollector       string
	owner              string
	targetHealthFactor sdkmath.LegacyDec
	blockTime          uint64
}

// NewEngine constructs a ledger engine. moduleAddr holds the pooled
// liquidity; feeCollector receives protocol liquidation fees as collateral;
// owner may initialise markets and manage credit lines.
func NewEngine(moduleAddr, feeCollector, owner string) *Engine {
	return &Engine{
		moduleAddress:      strings.TrimSpace(moduleAddr),
		feeCollector:       strings.TrimSpace(feeCollector),
		owner:              strings.TrimSpace(owner),
		targetHealthFactor: sdkmath.LegacyNewDecWithPrec(105, 2),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOracle wires the price source.
func (e *Engine) SetOracle(oracle Oracle) { e.oracle = oracle }

// SetParamsSource wires the risk parameter registry.
func (e *Engine) SetParamsSource(src ParamsSource) { e.params = src }

// SetBank wires the coin transfer primitive.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetCollateralHook wires the incentives accrual callback.
func (e *Engine) SetCollateralHook(hook CollateralHook) { e.hook = hook }

// SetPauses wires the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLogger attaches a structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) { e.logger = logger }

// SetTargetHealthFactor configures the post-liquidation health factor the
// close-factor calculation restores toward. Must exceed one.
func (e *Engine) SetTargetHealthFactor(thf sdkmath.LegacyDec) {
	if e == nil || thf.IsNil() || thf.LTE(sdkmath.LegacyOneDec()) {
		return
	}
	e.targetHealthFactor = thf
}

// SetBlockTime records the block timestamp in seconds used for index
// advancement on subsequent operations.
func (e *Engine) SetBlockTime(now uint64) {
	if e == nil {
		return
	}
	e.blockTime = now
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errorsmod.Wrap(ErrMarketNotFound, "engine state not configured")
	}
	return nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// InitMarket creates the market for a denom with unit indices and zero
// totals. Owner only.
func (e *Engine) InitMarket(caller, denom string, reserveFactor sdkmath.LegacyDec, model InterestRateModel) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.owner {
		return errorsmod.Wrapf(ErrUnauthorized, "caller %s may not initialise markets", caller)
	}
	if reserveFactor.IsNil() || reserveFactor.IsNegative() || reserveFactor.GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(errInvalidModel, "reserve_factor %s must be in [0, 1)", reserveFactor)
	}
	if err := model.Validate(); err != nil {
		return err
	}
	existing, err := e.state.GetMarket(denom)
	if err != nil {
		return err
	}
	if existing != nil {
		return errorsmod.Wrapf(ErrAssetAlreadyInitialized, "%s", denom)
	}
	market := NewMarket(denom, reserveFactor, model, e.blockTime)
	if err := e.state.PutMarket(market); err != nil {
		return err
	}
	e.log().Info("market initialised", "denom", denom)
	return nil
}

// UpdateMarket replaces the reserve factor and rate model of an existing
// market, accruing interest at the old parameters first. Owner only.
func (e *Engine) UpdateMarket(caller, denom string, reserveFactor sdkmath.LegacyDec, model InterestRateModel) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.owner {
		return errorsmod.Wrapf(ErrUnauthorized, "caller %s may not update markets", caller)
	}
	if reserveFactor.IsNil() || reserveFactor.IsNegative() || reserveFactor.GTE(sdkmath.LegacyOneDec()) {
		return errorsmod.Wrapf(errInvalidModel, "reserve_factor %s must be in [0, 1)", reserveFactor)
	}
	if err := model.Validate(); err != nil {
		return err
	}
	market, err := e.ensureMarket(denom)
	if err != nil {
		return err
	}
	AdvanceIndices(market, e.blockTime)
	market.ReserveFactor = reserveFactor
	market.Model = model
	if err := e.refreshRates(market); err != nil {
		return err
	}
	return e.state.PutMarket(market)
}

// Deposit locks amount of denom for onBehalfOf (or the caller when empty)
// and mints scaled collateral. Returns the scaled amount minted.
func (e *Engine) Deposit(caller, onBehalfOf, accountID, denom string, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := e.ready(); err != nil {
		return sdkmath.Int{}, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return sdkmath.Int{}, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrap(ErrNoAmount, "deposit")
	}
	recipient := onBehalfOf
	if recipient == "" {
		recipient = caller
	}

	market, err := e.ensureMarket(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	assetParams, err := e.params.AssetParams(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !assetParams.DepositEnabled {
		return sdkmath.Int{}, errorsmod.Wrapf(ErrDepositNotEnabled, "%s", denom)
	}

	AdvanceIndices(market, e.blockTime)

	scaled := ScaledLiquidityAmount(amount, market.LiquidityIndex)
	newTotalScaled := market.CollateralTotalScaled.Add(scaled)
	if UnderlyingLiquidityAmount(newTotalScaled, market.LiquidityIndex).GT(assetParams.DepositCap) {
		return sdkmath.Int{}, errorsmod.Wrapf(ErrDepositCapExceeded, "%s cap %s", denom, assetParams.DepositCap)
	}

	col, err := e.state.GetCollateral(recipient, accountID, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.notifyCollateralChange(recipient, accountID, denom, col, market); err != nil {
		return sdkmath.Int{}, err
	}
	if col == nil {
		col = &Collateral{Denom: denom, AmountScaled: sdkmath.ZeroInt(), Enabled: true}
	}
	col.AmountScaled = col.AmountScaled.Add(scaled)
	if err := e.state.PutCollateral(recipient, accountID, col); err != nil {
		return sdkmath.Int{}, err
	}

	market.CollateralTotalScaled = newTotalScaled
	if err := e.bank.Send(caller, e.moduleAddress, denom, amount); err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.refreshRates(market); err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return sdkmath.Int{}, err
	}

	metrics.Ledger().ObserveOperation("deposit", denom)
	e.log().Debug("deposit", "user", logging.MaskAddress(recipient), "account_id", accountID,
		"denom", denom, "amount", amount.String(), "amount_scaled", scaled.String())
	return scaled, nil
}

// Withdraw releases collateral back to recipient (caller when empty). A nil
// amount withdraws the full balance. Users with outstanding debt must stay
// at or below max LTV; pricing switches to the oracle's liquidation feed
// when the withdraw is liquidation related.
func (e *Engine) Withdraw(caller, accountID, denom string, amount *sdkmath.Int, recipient string, liquidationRelated bool) (sdkmath.Int, error) {
	if err := e.ready(); err != nil {
		return sdkmath.Int{}, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return sdkmath.Int{}, err
	}
	if recipient == "" {
		recipient = caller
	}

	market, err := e.ensureMarket(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	AdvanceIndices(market, e.blockTime)

	col, err := e.state.GetCollateral(caller, accountID, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if col == nil || !col.AmountScaled.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(ErrUserNoCollateralBalance, "%s", denom)
	}

	var scaledToBurn, underlying sdkmath.Int
	if amount == nil {
		scaledToBurn = col.AmountScaled
		underlying = UnderlyingLiquidityAmount(scaledToBurn, market.LiquidityIndex)
	} else {
		if !amount.IsPositive() {
			return sdkmath.Int{}, errorsmod.Wrap(ErrNoAmount, "withdraw")
		}
		underlying = *amount
		scaledToBurn = ScaledLiquidityAmountUp(underlying, market.LiquidityIndex)
		if scaledToBurn.GT(col.AmountScaled) {
			return sdkmath.Int{}, errorsmod.Wrapf(ErrInvalidWithdrawAmount,
				"requested %s exceeds balance", underlying)
		}
	}

	hasDebt, err := e.hasAnyDebt(caller)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if hasDebt {
		adj := &positionAdjustment{collateralDelta: map[string]sdkmath.Int{denom: underlying.Neg()}}
		positions, err := e.accountPositions(caller, accountID, liquidationRelated, adj)
		if err != nil {
			return sdkmath.Int{}, err
		}
		h, err := health.Compute(positions)
		if err != nil {
			return sdkmath.Int{}, err
		}
		if h.IsAboveMaxLtv() {
			return sdkmath.Int{}, errorsmod.Wrapf(ErrAboveMaxLTV,
				"max_ltv_hf %s after withdraw", h.MaxLtvHealthFactor)
		}
	}

	if err := e.notifyCollateralChange(caller, accountID, denom, col, market); err != nil {
		return sdkmath.Int{}, err
	}
	col.AmountScaled = col.AmountScaled.Sub(scaledToBurn)
	if col.AmountScaled.IsZero() {
		if err := e.state.DeleteCollateral(caller, accountID, denom); err != nil {
			return sdkmath.Int{}, err
		}
	} else if err := e.state.PutCollateral(caller, accountID, col); err != nil {
		return sdkmath.Int{}, err
	}
	market.CollateralTotalScaled = market.CollateralTotalScaled.Sub(scaledToBurn)

	if err := e.bank.Send(e.moduleAddress, recipient, denom, underlying); err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.refreshRates(market); err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return sdkmath.Int{}, err
	}

	metrics.Ledger().ObserveOperation("withdraw", denom)
	e.log().Debug("withdraw", "user", logging.MaskAddress(caller), "account_id", accountID,
		"denom", denom, "amount", underlying.String(), "amount_scaled", scaledToBurn.String())
	return underlying, nil
}

// Borrow draws amount of denom against the caller's collateral, or against a
// delegated credit line when one is configured for the denom.
func (e *Engine) Borrow(caller, denom string, amount sdkmath.Int, recipient string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return errorsmod.Wrap(ErrNoAmount, "borrow")
	}
	if recipient == "" {
		recipient = caller
	}

	market, err := e.ensureMarket(denom)
	if err != nil {
		return err
	}
	assetParams, err := e.params.AssetParams(denom)
	if err != nil {
		return err
	}
	if !assetParams.BorrowEnabled {
		return errorsmod.Wrapf(ErrBorrowNotEnabled, "%s", denom)
	}

	AdvanceIndices(market, e.blockTime)

	available, err := e.bank.Balance(e.moduleAddress, denom)
	if err != nil {
		return err
	}
	if available.LT(amount) {
		return errorsmod.Wrapf(ErrInsufficientLiquidity, "%s available %s", denom, available)
	}

	limit, err := e.state.GetUncollateralizedLimit(caller, denom)
	if err != nil {
		return err
	}
	uncollateralized := !limit.IsNil() && limit.IsPositive()

	debt, err := e.state.GetDebt(caller, denom)
	if err != nil {
		return err
	}
	if debt == nil {
		debt = &Debt{Denom: denom, AmountScaled: sdkmath.ZeroInt()}
	}

	if uncollateralized {
		owed := UnderlyingDebtAmount(debt.AmountScaled, market.BorrowIndex)
		if owed.Add(amount).GT(limit) {
			return errorsmod.Wrapf(ErrBorrowExceedsUncollateralizedLimit,
				"debt %s + borrow %s exceeds limit %s", owed, amount, limit)
		}
	} else {
		adj := &positionAdjustment{debtDelta: map[string]sdkmath.Int{denom: amount}}
		positions, err := e.accountPositions(caller, "", false, adj)
		if err != nil {
			return err
		}
		h, err := health.Compute(positions)
		if err != nil {
			return err
		}
		if h.IsAboveMaxLtv() {
			return errorsmod.Wrapf(ErrBorrowExceedsCollateral,
				"max_ltv_hf %s after borrow", h.MaxLtvHealthFactor)
		}
	}

	scaled := ScaledDebtAmount(amount, market.BorrowIndex)
	debt.AmountScaled = debt.AmountScaled.Add(scaled)
	debt.Uncollateralized = uncollateralized
	if err := e.state.PutDebt(caller, debt); err != nil {
		return err
	}
	market.DebtTotalScaled = market.DebtTotalScaled.Add(scaled)

	if err := e.bank.Send(e.moduleAddress, recipient, denom, amount); err != nil {
		return err
	}
	if err := e.refreshRates(market); err != nil {
		return err
	}
	if err := e.state.PutMarket(market); err != nil {
		return err
	}

	metrics.Ledger().ObserveOperation("borrow", denom)
	e.log().Debug("borrow", "user", logging.MaskAddress(caller), "denom", denom,
		"amount", amount.String(), "amount_scaled", scaled.String())
	return nil
}

// Repay pays down onBehalfOf's debt (the caller's when empty) with the sent
// amount and returns the overshoot to refund.
func (e *Engine) Repay(caller, onBehalfOf, denom string, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := e.ready(); err != nil {
		return sdkmath.Int{}, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return sdkmath.Int{}, err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrap(ErrNoAmount, "repay")
	}
	borrower := onBehalfOf
	if borrower == "" {
		borrower = caller
	}

	market, err := e.ensureMarket(denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	AdvanceIndices(market, e.blockTime)

	debt, err := e.state.GetDebt(borrower, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if debt == nil || !debt.AmountScaled.IsPositive() {
		return sdkmath.Int{}, errorsmod.Wrapf(ErrNoDebt, "%s owes nothing in %s", borrower, denom)
	}

	owed := UnderlyingDebtAmount(debt.AmountScaled, market.BorrowIndex)
	repayAmount := sdkmath.MinInt(amount, owed)
	refund := amount.Sub(repayAmount)

	scaledRepaid := ScaledDebtAmountDown(repayAmount, market.BorrowIndex)
	if repayAmount.Equal(owed) {
		scaledRepaid = debt.AmountScaled
	}
	debt.AmountScaled = debt.AmountScaled.Sub(scaledRepaid)
	if debt.AmountScaled.IsZero() {
		if err := e.state.DeleteDebt(borrower, denom); err != nil {
			return sdkmath.Int{}, err
		}
	} else if err := e.state.PutDebt(borrower, debt); err != nil {
		return sdkmath.Int{}, err
	}
	market.DebtTotalScaled = market.DebtTotalScaled.Sub(scaledRepaid)

	if err := e.bank.Send(caller, e.moduleAddress, denom, repayAmount); err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.refreshRates(market); err != nil {
		return sdkmath.Int{}, err
	}
	if err := e.state.PutMarket(market); err != nil {
		return sdkmath.Int{}, err
	}

	metrics.Ledger().ObserveOperation("repay", denom)
	e.log().Debug("repay", "user", logging.MaskAddress(borrower), "denom", denom,
		"amount", repayAmount.String(), "refund", refund.String())
	return refund, nil
}

// LiquidationOutcome reports how a liquidation settled.
type LiquidationOutcome struct {
	DebtRepaid             sdkmath.Int
	CollateralSeized       sdkmath.Int
	CollateralToLiquidator sdkmath.Int
	ProtocolFee            sdkmath.Int
	Refund                 sdkmath.Int
}

// Liquidate repays part of user's debt in debtDenom with the liquidator's
// sent funds and seizes discounted collateral in collateralDenom. The seized
// collateral lands as a collateral position for recipient (the liquidator
// when empty); the protocol fee lands as collateral for the fee collector.
func (e *Engine) Liquidate(liquidator, user, collateralDenom, debtDenom string, sentAmount sdkmath.Int, recipient string) (LiquidationOutcome, error) {
	if err := e.ready(); err != nil {
		return LiquidationOutcome{}, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return LiquidationOutcome{}, err
	}
	if sentAmount.IsNil() || !sentAmount.IsPositive() {
		return LiquidationOutcome{}, errorsmod.Wrap(ErrNoAmount, "liquidate")
	}
	if liquidator == user {
		return LiquidationOutcome{}, ErrCannotLiquidateOwn
	}
	if recipient == "" {
		recipient = liquidator
	}

	collateralMarket, err := e.ensureMarket(collateralDenom)
	if err != nil {
		return LiquidationOutcome{}, err
	}
	AdvanceIndices(collateralMarket, e.blockTime)
	debtMarket := collateralMarket
	if debtDenom != collateralDenom {
		debtMarket, err = e.ensureMarket(debtDenom)
		if err != nil {
			return LiquidationOutcome{}, err
		}
		AdvanceIndices(debtMarket, e.blockTime)
	}

	col, err := e.state.GetCollateral(user, "", collateralDenom)
	if err != nil {
		return LiquidationOutcome{}, err
	}
	if col == nil || !col.AmountScaled.IsPositive() || !col.Enabled {
		return LiquidationOutcome{}, errorsmod.Wrapf(ErrUserNoCollateralBalance,
			"%s holds no enabled %s collateral", user, collateralDenom)
	}
	debt, err := e.state.GetDebt(user, debtDenom)
	if err != nil {
		return LiquidationOutcome{}, err
	}
	if debt == nil || !debt.AmountScaled.IsPositive() {
		return LiquidationOutcome{}, errorsmod.Wrapf(ErrNoDebt, "%s owes nothing in %s", user, debtDenom)
	}
	if debt.Uncollateralized {
		return LiquidationOutcome{}, errorsmod.Wrapf(ErrUncollateralizedDebt, "%s in %s", user, debtDenom)
	}

	positions, err := e.accountPositions(user, "", true, nil)
	if err != nil {
		return LiquidationOutcome{}, err
	}
	h, err := health.Compute(positions)
	if err != nil {
		return LiquidationOutcome{}, err
	}
	if !h.IsLiquidatable() {
		return LiquidationOutcome{}, errorsmod.Wrapf(ErrNotLiquidatable,
			"liquidation_hf %s", h.LiquidationHealthFactor)
	}

	collateralParams, err := e.params.AssetParams(collateralDenom)
	if err != nil {
		return LiquidationOutcome{}, err
	}
	collateralPrice, err := e.oracle.PriceForLiquidation(collateralDenom)
	if err != nil {
		return LiquidationOutcome{}, err
	}
	debtPrice, err := e.oracle.PriceForLiquidation(debtDenom)
	if err != nil {
		return LiquidationOutcome{}, err
	}

	result, err := liquidation.Calculate(liquidation.Inputs{
		Health:             h,
		CollateralAmount:   UnderlyingLiquidityAmount(col.AmountScaled, collateralMarket.LiquidityIndex),
		CollateralPrice:    collateralPrice,
		CollateralParams:   collateralParams,
		DebtAmount:         UnderlyingDebtAmount(debt.AmountScaled, debtMarket.BorrowIndex),
		DebtPrice:          debtPrice,
		RequestedRepay:     sentAmount,
		TargetHealthFactor: e.targetHealthFactor,
	})
	if err != nil {
		return LiquidationOutcome{}, err
	}

	// Debt side: burn the borrower's scaled debt, rounding in the pool's favor.
	owed := UnderlyingDebtAmount(debt.AmountScaled, debtMarket.BorrowIndex)
	scaledRepaid := ScaledDebtAmountDown(result.DebtToRepay, debtMarket.BorrowIndex)
	if result.DebtToRepay.Equal(owed) {
		scaledRepaid = debt.AmountScaled
	}
	debt.AmountScaled = debt.AmountScaled.Sub(scaledRepaid)
	if debt.AmountScaled.IsZero() {
		if err := e.state.DeleteDebt(user, debtDenom); err != nil {
			return LiquidationOutcome{}, err
		}
	} else if err := e.state.PutDebt(user, debt); err != nil {
		return LiquidationOutcome{}, err
	}
	debtMarket.DebtTotalScaled = debtMarket.DebtTotalScaled.Sub(scaledRepaid)

	// Collateral side: move scaled collateral from the borrower to the
	// liquidator's recipient and the fee collector. The market total is
	// untouched; ownership changes, liquidity does not.
	scaledSeized := ScaledLiquidityAmount(result.CollateralSeized, collateralMarket.LiquidityIndex)
	if scaledSeized.GT(col.AmountScaled) {
		scaledSeized = col.AmountScaled
	}
	scaledFee := ScaledLiquidityAmount(result.ProtocolFee, collateralMarket.LiquidityIndex)
	if scaledFee.GT(scaledSeized) {
		scaledFee = scaledSeized
	}
	scaledToLiquidator := scaledSeized.Sub(scaledFee)

	if err := e.notifyCollateralChange(user, "", collateralDenom, col, collateralMarket); err != nil {
		return LiquidationOutcome{}, err
	}
	col.AmountScaled = col.AmountScaled.Sub(scaledSeized)
	if col.AmountScaled.IsZero() {
		if err := e.state.DeleteCollateral(user, "", collateralDenom); err != nil {
			return LiquidationOutcome{}, err
		}
	} else if err := e.state.PutCollateral(user, "", col); err != nil {
		return LiquidationOutcome{}, err
	}

	if err := e.creditCollateral(recipient, "", collateralDenom, scaledToLiquidator, collateralMarket); err != nil {
		return LiquidationOutcome{}, err
	}
	if scaledFee.IsPositive() {
		if err := e.creditCollateral(e.feeCollector, "", collateralDenom, scaledFee, collateralMarket); err != nil {
			return LiquidationOutcome{}, err
		}
	}

	if err := e.bank.Send(liquidator, e.moduleAddress, debtDenom, result.DebtToRepay); err != nil {
		return LiquidationOutcome{}, err
	}

	if err := e.refreshRates(debtMarket); err != nil {
		return LiquidationOutcome{}, err
	}
	if err := e.state.PutMarket(debtMarket); err != nil {
		return LiquidationOutcome{}, err
	}
	if debtDenom != collateralDenom {
		if err := e.refreshRates(collateralMarket); err != nil {
			return LiquidationOutcome{}, err
		}
		if err := e.state.PutMarket(collateralMarket); err != nil {
			return LiquidationOutcome{}, err
		}
	}

	metrics.Ledger().ObserveOperation("liquidate", debtDenom)
	e.log().Info("liquidation",
		"user", logging.MaskAddress(user), "liquidator", logging.MaskAddress(liquidator),
		"debt_denom", debtDenom, "collateral_denom", collateralDenom,
		"debt_repaid", result.DebtToRepay.String(), "collateral_seized", result.CollateralSeized.String())

	return LiquidationOutcome{
		DebtRepaid:             result.DebtToRepay,
		CollateralSeized:       result.CollateralSeized,
		CollateralToLiquidator: result.CollateralToLiquidator,
		ProtocolFee:            result.ProtocolFee,
		Refund:                 sentAmount.Sub(result.DebtToRepay),
	}, nil
}

// UpdateAssetCollateralStatus toggles whether a collateral position counts
// toward the holder's health factor. Disabling requires the position to stay
// out of liquidation territory.
func (e *Engine) UpdateAssetCollateralStatus(user, accountID, denom string, enable bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	col, err := e.state.GetCollateral(user, accountID, denom)
	if err != nil {
		return err
	}
	if col == nil || !col.AmountScaled.IsPositive() {
		return errorsmod.Wrapf(ErrUserNoCollateralBalance, "%s", denom)
	}
	if col.Enabled == enable {
		return nil
	}
	col.Enabled = enable
	if err := e.state.PutCollateral(user, accountID, col); err != nil {
		return err
	}
	if enable {
		return nil
	}

	hasDebt, err := e.hasAnyDebt(user)
	if err != nil {
		return err
	}
	if !hasDebt {
		return nil
	}
	positions, err := e.accountPositions(user, accountID, false, nil)
	if err != nil {
		return err
	}
	h, err := health.Compute(positions)
	if err != nil {
		return err
	}
	if h.IsLiquidatable() {
		return errorsmod.Wrapf(ErrHealthFactorAfterDisabling,
			"liquidation_hf %s after disabling %s", h.LiquidationHealthFactor, denom)
	}
	return nil
}

// UpdateUncollateralizedLoanLimit sets a delegated credit line. Raising a
// limit requires the borrower to have no collateralized debt in the denom;
// clearing a limit to zero flips existing debt back to collateralized, which
// may leave the borrower immediately unhealthy.
func (e *Engine) UpdateUncollateralizedLoanLimit(caller, user, denom string, newLimit sdkmath.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.owner {
		return errorsmod.Wrapf(ErrUnauthorized, "caller %s may not manage credit lines", caller)
	}
	if newLimit.IsNil() || newLimit.IsNegative() {
		return errorsmod.Wrap(ErrNoAmount, "credit line must be non-negative")
	}

	debt, err := e.state.GetDebt(user, denom)
	if err != nil {
		return err
	}
	if newLimit.IsPositive() {
		if debt != nil && debt.AmountScaled.IsPositive() && !debt.Uncollateralized {
			return errorsmod.Wrapf(ErrUserHasCollateralizedDebt, "%s in %s", user, denom)
		}
	} else if debt != nil && debt.AmountScaled.IsPositive() && debt.Uncollateralized {
		debt.Uncollateralized = false
		if err := e.state.PutDebt(user, debt); err != nil {
			return err
		}
	}
	return e.state.PutUncollateralizedLimit(user, denom, newLimit)
}

func (e *Engine) ensureMarket(denom string) (*Market, error) {
	market, err := e.state.GetMarket(denom)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, errorsmod.Wrapf(ErrMarketNotFound, "%s", denom)
	}
	return market, nil
}

func (e *Engine) refreshRates(market *Market) error {
	available, err := e.bank.Balance(e.moduleAddress, market.Denom)
	if err != nil {
		return err
	}
	util := Utilization(market, available)
	UpdateRates(market, util)
	if f, err := util.Float64(); err == nil {
		metrics.Ledger().ObserveUtilization(market.Denom, f)
	}
	return nil
}

func (e *Engine) creditCollateral(user, accountID, denom string, scaled sdkmath.Int, market *Market) error {
	if !scaled.IsPositive() {
		return nil
	}
	col, err := e.state.GetCollateral(user, accountID, denom)
	if err != nil {
		return err
	}
	if err := e.notifyCollateralChange(user, accountID, denom, col, market); err != nil {
		return err
	}
	if col == nil {
		col = &Collateral{Denom: denom, AmountScaled: sdkmath.ZeroInt(), Enabled: true}
	}
	col.AmountScaled = col.AmountScaled.Add(scaled)
	return e.state.PutCollateral(user, accountID, col)
}

// notifyCollateralChange realizes pending incentive rewards against the
// holder's balance as it stood before the mutation.
func (e *Engine) notifyCollateralChange(user, accountID, denom string, col *Collateral, market *Market) error {
	if e.hook == nil {
		return nil
	}
	amountScaled := sdkmath.ZeroInt()
	if col != nil {
		amountScaled = col.AmountScaled
	}
	return e.hook.BalanceChange(user, accountID, denom, amountScaled, market.CollateralTotalScaled, e.blockTime)
}

func (e *Engine) hasAnyDebt(user string) (bool, error) {
	found := false
	err := e.state.DebtsRange(user, "", func(debt *Debt) bool {
		if debt.AmountScaled.IsPositive() {
			found = true
			return false
		}
		return true
	})
	return found, err
}

type positionAdjustment struct {
	collateralDelta map[string]sdkmath.Int
	debtDelta       map[string]sdkmath.Int
}

// accountPositions assembles priced health positions from the user's enabled
// collaterals and debts, valuing scaled amounts against indices advanced to
// the current block time without persisting the advancement.
func (e *Engine) accountPositions(user, accountID string, liquidationPricing bool, adj *positionAdjustment) ([]health.Position, error) {
	type side struct {
		collateral sdkmath.Int
		debt       sdkmath.Int
		uncoll     bool
	}
	sides := make(map[string]*side)
	denomOrder := make([]string, 0, 8)
	ensure := func(denom string) *side {
		if s, ok := sides[denom]; ok {
			return s
		}
		s := &side{collateral: sdkmath.ZeroInt(), debt: sdkmath.ZeroInt()}
		sides[denom] = s
		denomOrder = append(denomOrder, denom)
		return s
	}

	var rangeErr error
	err := e.state.CollateralsRange(user, accountID, "", func(col *Collateral) bool {
		if !col.Enabled || !col.AmountScaled.IsPositive() {
			return true
		}
		market, merr := e.state.GetMarket(col.Denom)
		if merr != nil {
			rangeErr = merr
			return false
		}
		if market == nil {
			rangeErr = errorsmod.Wrapf(ErrMarketNotFound, "%s", col.Denom)
			return false
		}
		m := market.Clone()
		AdvanceIndices(m, e.blockTime)
		s := ensure(col.Denom)
		s.collateral = s.collateral.Add(UnderlyingLiquidityAmount(col.AmountScaled, m.LiquidityIndex))
		return true
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}

	err = e.state.DebtsRange(user, "", func(debt *Debt) bool {
		if !debt.AmountScaled.IsPositive() {
			return true
		}
		market, merr := e.state.GetMarket(debt.Denom)
		if merr != nil {
			rangeErr = merr
			return false
		}
		if market == nil {
			rangeErr = errorsmod.Wrapf(ErrMarketNotFound, "%s", debt.Denom)
			return false
		}
		m := market.Clone()
		AdvanceIndices(m, e.blockTime)
		s := ensure(debt.Denom)
		s.debt = s.debt.Add(UnderlyingDebtAmount(debt.AmountScaled, m.BorrowIndex))
		s.uncoll = debt.Uncollateralized
		return true
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}

	if adj != nil {
		for denom, delta := range adj.collateralDelta {
			s := ensure(denom)
			s.collateral = s.collateral.Add(delta)
			if s.collateral.IsNegative() {
				s.collateral = sdkmath.ZeroInt()
			}
		}
		for denom, delta := range adj.debtDelta {
			s := ensure(denom)
			s.debt = s.debt.Add(delta)
			if s.debt.IsNegative() {
				s.debt = sdkmath.ZeroInt()
			}
		}
	}

	positions := make([]health.Position, 0, len(denomOrder))
	for _, denom := range denomOrder {
		s := sides[denom]
		if s.collateral.IsZero() && s.debt.IsZero() {
			continue
		}
		assetParams, perr := e.params.AssetParams(denom)
		if perr != nil {
			return nil, perr
		}
		var price sdkmath.LegacyDec
		if liquidationPricing {
			price, perr = e.oracle.PriceForLiquidation(denom)
		} else {
			price, perr = e.oracle.Price(denom)
		}
		if perr != nil {
			return nil, perr
		}
		positions = append(positions, health.Position{
			Denom:                denom,
			Price:                price,
			CollateralAmount:     s.collateral,
			DebtAmount:           s.debt,
			Uncollateralized:     s.uncoll,
			MaxLTV:               assetParams.MaxLoanToValue,
			LiquidationThreshold: assetParams.LiquidationThreshold,
		})
	}
	return positions, nil
}
