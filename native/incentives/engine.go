package incentives

import (
	"log/slog"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"redbank/native/coin"
	"redbank/observability/logging"
)

type engineState interface {
	GetSchedule(collateralDenom, incentiveDenom string) (*Schedule, error)
	PutSchedule(schedule *Schedule) error
	SchedulesForCollateral(collateralDenom string, fn func(schedule *Schedule) bool) error
	GetIncentiveState(collateralDenom, incentiveDenom string) (*State, error)
	PutIncentiveState(state *State) error
	GetUserIndex(user, accountID, collateralDenom, incentiveDenom string) (sdkmath.LegacyDec, error)
	PutUserIndex(user, accountID, collateralDenom, incentiveDenom string, index sdkmath.LegacyDec) error
	GetAccrued(user, accountID, incentiveDenom string) (sdkmath.Int, error)
	PutAccrued(user, accountID, incentiveDenom string, amount sdkmath.Int) error
	AccruedRange(user, accountID string, fn func(incentiveDenom string, amount sdkmath.Int) bool) error
}

// CollateralSource exposes scaled collateral balances so claims can realize
// pending rewards without the ledger pushing a balance change first.
type CollateralSource interface {
	ScaledBalances(user, accountID string, fn func(denom string, amountScaled, totalScaled sdkmath.Int) bool) error
}

// Bank is the coin transfer primitive used to pay out rewards.
type Bank interface {
	Send(from, to, denom string, amount sdkmath.Int) error
}

// Engine accrues emission-schedule rewards against scaled collateral
// balances. It is wired as the ledger's collateral hook so every balance
// mutation realizes the holder's pending rewards first.
type Engine struct {
	state       engineState
	collaterals CollateralSource
	bank        Bank
	logger      *slog.Logger

	moduleAddress string
	owner         string
}

// NewEngine constructs an incentives engine. moduleAddr funds reward
// payouts; owner may manage emission schedules.
func NewEngine(moduleAddr, owner string) *Engine {
	return &Engine{
		moduleAddress: strings.TrimSpace(moduleAddr),
		owner:         strings.TrimSpace(owner),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCollateralSource wires the scaled balance view used by claims.
func (e *Engine) SetCollateralSource(src CollateralSource) { e.collaterals = src }

// SetBank wires the coin transfer primitive.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetLogger attaches a structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) { e.logger = logger }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errorsmod.Wrap(ErrInvalidSchedule, "engine state not configured")
	}
	return nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// SetAssetIncentive installs or replaces the emission schedule for a
// (collateral, incentive) pair. The index is settled under the outgoing
// schedule before the new one takes effect. Owner only.
func (e *Engine) SetAssetIncentive(caller string, schedule Schedule, totalScaled sdkmath.Int, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if caller != e.owner {
		return errorsmod.Wrapf(ErrUnauthorized, "caller %s may not manage schedules", caller)
	}
	if schedule.CollateralDenom == "" || schedule.IncentiveDenom == "" {
		return errorsmod.Wrap(ErrInvalidSchedule, "denoms must be set")
	}
	if schedule.EmissionPerSecond.IsNil() || schedule.EmissionPerSecond.IsNegative() {
		return errorsmod.Wrap(ErrInvalidSchedule, "emission per second must be non-negative")
	}
	if schedule.Duration == 0 {
		return errorsmod.Wrap(ErrInvalidSchedule, "duration must be positive")
	}

	state, err := e.loadState(schedule.CollateralDenom, schedule.IncentiveDenom, now)
	if err != nil {
		return err
	}
	previous, err := e.state.GetSchedule(schedule.CollateralDenom, schedule.IncentiveDenom)
	if err != nil {
		return err
	}
	state.advanceIndex(previous, totalScaled, now)
	if err := e.state.PutIncentiveState(state); err != nil {
		return err
	}
	if err := e.state.PutSchedule(&schedule); err != nil {
		return err
	}
	e.log().Info("incentive schedule set", "collateral", schedule.CollateralDenom,
		"incentive", schedule.IncentiveDenom, "emission_per_second", schedule.EmissionPerSecond.String())
	return nil
}

// BalanceChange realizes the holder's pending rewards against their balance
// as it stood before the collateral mutation, then pins their snapshots to
// the advanced indices. Implements the ledger's collateral hook.
func (e *Engine) BalanceChange(user, accountID, denom string, amountScaled, totalScaled sdkmath.Int, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	var rangeErr error
	err := e.state.SchedulesForCollateral(denom, func(schedule *Schedule) bool {
		if rangeErr = e.settleUser(user, accountID, schedule, amountScaled, totalScaled, now); rangeErr != nil {
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func (e *Engine) settleUser(user, accountID string, schedule *Schedule, amountScaled, totalScaled sdkmath.Int, now uint64) error {
	state, err := e.loadState(schedule.CollateralDenom, schedule.IncentiveDenom, now)
	if err != nil {
		return err
	}
	state.advanceIndex(schedule, totalScaled, now)
	if err := e.state.PutIncentiveState(state); err != nil {
		return err
	}

	userIndex, err := e.state.GetUserIndex(user, accountID, schedule.CollateralDenom, schedule.IncentiveDenom)
	if err != nil {
		return err
	}
	if userIndex.IsNil() {
		userIndex = sdkmath.LegacyZeroDec()
	}
	if state.Index.GT(userIndex) && amountScaled.IsPositive() {
		pending := state.Index.Sub(userIndex).MulInt(amountScaled).TruncateInt()
		if pending.IsPositive() {
			accrued, err := e.state.GetAccrued(user, accountID, schedule.IncentiveDenom)
			if err != nil {
				return err
			}
			if accrued.IsNil() {
				accrued = sdkmath.ZeroInt()
			}
			if err := e.state.PutAccrued(user, accountID, schedule.IncentiveDenom, accrued.Add(pending)); err != nil {
				return err
			}
		}
	}
	return e.state.PutUserIndex(user, accountID, schedule.CollateralDenom, schedule.IncentiveDenom, state.Index)
}

// ClaimRewards realizes all pending rewards for the claimant's current
// collateral balances and pays out everything accrued. Returns the coins
// paid.
func (e *Engine) ClaimRewards(caller, accountID, recipient string, now uint64) ([]coin.Coin, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if recipient == "" {
		recipient = caller
	}
	if e.collaterals != nil {
		var srcErr error
		err := e.collaterals.ScaledBalances(caller, accountID, func(denom string, amountScaled, totalScaled sdkmath.Int) bool {
			if srcErr = e.BalanceChange(caller, accountID, denom, amountScaled, totalScaled, now); srcErr != nil {
				return false
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		if srcErr != nil {
			return nil, srcErr
		}
	}

	var claimed []coin.Coin
	var rangeErr error
	err := e.state.AccruedRange(caller, accountID, func(incentiveDenom string, amount sdkmath.Int) bool {
		if !amount.IsPositive() {
			return true
		}
		if rangeErr = e.bank.Send(e.moduleAddress, recipient, incentiveDenom, amount); rangeErr != nil {
			return false
		}
		if rangeErr = e.state.PutAccrued(caller, accountID, incentiveDenom, sdkmath.ZeroInt()); rangeErr != nil {
			return false
		}
		claimed = coin.Add(claimed, coin.Coin{Denom: incentiveDenom, Amount: amount})
		return true
	})
	if err != nil {
		return nil, err
	}
	if rangeErr != nil {
		return nil, rangeErr
	}
	if len(claimed) == 0 {
		return nil, ErrNoRewards
	}
	e.log().Debug("rewards claimed", "user", logging.MaskAddress(caller), "account_id", accountID)
	return claimed, nil
}

// UnclaimedRewards reports what a claim would pay right now without mutating
// any state.
func (e *Engine) UnclaimedRewards(user, accountID string, now uint64) ([]coin.Coin, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	totals := map[string]sdkmath.Int{}
	err := e.state.AccruedRange(user, accountID, func(incentiveDenom string, amount sdkmath.Int) bool {
		if amount.IsPositive() {
			totals[incentiveDenom] = amount
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if e.collaterals != nil {
		var srcErr error
		err := e.collaterals.ScaledBalances(user, accountID, func(denom string, amountScaled, totalScaled sdkmath.Int) bool {
			srcErr = e.state.SchedulesForCollateral(denom, func(schedule *Schedule) bool {
				state, serr := e.loadState(schedule.CollateralDenom, schedule.IncentiveDenom, now)
				if serr != nil {
					srcErr = serr
					return false
				}
				state.advanceIndex(schedule, totalScaled, now)
				userIndex, serr := e.state.GetUserIndex(user, accountID, schedule.CollateralDenom, schedule.IncentiveDenom)
				if serr != nil {
					srcErr = serr
					return false
				}
				if userIndex.IsNil() {
					userIndex = sdkmath.LegacyZeroDec()
				}
				if state.Index.GT(userIndex) && amountScaled.IsPositive() {
					pending := state.Index.Sub(userIndex).MulInt(amountScaled).TruncateInt()
					if pending.IsPositive() {
						prev, ok := totals[schedule.IncentiveDenom]
						if !ok {
							prev = sdkmath.ZeroInt()
						}
						totals[schedule.IncentiveDenom] = prev.Add(pending)
					}
				}
				return true
			})
			return srcErr == nil
		})
		if err != nil {
			return nil, err
		}
		if srcErr != nil {
			return nil, srcErr
		}
	}

	var out []coin.Coin
	for denom, amount := range totals {
		out = coin.Add(out, coin.Coin{Denom: denom, Amount: amount})
	}
	return out, nil
}

func (e *Engine) loadState(collateralDenom, incentiveDenom string, now uint64) (*State, error) {
	state, err := e.state.GetIncentiveState(collateralDenom, incentiveDenom)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &State{
			CollateralDenom: collateralDenom,
			IncentiveDenom:  incentiveDenom,
			Index:           sdkmath.LegacyZeroDec(),
			LastUpdated:     now,
		}
	}
	return state, nil
}
