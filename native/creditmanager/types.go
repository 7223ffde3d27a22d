package creditmanager

import (
	sdkmath "cosmossdk.io/math"

	"redbank/native/coin"
)

// AccountKind selects which risk parameters apply to an account's health.
type AccountKind string

const (
	AccountKindDefault AccountKind = "default"
	AccountKindHLS     AccountKind = "high_levered_strategy"
)

// Action is one step of an account batch. Variants are processed strictly in
// order; external-call variants schedule a balance callback that settles
// before the next action runs.
type Action interface {
	isAction()
}

// DepositAction credits sent funds to the account.
type DepositAction struct {
	Coin coin.Coin
}

// WithdrawAction releases account funds to the owner. All withdraws the full
// balance of the denom.
type WithdrawAction struct {
	Coin               coin.Coin
	All                bool
	liquidationRelated bool
}

// BorrowAction draws funds from the money market into the account.
type BorrowAction struct {
	Coin coin.Coin
}

// RepayAction pays down debt from the account's deposits. A non-empty
// OnBehalfOf repays another account's debt instead.
type RepayAction struct {
	Coin       coin.Coin
	All        bool
	OnBehalfOf string
}

// LendAction moves account funds into the money market to earn yield.
type LendAction struct {
	Coin coin.Coin
}

// ReclaimAction pulls lent funds back into the account. All reclaims the
// full lent balance of the denom.
type ReclaimAction struct {
	Coin               coin.Coin
	All                bool
	liquidationRelated bool
}

// NewLiquidationWithdraw builds the withdraw variant dispatched while a
// liquidated account unwinds. It keeps the batch deleveraging and prices the
// ledger leg off the liquidation feed.
func NewLiquidationWithdraw(c coin.Coin, all bool) WithdrawAction {
	return WithdrawAction{Coin: c, All: all, liquidationRelated: true}
}

// NewLiquidationReclaim is the reclaim counterpart of NewLiquidationWithdraw.
func NewLiquidationReclaim(c coin.Coin, all bool) ReclaimAction {
	return ReclaimAction{Coin: c, All: all, liquidationRelated: true}
}

// EnterVaultAction deposits account funds into a vault position.
type EnterVaultAction struct {
	VaultAddr string
	Coin      coin.Coin
}

// ExitVaultAction redeems unlocked vault shares back into coins.
type ExitVaultAction struct {
	VaultAddr string
	Amount    sdkmath.Int
}

// RequestVaultUnlockAction starts the lockup clock on locked vault shares.
type RequestVaultUnlockAction struct {
	VaultAddr string
	Amount    sdkmath.Int
}

// WithdrawFromVaultAction redeems a matured unlocking slot.
type WithdrawFromVaultAction struct {
	VaultAddr string
	UnlockID  uint64
}

// SwapExactInAction swaps account funds through the configured swapper.
type SwapExactInAction struct {
	CoinIn   coin.Coin
	All      bool
	DenomOut string
	Slippage sdkmath.LegacyDec
	Route    string
}

// LiquidateAction repays part of an unhealthy account's debt from the
// executing account in exchange for discounted collateral.
type LiquidateAction struct {
	TargetAccountID string
	DebtCoin        coin.Coin
	CollateralDenom string
}

// ClaimRewardsAction collects accrued incentive rewards into the account.
type ClaimRewardsAction struct{}

// StakeLPAction moves an LP deposit into the staked bucket.
type StakeLPAction struct {
	Coin coin.Coin
}

// UnstakeLPAction moves staked LP back into deposits.
type UnstakeLPAction struct {
	Coin coin.Coin
	All  bool
}

func (DepositAction) isAction()            {}
func (WithdrawAction) isAction()           {}
func (BorrowAction) isAction()             {}
func (RepayAction) isAction()              {}
func (LendAction) isAction()               {}
func (ReclaimAction) isAction()            {}
func (EnterVaultAction) isAction()         {}
func (ExitVaultAction) isAction()          {}
func (RequestVaultUnlockAction) isAction() {}
func (WithdrawFromVaultAction) isAction()  {}
func (SwapExactInAction) isAction()        {}
func (LiquidateAction) isAction()          {}
func (ClaimRewardsAction) isAction()       {}
func (StakeLPAction) isAction()            {}
func (UnstakeLPAction) isAction()          {}

// BalanceDirection is the asserted sign of a two-phase balance delta.
type BalanceDirection int

const (
	BalanceIncrease BalanceDirection = iota
	BalanceDecrease
)

// CallbackMsg is a self-addressed follow-up step. Only the manager itself may
// produce or invoke one.
type CallbackMsg interface {
	isCallback()
}

// UpdateCoinBalance re-queries a denom balance after an external call and
// credits or debits the account with the observed delta.
type UpdateCoinBalance struct {
	AccountID       string
	Denom           string
	PreviousBalance sdkmath.Int
	Change          BalanceDirection
}

// AssertHealthFactor fails the batch when the account ends above max LTV.
type AssertHealthFactor struct {
	AccountID string
}

func (UpdateCoinBalance) isCallback()  {}
func (AssertHealthFactor) isCallback() {}

// SharesPosition reports a share-pool position in both share and present
// underlying terms.
type SharesPosition struct {
	Denom  string
	Shares sdkmath.Int
	Amount sdkmath.Int
}

// UnlockingSlot is one maturing tranche of a vault position.
type UnlockingSlot struct {
	ID          uint64
	Amount      sdkmath.Int
	ReleaseTime uint64
}

// VaultPosition tracks an account's shares in one vault across the three
// lifecycle states.
type VaultPosition struct {
	VaultAddr string
	Unlocked  sdkmath.Int
	Locked    sdkmath.Int
	Unlocking []UnlockingSlot
}

// Clone returns a deep copy of the vault position.
func (v *VaultPosition) Clone() *VaultPosition {
	if v == nil {
		return nil
	}
	clone := *v
	clone.Unlocking = make([]UnlockingSlot, len(v.Unlocking))
	copy(clone.Unlocking, v.Unlocking)
	return &clone
}

// TotalShares sums all shares regardless of lifecycle state.
func (v *VaultPosition) TotalShares() sdkmath.Int {
	total := v.Unlocked.Add(v.Locked)
	for _, slot := range v.Unlocking {
		total = total.Add(slot.Amount)
	}
	return total
}

// SharePool is the manager-wide share denominator for one denom.
type SharePool struct {
	Denom       string
	TotalShares sdkmath.Int
}

// Positions is the full composite position of one credit account.
type Positions struct {
	AccountID string
	Kind      AccountKind
	Deposits  []coin.Coin
	Debts     []SharesPosition
	Lends     []SharesPosition
	Vaults    []VaultPosition
	StakedLP  []coin.Coin
}
