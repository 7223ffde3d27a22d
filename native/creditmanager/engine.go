package creditmanager

import (
	"log/slog"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	"redbank/native/coin"
	nativecommon "redbank/native/common"
	"redbank/native/params"
	"redbank/native/redbank"
)

type engineState interface {
	NextAccountSequence() (uint64, error)
	GetAccountKind(accountID string) (AccountKind, error)
	PutAccountKind(accountID string, kind AccountKind) error
	GetDeposit(accountID, denom string) (sdkmath.Int, error)
	PutDeposit(accountID, denom string, amount sdkmath.Int) error
	DeleteDeposit(accountID, denom string) error
	DepositsRange(accountID, start string, fn func(denom string, amount sdkmath.Int) bool) error
	GetDebtShares(accountID, denom string) (sdkmath.Int, error)
	PutDebtShares(accountID, denom string, shares sdkmath.Int) error
	DeleteDebtShares(accountID, denom string) error
	DebtSharesRange(accountID, start string, fn func(denom string, shares sdkmath.Int) bool) error
	GetLentShares(accountID, denom string) (sdkmath.Int, error)
	PutLentShares(accountID, denom string, shares sdkmath.Int) error
	DeleteLentShares(accountID, denom string) error
	LentSharesRange(accountID, start string, fn func(denom string, shares sdkmath.Int) bool) error
	GetVaultPosition(accountID, vaultAddr string) (*VaultPosition, error)
	PutVaultPosition(accountID string, pos *VaultPosition) error
	DeleteVaultPosition(accountID, vaultAddr string) error
	VaultPositionsRange(accountID, start string, fn func(pos *VaultPosition) bool) error
	GetStakedLP(accountID, denom string) (sdkmath.Int, error)
	PutStakedLP(accountID, denom string, amount sdkmath.Int) error
	DeleteStakedLP(accountID, denom string) error
	StakedLPRange(accountID, start string, fn func(denom string, amount sdkmath.Int) bool) error
	GetDebtSharePool(denom string) (*SharePool, error)
	PutDebtSharePool(pool *SharePool) error
	GetLentSharePool(denom string) (*SharePool, error)
	PutLentSharePool(pool *SharePool) error
	NextUnlockID() (uint64, error)
}

// MoneyMarket is the ledger surface the manager borrows from and lends into.
// The manager is one user of the ledger; per-account bookkeeping happens in
// the manager's own share pools.
type MoneyMarket interface {
	Deposit(caller, onBehalfOf, accountID, denom string, amount sdkmath.Int) (sdkmath.Int, error)
	Withdraw(caller, accountID, denom string, amount *sdkmath.Int, recipient string, liquidationRelated bool) (sdkmath.Int, error)
	Borrow(caller, denom string, amount sdkmath.Int, recipient string) error
	Repay(caller, onBehalfOf, denom string, amount sdkmath.Int) (sdkmath.Int, error)
	UserCollateral(user, accountID, denom string) (redbank.CollateralResponse, error)
	UserDebt(user, denom string) (redbank.DebtResponse, error)
	ScaledBalances(user, accountID string, fn func(denom string, amountScaled, totalScaled sdkmath.Int) bool) error
}

// ParamsSource resolves risk parameters for denoms and vaults.
type ParamsSource interface {
	AssetParams(denom string) (params.AssetParams, error)
	VaultConfig(addr string) (params.VaultConfig, error)
}

// Oracle is the price surface used for health checks and swap slippage.
type Oracle interface {
	Price(denom string) (sdkmath.LegacyDec, error)
	PriceForLiquidation(denom string) (sdkmath.LegacyDec, error)
}

// Swapper executes exact-in swaps out of the manager's balance. The swapper
// must revert when it cannot deliver at least minOut.
type Swapper interface {
	SwapExactIn(coinIn coin.Coin, denomOut string, minOut sdkmath.Int, route string) error
}

// VaultAdapter fronts the external vault contracts.
type VaultAdapter interface {
	Deposit(vaultAddr string, c coin.Coin) (sdkmath.Int, error)
	Withdraw(vaultAddr string, shares sdkmath.Int) error
	Lockup(vaultAddr string) (uint64, error)
	BaseDenom(vaultAddr string) (string, error)
	PreviewRedeem(vaultAddr string, shares sdkmath.Int) (coin.Coin, error)
}

// AccountNFT tracks account ownership externally.
type AccountNFT interface {
	Mint(owner, tokenID string) error
	OwnerOf(tokenID string) (string, error)
}

// Incentives accrues and pays out rewards against the manager's lent
// balances. The manager settles each account's proportional slice before any
// of its lent shares change hands.
type Incentives interface {
	BalanceChange(user, accountID, denom string, amountScaled, totalScaled sdkmath.Int, now uint64) error
	ClaimRewards(caller, accountID, recipient string, now uint64) ([]coin.Coin, error)
}

// Bank is the chain's coin transfer and balance primitive.
type Bank interface {
	Send(from, to, denom string, amount sdkmath.Int) error
	Balance(addr, denom string) (sdkmath.Int, error)
}

// Engine owns composite credit accounts and executes ordered action batches
// against them under a single health assertion.
type Engine struct {
	state       engineState
	moneyMarket MoneyMarket
	params      ParamsSource
	oracle      Oracle
	swapper     Swapper
	vaults      VaultAdapter
	nft         AccountNFT
	incentives  Incentives
	bank        Bank
	pauses      nativecommon.PauseView
	logger      *slog.Logger

	selfAddress        string
	feeCollector       string
	targetHealthFactor sdkmath.LegacyDec
	blockTime          uint64

	// collaborator addresses the reentrancy guard rejects as action targets
	collaborators map[string]struct{}
}

// NewEngine constructs a credit manager. selfAddr holds all account funds;
// feeCollector receives protocol liquidation fees.
func NewEngine(selfAddr, feeCollector string) *Engine {
	return &Engine{
		selfAddress:        strings.TrimSpace(selfAddr),
		feeCollector:       strings.TrimSpace(feeCollector),
		targetHealthFactor: sdkmath.LegacyNewDecWithPrec(105, 2),
		collaborators:      make(map[string]struct{}),
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetMoneyMarket wires the lending ledger.
func (e *Engine) SetMoneyMarket(mm MoneyMarket) { e.moneyMarket = mm }

// SetParamsSource wires the risk parameter registry.
func (e *Engine) SetParamsSource(src ParamsSource) { e.params = src }

// SetOracle wires the price source.
func (e *Engine) SetOracle(oracle Oracle) { e.oracle = oracle }

// SetSwapper wires the swap collaborator and registers its address with the
// reentrancy guard.
func (e *Engine) SetSwapper(addr string, s Swapper) {
	e.swapper = s
	e.registerCollaborator(addr)
}

// SetVaultAdapter wires the vault collaborator and registers its address
// with the reentrancy guard.
func (e *Engine) SetVaultAdapter(addr string, v VaultAdapter) {
	e.vaults = v
	e.registerCollaborator(addr)
}

// SetAccountNFT wires the ownership collaborator and registers its address
// with the reentrancy guard.
func (e *Engine) SetAccountNFT(addr string, nft AccountNFT) {
	e.nft = nft
	e.registerCollaborator(addr)
}

// SetIncentives wires the rewards collaborator and registers its address
// with the reentrancy guard.
func (e *Engine) SetIncentives(addr string, inc Incentives) {
	e.incentives = inc
	e.registerCollaborator(addr)
}

// SetBank wires the coin transfer primitive.
func (e *Engine) SetBank(bank Bank) { e.bank = bank }

// SetPauses wires the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetLogger attaches a structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) { e.logger = logger }

// SetTargetHealthFactor configures the post-liquidation health factor target.
func (e *Engine) SetTargetHealthFactor(thf sdkmath.LegacyDec) {
	if e == nil || thf.IsNil() || thf.LTE(sdkmath.LegacyOneDec()) {
		return
	}
	e.targetHealthFactor = thf
}

// SetBlockTime records the block timestamp in seconds.
func (e *Engine) SetBlockTime(now uint64) {
	if e == nil {
		return
	}
	e.blockTime = now
}

// RegisterCollaborator adds an address the reentrancy guard must reject.
func (e *Engine) RegisterCollaborator(addr string) {
	e.registerCollaborator(addr)
}

func (e *Engine) registerCollaborator(addr string) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	e.collaborators[addr] = struct{}{}
}

func (e *Engine) guardAddress(addr string) error {
	if _, ok := e.collaborators[addr]; ok {
		return errorsmod.Wrapf(ErrReentrancy, "%s", addr)
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errorsmod.Wrap(ErrAccountNotFound, "engine state not configured")
	}
	return nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// CreateAccount mints a credit account for the caller. An empty requestedID
// draws the next value from the auto-assigned sequence; a supplied id must
// pass token id validation.
func (e *Engine) CreateAccount(caller string, kind AccountKind, requestedID string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return "", err
	}
	switch kind {
	case AccountKindDefault, AccountKindHLS:
	case "":
		kind = AccountKindDefault
	default:
		return "", errorsmod.Wrapf(ErrInvalidTokenId, "unknown account kind %q", kind)
	}

	id := requestedID
	if id == "" {
		seq, err := e.state.NextAccountSequence()
		if err != nil {
			return "", err
		}
		id = strconv.FormatUint(seq, 10)
	} else if err := ValidateTokenID(id); err != nil {
		return "", err
	}

	if err := e.nft.Mint(caller, id); err != nil {
		return "", err
	}
	if err := e.state.PutAccountKind(id, kind); err != nil {
		return "", err
	}
	e.log().Info("credit account created", "account_id", id, "kind", string(kind))
	return id, nil
}

// AccountKindOf returns the risk mode an account was minted with.
func (e *Engine) AccountKindOf(accountID string) (AccountKind, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	kind, err := e.state.GetAccountKind(accountID)
	if err != nil {
		return "", err
	}
	if kind == "" {
		return "", errorsmod.Wrapf(ErrAccountNotFound, "%s", accountID)
	}
	return kind, nil
}

func (e *Engine) requireOwner(caller, accountID string) error {
	owner, err := e.nft.OwnerOf(accountID)
	if err != nil {
		return errorsmod.Wrapf(ErrAccountNotFound, "%s", accountID)
	}
	if owner != caller {
		return errorsmod.Wrapf(ErrNotTokenOwner, "account %s", accountID)
	}
	return nil
}

func (e *Engine) accountDeposit(accountID, denom string) (sdkmath.Int, error) {
	amount, err := e.state.GetDeposit(accountID, denom)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if amount.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	return amount, nil
}

func (e *Engine) creditDeposit(accountID, denom string, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return nil
	}
	balance, err := e.accountDeposit(accountID, denom)
	if err != nil {
		return err
	}
	return e.state.PutDeposit(accountID, denom, balance.Add(amount))
}

func (e *Engine) debitDeposit(accountID, denom string, amount sdkmath.Int) error {
	balance, err := e.accountDeposit(accountID, denom)
	if err != nil {
		return err
	}
	if balance.LT(amount) {
		return errorsmod.Wrapf(ErrInsufficientFunds, "%s balance %s, need %s", denom, balance, amount)
	}
	remaining := balance.Sub(amount)
	if remaining.IsZero() {
		return e.state.DeleteDeposit(accountID, denom)
	}
	return e.state.PutDeposit(accountID, denom, remaining)
}

func (e *Engine) debtSharePool(denom string) (*SharePool, error) {
	pool, err := e.state.GetDebtSharePool(denom)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &SharePool{Denom: denom, TotalShares: sdkmath.ZeroInt()}
	}
	return pool, nil
}

func (e *Engine) lentSharePool(denom string) (*SharePool, error) {
	pool, err := e.state.GetLentSharePool(denom)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &SharePool{Denom: denom, TotalShares: sdkmath.ZeroInt()}
	}
	return pool, nil
}

// accountDebt values an account's debt shares in underlying terms, rounding
// up so the borrower can never repay less than the pool is owed.
func (e *Engine) accountDebt(accountID, denom string) (shares, amount sdkmath.Int, err error) {
	shares, err = e.state.GetDebtShares(accountID, denom)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if shares.IsNil() || shares.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	pool, err := e.debtSharePool(denom)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	total, err := e.moneyMarket.UserDebt(e.selfAddress, denom)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return shares, amountForShares(shares, pool.TotalShares, total.Amount, true), nil
}

// accountLent values an account's lent shares in underlying terms, rounding
// down so the pool keeps the dust.
func (e *Engine) accountLent(accountID, denom string) (shares, amount sdkmath.Int, err error) {
	shares, err = e.state.GetLentShares(accountID, denom)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if shares.IsNil() || shares.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), nil
	}
	pool, err := e.lentSharePool(denom)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	total, err := e.moneyMarket.UserCollateral(e.selfAddress, "", denom)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	return shares, amountForShares(shares, pool.TotalShares, total.Amount, false), nil
}

// settleLendIncentives realizes an account's pending lend rewards before its
// slice of the manager's pooled ledger collateral changes. The account's
// scaled balance is its share-proportional cut of the manager's aggregate
// position, measured against the market-wide scaled total the emission index
// runs on.
func (e *Engine) settleLendIncentives(accountID, denom string, accountShares sdkmath.Int) error {
	if e.incentives == nil {
		return nil
	}
	pool, err := e.lentSharePool(denom)
	if err != nil {
		return err
	}
	managerScaled := sdkmath.ZeroInt()
	totalScaled := sdkmath.ZeroInt()
	if err := e.moneyMarket.ScaledBalances(e.selfAddress, "", func(d string, amountScaled, marketScaled sdkmath.Int) bool {
		if d != denom {
			return true
		}
		managerScaled = amountScaled
		totalScaled = marketScaled
		return false
	}); err != nil {
		return err
	}
	accountScaled := sdkmath.ZeroInt()
	if !accountShares.IsNil() && accountShares.IsPositive() && pool.TotalShares.IsPositive() {
		accountScaled = managerScaled.Mul(accountShares).Quo(pool.TotalShares)
	}
	return e.incentives.BalanceChange(e.selfAddress, accountID, denom, accountScaled, totalScaled, e.blockTime)
}
