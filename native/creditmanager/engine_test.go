package creditmanager_test

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"

	"redbank/core/state"
	"redbank/native/coin"
	"redbank/native/creditmanager"
	"redbank/native/params"
	"redbank/native/redbank"
	"redbank/storage"
)

const (
	cmAddr       = "nhb1creditmanager"
	rbAddr       = "nhb1redbank"
	feeCollector = "nhb1fees"
	ownerAddr    = "nhb1owner"
	nftAddr      = "nhb1accountnft"
	swapAddr     = "nhb1swapper"
	adapterAddr  = "nhb1vaultadapter"
	vaultAddr    = "nhb1vault01"

	t0 = uint64(1_000_000)
)

func dec(t *testing.T, s string) sdkmath.LegacyDec {
	t.Helper()
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

type mockBank struct {
	balances map[string]map[string]sdkmath.Int
}

func newMockBank() *mockBank {
	return &mockBank{balances: make(map[string]map[string]sdkmath.Int)}
}

func (b *mockBank) mint(addr, denom string, amount int64) {
	if b.balances[addr] == nil {
		b.balances[addr] = make(map[string]sdkmath.Int)
	}
	b.balances[addr][denom] = b.balance(addr, denom).AddRaw(amount)
}

func (b *mockBank) balance(addr, denom string) sdkmath.Int {
	if amounts, ok := b.balances[addr]; ok {
		if amount, ok := amounts[denom]; ok {
			return amount
		}
	}
	return sdkmath.ZeroInt()
}

func (b *mockBank) Balance(addr, denom string) (sdkmath.Int, error) {
	return b.balance(addr, denom), nil
}

func (b *mockBank) Send(from, to, denom string, amount sdkmath.Int) error {
	have := b.balance(from, denom)
	if have.LT(amount) {
		return errors.New("insufficient bank balance")
	}
	if b.balances[from] == nil {
		b.balances[from] = make(map[string]sdkmath.Int)
	}
	if b.balances[to] == nil {
		b.balances[to] = make(map[string]sdkmath.Int)
	}
	b.balances[from][denom] = have.Sub(amount)
	b.balances[to][denom] = b.balance(to, denom).Add(amount)
	return nil
}

type mockOracle struct {
	prices map[string]sdkmath.LegacyDec
}

func (o *mockOracle) Price(denom string) (sdkmath.LegacyDec, error) {
	p, ok := o.prices[denom]
	if !ok {
		return sdkmath.LegacyDec{}, errors.New("no price")
	}
	return p, nil
}

func (o *mockOracle) PriceForLiquidation(denom string) (sdkmath.LegacyDec, error) {
	return o.Price(denom)
}

type mockNFT struct {
	owners map[string]string
}

func (n *mockNFT) Mint(owner, tokenID string) error {
	if _, exists := n.owners[tokenID]; exists {
		return errors.New("token id already minted")
	}
	n.owners[tokenID] = owner
	return nil
}

func (n *mockNFT) OwnerOf(tokenID string) (string, error) {
	owner, ok := n.owners[tokenID]
	if !ok {
		return "", errors.New("token id not found")
	}
	return owner, nil
}

// mockSwapper delivers a fixed amount of the out denom against any input.
type mockSwapper struct {
	bank *mockBank
	out  sdkmath.Int
}

func (s *mockSwapper) SwapExactIn(coinIn coin.Coin, denomOut string, minOut sdkmath.Int, route string) error {
	if err := s.bank.Send(cmAddr, swapAddr, coinIn.Denom, coinIn.Amount); err != nil {
		return err
	}
	return s.bank.Send(swapAddr, cmAddr, denomOut, s.out)
}

// mockVault mints shares one-to-one against its base denom.
type mockVault struct {
	bank   *mockBank
	base   string
	lockup uint64
}

func (v *mockVault) Deposit(addr string, c coin.Coin) (sdkmath.Int, error) {
	if err := v.bank.Send(cmAddr, addr, c.Denom, c.Amount); err != nil {
		return sdkmath.Int{}, err
	}
	return c.Amount, nil
}

func (v *mockVault) Withdraw(addr string, shares sdkmath.Int) error {
	return v.bank.Send(addr, cmAddr, v.base, shares)
}

func (v *mockVault) Lockup(addr string) (uint64, error) { return v.lockup, nil }

func (v *mockVault) BaseDenom(addr string) (string, error) { return v.base, nil }

func (v *mockVault) PreviewRedeem(addr string, shares sdkmath.Int) (coin.Coin, error) {
	return coin.Coin{Denom: v.base, Amount: shares}, nil
}

type mockIncentives struct {
	bank    *mockBank
	rewards []coin.Coin
}

func (i *mockIncentives) BalanceChange(user, accountID, denom string, amountScaled, totalScaled sdkmath.Int, now uint64) error {
	return nil
}

func (i *mockIncentives) ClaimRewards(caller, accountID, recipient string, now uint64) ([]coin.Coin, error) {
	for _, c := range i.rewards {
		i.bank.mint(recipient, c.Denom, c.Amount.Int64())
	}
	return i.rewards, nil
}

type cmFixture struct {
	cm       *creditmanager.Engine
	rb       *redbank.Engine
	registry *params.Registry
	state    *state.Manager
	bank     *mockBank
	oracle   *mockOracle
	nft      *mockNFT
	swapper  *mockSwapper
	vault    *mockVault
}

func newCmFixture(t *testing.T) *cmFixture {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	registry := params.NewRegistry(ownerAddr, "")
	registry.SetState(manager)
	bank := newMockBank()
	oracle := &mockOracle{prices: make(map[string]sdkmath.LegacyDec)}

	rb := redbank.NewEngine(rbAddr, feeCollector, ownerAddr)
	rb.SetState(manager)
	rb.SetOracle(oracle)
	rb.SetParamsSource(registry)
	rb.SetBank(bank)
	rb.SetBlockTime(t0)

	cm := creditmanager.NewEngine(cmAddr, feeCollector)
	cm.SetState(manager)
	cm.SetMoneyMarket(rb)
	cm.SetParamsSource(registry)
	cm.SetOracle(oracle)
	cm.SetBank(bank)
	cm.SetBlockTime(t0)

	nft := &mockNFT{owners: make(map[string]string)}
	cm.SetAccountNFT(nftAddr, nft)
	swapper := &mockSwapper{bank: bank, out: sdkmath.ZeroInt()}
	cm.SetSwapper(swapAddr, swapper)
	vault := &mockVault{bank: bank, base: "uatom"}
	cm.SetVaultAdapter(adapterAddr, vault)

	return &cmFixture{
		cm: cm, rb: rb, registry: registry, state: manager,
		bank: bank, oracle: oracle, nft: nft, swapper: swapper, vault: vault,
	}
}

func (f *cmFixture) assetParams(t *testing.T, denom string) params.AssetParams {
	t.Helper()
	return params.AssetParams{
		Denom:                denom,
		MaxLoanToValue:       dec(t, "0.5"),
		LiquidationThreshold: dec(t, "0.6"),
		LiquidationBonus: params.LiquidationBonus{
			StartingLB: dec(t, "0.01"),
			Slope:      dec(t, "2"),
			MinLB:      dec(t, "0.02"),
			MaxLB:      dec(t, "0.1"),
		},
		ProtocolLiquidationFee: dec(t, "0.02"),
		DepositCap:             sdkmath.NewInt(1_000_000_000_000),
		DepositEnabled:         true,
		BorrowEnabled:          true,
		Whitelisted:            true,
	}
}

// initMarket opens a ledger market for denom and grants the manager the
// uncollateralized credit line it borrows through.
func (f *cmFixture) initMarket(t *testing.T, denom, price string) {
	t.Helper()
	if err := f.registry.SetAssetParams(ownerAddr, f.assetParams(t, denom)); err != nil {
		t.Fatalf("set asset params: %v", err)
	}
	model := redbank.InterestRateModel{
		OptimalUtilization: dec(t, "0.8"),
		Base:               dec(t, "0"),
		Slope1:             dec(t, "0.07"),
		Slope2:             dec(t, "0.45"),
	}
	if err := f.rb.InitMarket(ownerAddr, denom, dec(t, "0.2"), model); err != nil {
		t.Fatalf("init market: %v", err)
	}
	f.oracle.prices[denom] = dec(t, price)
	if err := f.rb.UpdateUncollateralizedLoanLimit(ownerAddr, cmAddr, denom, sdkmath.NewInt(1_000_000_000_000)); err != nil {
		t.Fatalf("grant manager credit line: %v", err)
	}
}

// seedLedger deposits liquidity into the ledger from an outside lender.
func (f *cmFixture) seedLedger(t *testing.T, denom string, amount int64) {
	t.Helper()
	f.bank.mint("nhb1lender", denom, amount)
	if _, err := f.rb.Deposit("nhb1lender", "", "", denom, sdkmath.NewInt(amount)); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}
}

func (f *cmFixture) createAccount(t *testing.T, owner string) string {
	t.Helper()
	id, err := f.cm.CreateAccount(owner, "", "")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return id
}

// send simulates the funds transfer that accompanies a batch.
func (f *cmFixture) send(coins ...coin.Coin) []coin.Coin {
	for _, c := range coins {
		f.bank.mint(cmAddr, c.Denom, c.Amount.Int64())
	}
	return coins
}

func (f *cmFixture) advanceYear() {
	f.rb.SetBlockTime(t0 + redbank.SecondsPerYear)
	f.cm.SetBlockTime(t0 + redbank.SecondsPerYear)
}

func depositOf(p creditmanager.Positions, denom string) sdkmath.Int {
	return coin.AmountOf(p.Deposits, denom)
}

func TestCreateAccountSequencesAndValidation(t *testing.T) {
	f := newCmFixture(t)

	first := f.createAccount(t, "nhb1alice")
	second := f.createAccount(t, "nhb1bobby")
	if first != "1" || second != "2" {
		t.Fatalf("sequence ids = %q, %q, want 1, 2", first, second)
	}

	id, err := f.cm.CreateAccount("nhb1alice", creditmanager.AccountKindHLS, "alice_01")
	if err != nil {
		t.Fatalf("requested id: %v", err)
	}
	if id != "alice_01" {
		t.Fatalf("id = %q", id)
	}
	kind, err := f.cm.AccountKindOf("alice_01")
	if err != nil {
		t.Fatalf("account kind: %v", err)
	}
	if kind != creditmanager.AccountKindHLS {
		t.Fatalf("kind = %q", kind)
	}

	if _, err := f.cm.CreateAccount("nhb1carol", "", "1234"); !errors.Is(err, creditmanager.ErrInvalidTokenId) {
		t.Fatalf("expected ErrInvalidTokenId for numeric id, got %v", err)
	}
	if _, err := f.cm.CreateAccount("nhb1carol", "bogus_kind", ""); !errors.Is(err, creditmanager.ErrInvalidTokenId) {
		t.Fatalf("expected ErrInvalidTokenId for unknown kind, got %v", err)
	}
	if _, err := f.cm.CreateAccount("nhb1carol", "", "alice_01"); err == nil {
		t.Fatalf("duplicate id accepted")
	}
}

func TestExecuteRequiresAccountOwner(t *testing.T) {
	f := newCmFixture(t)
	account := f.createAccount(t, "nhb1alice")
	err := f.cm.ExecuteActions("nhb1mallory", account, nil, nil)
	if !errors.Is(err, creditmanager.ErrNotTokenOwner) {
		t.Fatalf("expected ErrNotTokenOwner, got %v", err)
	}
}

func TestDepositConsumesSentFunds(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uosmo", "1")
	account := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uosmo", 300)},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("uosmo", 300))); err != nil {
		t.Fatalf("execute: %v", err)
	}
	positions, err := f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uosmo"); !got.Equal(sdkmath.NewInt(300)) {
		t.Fatalf("deposit = %s, want 300", got)
	}

	// A deposit action not covered by sent funds is rejected.
	err = f.cm.ExecuteActions("nhb1alice", account, actions, nil)
	if !errors.Is(err, creditmanager.ErrFundsMismatch) {
		t.Fatalf("expected ErrFundsMismatch, got %v", err)
	}

	// Sent funds not consumed by any deposit are rejected.
	err = f.cm.ExecuteActions("nhb1alice", account, nil, f.send(coin.New("uosmo", 5)))
	if !errors.Is(err, creditmanager.ErrExtraFundsReceived) {
		t.Fatalf("expected ErrExtraFundsReceived, got %v", err)
	}
}

func TestBorrowRepayLifecycle(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uosmo", "1")
	f.seedLedger(t, "uosmo", 300)
	account := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uosmo", 300)},
		creditmanager.BorrowAction{Coin: coin.New("uosmo", 42)},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("uosmo", 300))); err != nil {
		t.Fatalf("execute: %v", err)
	}

	positions, err := f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uosmo"); !got.Equal(sdkmath.NewInt(342)) {
		t.Fatalf("deposits = %s, want 342", got)
	}
	if len(positions.Debts) != 1 || !positions.Debts[0].Shares.Equal(sdkmath.NewInt(42_000_000)) {
		t.Fatalf("debt shares = %+v, want 42000000", positions.Debts)
	}
	pool, err := f.cm.DebtSharePoolOf("uosmo")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if !pool.TotalShares.Equal(sdkmath.NewInt(42_000_000)) {
		t.Fatalf("pool shares = %s, want 42000000", pool.TotalShares)
	}

	// A year of interest grows the 42 owed to 43; repaying 50 clears the
	// debt and only 43 leaves the account.
	f.advanceYear()
	repay := []creditmanager.Action{
		creditmanager.RepayAction{Coin: coin.New("uosmo", 50)},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, repay, nil); err != nil {
		t.Fatalf("repay: %v", err)
	}
	positions, err = f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uosmo"); !got.Equal(sdkmath.NewInt(299)) {
		t.Fatalf("deposits after repay = %s, want 299", got)
	}
	if len(positions.Debts) != 0 {
		t.Fatalf("debt survived full repay: %+v", positions.Debts)
	}
	pool, err = f.cm.DebtSharePoolOf("uosmo")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if !pool.TotalShares.IsZero() {
		t.Fatalf("pool shares after full repay = %s", pool.TotalShares)
	}
}

func TestDebtSharesDiluteAsInterestAccrues(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uosmo", "1")
	f.seedLedger(t, "uosmo", 300)

	alice := f.createAccount(t, "nhb1alice")
	bobby := f.createAccount(t, "nhb1bobby")

	open := func(owner, account string) error {
		actions := []creditmanager.Action{
			creditmanager.DepositAction{Coin: coin.New("uosmo", 300)},
			creditmanager.BorrowAction{Coin: coin.New("uosmo", 50)},
		}
		return f.cm.ExecuteActions(owner, account, actions, f.send(coin.New("uosmo", 300)))
	}
	if err := open("nhb1alice", alice); err != nil {
		t.Fatalf("open alice: %v", err)
	}

	// Interest grows the manager's ledger debt from 50 to 51 before the
	// second account borrows the same 50.
	f.advanceYear()
	if err := open("nhb1bobby", bobby); err != nil {
		t.Fatalf("open bobby: %v", err)
	}

	alicePos, err := f.cm.AccountPositions(alice)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	bobbyPos, err := f.cm.AccountPositions(bobby)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if !alicePos.Debts[0].Shares.Equal(sdkmath.NewInt(50_000_000)) {
		t.Fatalf("alice shares = %s, want 50000000", alicePos.Debts[0].Shares)
	}
	// 50 coins against 51 owed: 50_000_000 * 50/51, rounded for the pool.
	if !bobbyPos.Debts[0].Shares.Equal(sdkmath.NewInt(49_019_608)) {
		t.Fatalf("bobby shares = %s, want 49019608", bobbyPos.Debts[0].Shares)
	}
	pool, err := f.cm.DebtSharePoolOf("uosmo")
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if want := sdkmath.NewInt(99_019_608); !pool.TotalShares.Equal(want) {
		t.Fatalf("pool shares = %s, want %s", pool.TotalShares, want)
	}
}

func TestRepayStillWorksAfterDelisting(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uosmo", "1")
	f.seedLedger(t, "uosmo", 300)
	account := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uosmo", 300)},
		creditmanager.BorrowAction{Coin: coin.New("uosmo", 40)},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("uosmo", 300))); err != nil {
		t.Fatalf("execute: %v", err)
	}

	delisted := f.assetParams(t, "uosmo")
	delisted.Whitelisted = false
	delisted.DepositEnabled = false
	delisted.BorrowEnabled = false
	if err := f.registry.SetAssetParams(ownerAddr, delisted); err != nil {
		t.Fatalf("delist: %v", err)
	}

	borrow := []creditmanager.Action{creditmanager.BorrowAction{Coin: coin.New("uosmo", 1)}}
	if err := f.cm.ExecuteActions("nhb1alice", account, borrow, nil); !errors.Is(err, creditmanager.ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted for borrow, got %v", err)
	}
	deposit := []creditmanager.Action{creditmanager.DepositAction{Coin: coin.New("uosmo", 1)}}
	if err := f.cm.ExecuteActions("nhb1alice", account, deposit, f.send(coin.New("uosmo", 1))); !errors.Is(err, creditmanager.ErrNotWhitelisted) {
		t.Fatalf("expected ErrNotWhitelisted for deposit, got %v", err)
	}

	// Winding the position down must never be blocked by the delisting.
	repay := []creditmanager.Action{creditmanager.RepayAction{Coin: coin.New("uosmo", 45)}}
	if err := f.cm.ExecuteActions("nhb1alice", account, repay, nil); err != nil {
		t.Fatalf("repay after delisting: %v", err)
	}
	positions, err := f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(positions.Debts) != 0 {
		t.Fatalf("debt survived repay: %+v", positions.Debts)
	}
	if got := depositOf(positions, "uosmo"); !got.Equal(sdkmath.NewInt(300)) {
		t.Fatalf("deposits = %s, want 300", got)
	}
}

func TestBorrowAboveCapacityFailsBatch(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uosmo", "1")
	f.seedLedger(t, "uosmo", 1_000)
	account := f.createAccount(t, "nhb1alice")

	// 300 deposited plus the borrow itself: 342 collateral at 0.5 LTV
	// supports 171, well under 400.
	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uosmo", 300)},
		creditmanager.BorrowAction{Coin: coin.New("uosmo", 400)},
	}
	err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("uosmo", 300)))
	if !errors.Is(err, creditmanager.ErrAboveMaxLTV) {
		t.Fatalf("expected ErrAboveMaxLTV, got %v", err)
	}
}

func TestWithdrawPaysOwner(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uosmo", "1")
	account := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uosmo", 100)},
		creditmanager.WithdrawAction{Coin: coin.New("uosmo", 60)},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("uosmo", 100))); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := f.bank.balance("nhb1alice", "uosmo"); !got.Equal(sdkmath.NewInt(60)) {
		t.Fatalf("owner received %s, want 60", got)
	}
	positions, err := f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uosmo"); !got.Equal(sdkmath.NewInt(40)) {
		t.Fatalf("deposits = %s, want 40", got)
	}
}

func TestLendReclaimRoundTrip(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uosmo", "1")
	account := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uosmo", 300)},
		creditmanager.LendAction{Coin: coin.New("uosmo", 200)},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("uosmo", 300))); err != nil {
		t.Fatalf("execute: %v", err)
	}
	positions, err := f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uosmo"); !got.Equal(sdkmath.NewInt(100)) {
		t.Fatalf("deposits = %s, want 100", got)
	}
	if len(positions.Lends) != 1 || !positions.Lends[0].Shares.Equal(sdkmath.NewInt(200_000_000)) {
		t.Fatalf("lent shares = %+v, want 200000000", positions.Lends)
	}
	if !positions.Lends[0].Amount.Equal(sdkmath.NewInt(200)) {
		t.Fatalf("lent amount = %s, want 200", positions.Lends[0].Amount)
	}

	reclaim := []creditmanager.Action{
		creditmanager.ReclaimAction{Coin: coin.New("uosmo", 0), All: true},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, reclaim, nil); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	positions, err = f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uosmo"); !got.Equal(sdkmath.NewInt(300)) {
		t.Fatalf("deposits after reclaim = %s, want 300", got)
	}
	if len(positions.Lends) != 0 {
		t.Fatalf("lent shares survived reclaim: %+v", positions.Lends)
	}
}

func TestCallbackRejectsExternalSender(t *testing.T) {
	f := newCmFixture(t)
	err := f.cm.Callback("nhb1mallory", creditmanager.AssertHealthFactor{AccountID: "1"})
	if !errors.Is(err, creditmanager.ErrExternalInvocation) {
		t.Fatalf("expected ErrExternalInvocation, got %v", err)
	}
}

func TestSwapExactIn(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uatom", "2")
	f.initMarket(t, "uusdc", "1")
	account := f.createAccount(t, "nhb1alice")
	f.bank.mint(swapAddr, "uusdc", 1_000)

	// 100 uatom at price 2 against uusdc at 1 with 1% slippage: at least
	// 198 must arrive.
	f.swapper.out = sdkmath.NewInt(200)
	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uatom", 100)},
		creditmanager.SwapExactInAction{
			CoinIn:   coin.New("uatom", 100),
			DenomOut: "uusdc",
			Slippage: dec(t, "0.01"),
		},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("uatom", 100))); err != nil {
		t.Fatalf("execute: %v", err)
	}
	positions, err := f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uusdc"); !got.Equal(sdkmath.NewInt(200)) {
		t.Fatalf("uusdc deposits = %s, want 200", got)
	}
	if got := depositOf(positions, "uatom"); !got.IsZero() {
		t.Fatalf("uatom deposits = %s, want 0", got)
	}
}

func TestSwapExactInSlippageExceeded(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uatom", "2")
	f.initMarket(t, "uusdc", "1")
	account := f.createAccount(t, "nhb1alice")
	f.bank.mint(swapAddr, "uusdc", 1_000)

	f.swapper.out = sdkmath.NewInt(150)
	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uatom", 100)},
		creditmanager.SwapExactInAction{
			CoinIn:   coin.New("uatom", 100),
			DenomOut: "uusdc",
			Slippage: dec(t, "0.01"),
		},
	}
	err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("uatom", 100)))
	if !errors.Is(err, creditmanager.ErrSlippageExceeded) {
		t.Fatalf("expected ErrSlippageExceeded, got %v", err)
	}
}

func TestStakeUnstakeLP(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "ulp", "1")
	account := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("ulp", 100)},
		creditmanager.StakeLPAction{Coin: coin.New("ulp", 80)},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, actions, f.send(coin.New("ulp", 100))); err != nil {
		t.Fatalf("execute: %v", err)
	}
	positions, err := f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := coin.AmountOf(positions.StakedLP, "ulp"); !got.Equal(sdkmath.NewInt(80)) {
		t.Fatalf("staked = %s, want 80", got)
	}
	if got := depositOf(positions, "ulp"); !got.Equal(sdkmath.NewInt(20)) {
		t.Fatalf("deposits = %s, want 20", got)
	}

	unstake := []creditmanager.Action{
		creditmanager.UnstakeLPAction{Coin: coin.New("ulp", 0), All: true},
	}
	if err := f.cm.ExecuteActions("nhb1alice", account, unstake, nil); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	positions, err = f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := coin.AmountOf(positions.StakedLP, "ulp"); !got.IsZero() {
		t.Fatalf("staked after unstake = %s", got)
	}
	if got := depositOf(positions, "ulp"); !got.Equal(sdkmath.NewInt(100)) {
		t.Fatalf("deposits after unstake = %s, want 100", got)
	}
}

func TestClaimRewardsCreditsAccount(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "umars", "1")
	account := f.createAccount(t, "nhb1alice")

	inc := &mockIncentives{bank: f.bank, rewards: []coin.Coin{coin.New("umars", 75)}}
	f.cm.SetIncentives("nhb1incentives", inc)

	actions := []creditmanager.Action{creditmanager.ClaimRewardsAction{}}
	if err := f.cm.ExecuteActions("nhb1alice", account, actions, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	positions, err := f.cm.AccountPositions(account)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "umars"); !got.Equal(sdkmath.NewInt(75)) {
		t.Fatalf("rewards credited = %s, want 75", got)
	}
}
