package creditmanager_test

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"

	"redbank/native/coin"
	"redbank/native/creditmanager"
)

// underwaterAccount opens a leveraged account: 1040 uatom collateral at price
// 2 against 1000 uusdc borrowed and withdrawn, then drops uatom to 1.3 so the
// liquidation health factor lands at 0.8112.
func underwaterAccount(t *testing.T) (*cmFixture, string) {
	t.Helper()
	f := newCmFixture(t)
	f.initMarket(t, "uatom", "2")
	f.initMarket(t, "uusdc", "1")
	f.seedLedger(t, "uusdc", 1_000)

	target := f.createAccount(t, "nhb1bobby")
	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uatom", 1_040)},
		creditmanager.BorrowAction{Coin: coin.New("uusdc", 1_000)},
		creditmanager.WithdrawAction{Coin: coin.New("uusdc", 1_000)},
	}
	if err := f.cm.ExecuteActions("nhb1bobby", target, actions, f.send(coin.New("uatom", 1_040))); err != nil {
		t.Fatalf("open target: %v", err)
	}

	f.oracle.prices["uatom"] = dec(t, "1.3")
	return f, target
}

func TestLiquidateCreditAccount(t *testing.T) {
	f, target := underwaterAccount(t)
	liquidator := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uusdc", 1_100)},
		creditmanager.LiquidateAction{
			TargetAccountID: target,
			DebtCoin:        coin.New("uusdc", 2_000),
			CollateralDenom: "uatom",
		},
	}
	if err := f.cm.ExecuteActions("nhb1alice", liquidator, actions, f.send(coin.New("uusdc", 1_100))); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	// The repay is bounded by the target health factor: (1.05*1000 - 811.2)
	// / (1.05 - 0.6*1.1) = 612. Seizure covers it plus the 10% bonus at the
	// 1.3 collateral price: ceil(612*1.1/1.3) = 518, of which 1 is fee.
	targetPos, err := f.cm.AccountPositions(target)
	if err != nil {
		t.Fatalf("target positions: %v", err)
	}
	if got := depositOf(targetPos, "uatom"); !got.Equal(sdkmath.NewInt(522)) {
		t.Fatalf("target collateral = %s, want 522", got)
	}
	if len(targetPos.Debts) != 1 {
		t.Fatalf("target debts = %+v", targetPos.Debts)
	}
	if !targetPos.Debts[0].Shares.Equal(sdkmath.NewInt(388_000_000)) {
		t.Fatalf("target debt shares = %s, want 388000000", targetPos.Debts[0].Shares)
	}
	if !targetPos.Debts[0].Amount.Equal(sdkmath.NewInt(388)) {
		t.Fatalf("target debt amount = %s, want 388", targetPos.Debts[0].Amount)
	}

	liqPos, err := f.cm.AccountPositions(liquidator)
	if err != nil {
		t.Fatalf("liquidator positions: %v", err)
	}
	if got := depositOf(liqPos, "uusdc"); !got.Equal(sdkmath.NewInt(488)) {
		t.Fatalf("liquidator uusdc = %s, want 488", got)
	}
	if got := depositOf(liqPos, "uatom"); !got.Equal(sdkmath.NewInt(517)) {
		t.Fatalf("liquidator uatom = %s, want 517", got)
	}
	if got := f.bank.balance(feeCollector, "uatom"); !got.Equal(sdkmath.NewInt(1)) {
		t.Fatalf("fee collector uatom = %s, want 1", got)
	}
}

func TestLiquidationRelatedWithdrawSkipsHealthCheck(t *testing.T) {
	f, target := underwaterAccount(t)

	// The liquidation variant keeps the batch deleveraging, so an account
	// above max LTV can still unwind.
	unwind := []creditmanager.Action{
		creditmanager.NewLiquidationWithdraw(coin.New("uatom", 40), false),
	}
	if err := f.cm.ExecuteActions("nhb1bobby", target, unwind, nil); err != nil {
		t.Fatalf("liquidation withdraw: %v", err)
	}
	if got := f.bank.balance("nhb1bobby", "uatom"); !got.Equal(sdkmath.NewInt(40)) {
		t.Fatalf("owner received %s, want 40", got)
	}
	positions, err := f.cm.AccountPositions(target)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uatom"); !got.Equal(sdkmath.NewInt(1_000)) {
		t.Fatalf("deposits = %s, want 1000", got)
	}

	// A plain withdraw of the same size re-asserts health and fails.
	plain := []creditmanager.Action{
		creditmanager.WithdrawAction{Coin: coin.New("uatom", 40)},
	}
	if err := f.cm.ExecuteActions("nhb1bobby", target, plain, nil); !errors.Is(err, creditmanager.ErrAboveMaxLTV) {
		t.Fatalf("expected ErrAboveMaxLTV, got %v", err)
	}
}

func TestLiquidationRelatedReclaimSkipsHealthCheck(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uatom", "2")
	f.initMarket(t, "uusdc", "1")
	f.seedLedger(t, "uusdc", 1_000)

	target := f.createAccount(t, "nhb1bobby")
	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uatom", 1_040)},
		creditmanager.LendAction{Coin: coin.New("uatom", 500)},
		creditmanager.BorrowAction{Coin: coin.New("uusdc", 1_000)},
		creditmanager.WithdrawAction{Coin: coin.New("uusdc", 1_000)},
	}
	if err := f.cm.ExecuteActions("nhb1bobby", target, actions, f.send(coin.New("uatom", 1_040))); err != nil {
		t.Fatalf("open target: %v", err)
	}
	f.oracle.prices["uatom"] = dec(t, "1.3")

	unwind := []creditmanager.Action{
		creditmanager.NewLiquidationReclaim(coin.New("uatom", 100), false),
	}
	if err := f.cm.ExecuteActions("nhb1bobby", target, unwind, nil); err != nil {
		t.Fatalf("liquidation reclaim: %v", err)
	}
	positions, err := f.cm.AccountPositions(target)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if got := depositOf(positions, "uatom"); !got.Equal(sdkmath.NewInt(640)) {
		t.Fatalf("deposits = %s, want 640", got)
	}
	if len(positions.Lends) != 1 || !positions.Lends[0].Shares.Equal(sdkmath.NewInt(400_000_000)) {
		t.Fatalf("lent shares = %+v, want 400000000", positions.Lends)
	}

	// A plain reclaim of the same size re-asserts health and fails.
	plain := []creditmanager.Action{
		creditmanager.ReclaimAction{Coin: coin.New("uatom", 100)},
	}
	if err := f.cm.ExecuteActions("nhb1bobby", target, plain, nil); !errors.Is(err, creditmanager.ErrAboveMaxLTV) {
		t.Fatalf("expected ErrAboveMaxLTV, got %v", err)
	}
}

func TestLiquidateVaultedAccount(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uatom", "2")
	f.initMarket(t, "uusdc", "1")
	f.seedLedger(t, "uusdc", 1_000)
	f.whitelistVault(t, vaultAddr)

	// All of the target's collateral sits in a vault: the seizure must force
	// the vault exit.
	target := f.createAccount(t, "nhb1bobby")
	open := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uatom", 1_040)},
		creditmanager.EnterVaultAction{VaultAddr: vaultAddr, Coin: coin.New("uatom", 1_040)},
		creditmanager.BorrowAction{Coin: coin.New("uusdc", 1_000)},
		creditmanager.WithdrawAction{Coin: coin.New("uusdc", 1_000)},
	}
	if err := f.cm.ExecuteActions("nhb1bobby", target, open, f.send(coin.New("uatom", 1_040))); err != nil {
		t.Fatalf("open target: %v", err)
	}
	f.oracle.prices["uatom"] = dec(t, "1.3")

	liquidator := f.createAccount(t, "nhb1alice")
	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uusdc", 1_100)},
		creditmanager.LiquidateAction{
			TargetAccountID: target,
			DebtCoin:        coin.New("uusdc", 2_000),
			CollateralDenom: "uatom",
		},
	}
	if err := f.cm.ExecuteActions("nhb1alice", liquidator, actions, f.send(coin.New("uusdc", 1_100))); err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	// Same repay and seizure as the deposit-backed case: 612 repaid, 518
	// seized, except the 518 comes out of the vault's 1040 unlocked shares.
	targetPos, err := f.cm.AccountPositions(target)
	if err != nil {
		t.Fatalf("target positions: %v", err)
	}
	if len(targetPos.Vaults) != 1 || !targetPos.Vaults[0].Unlocked.Equal(sdkmath.NewInt(522)) {
		t.Fatalf("vault position = %+v, want 522 unlocked", targetPos.Vaults)
	}
	if got := depositOf(targetPos, "uatom"); !got.IsZero() {
		t.Fatalf("target deposits = %s, want 0", got)
	}
	if len(targetPos.Debts) != 1 || !targetPos.Debts[0].Amount.Equal(sdkmath.NewInt(388)) {
		t.Fatalf("target debts = %+v, want 388", targetPos.Debts)
	}

	liqPos, err := f.cm.AccountPositions(liquidator)
	if err != nil {
		t.Fatalf("liquidator positions: %v", err)
	}
	if got := depositOf(liqPos, "uatom"); !got.Equal(sdkmath.NewInt(517)) {
		t.Fatalf("liquidator uatom = %s, want 517", got)
	}
	if got := depositOf(liqPos, "uusdc"); !got.Equal(sdkmath.NewInt(488)) {
		t.Fatalf("liquidator uusdc = %s, want 488", got)
	}
	if got := f.bank.balance(feeCollector, "uatom"); !got.Equal(sdkmath.NewInt(1)) {
		t.Fatalf("fee collector uatom = %s, want 1", got)
	}
}

func TestLiquidateHealthyAccountRejected(t *testing.T) {
	f, target := underwaterAccount(t)
	f.oracle.prices["uatom"] = dec(t, "2")
	liquidator := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.DepositAction{Coin: coin.New("uusdc", 1_100)},
		creditmanager.LiquidateAction{
			TargetAccountID: target,
			DebtCoin:        coin.New("uusdc", 2_000),
			CollateralDenom: "uatom",
		},
	}
	err := f.cm.ExecuteActions("nhb1alice", liquidator, actions, f.send(coin.New("uusdc", 1_100)))
	if !errors.Is(err, creditmanager.ErrNotLiquidatable) {
		t.Fatalf("expected ErrNotLiquidatable, got %v", err)
	}
}

func TestLiquidateOwnAccountRejected(t *testing.T) {
	f, target := underwaterAccount(t)
	actions := []creditmanager.Action{
		creditmanager.LiquidateAction{
			TargetAccountID: target,
			DebtCoin:        coin.New("uusdc", 100),
			CollateralDenom: "uatom",
		},
	}
	err := f.cm.ExecuteActions("nhb1bobby", target, actions, nil)
	if !errors.Is(err, creditmanager.ErrSelfLiquidation) {
		t.Fatalf("expected ErrSelfLiquidation, got %v", err)
	}
}

func TestLiquidateUnknownTargetRejected(t *testing.T) {
	f := newCmFixture(t)
	f.initMarket(t, "uusdc", "1")
	liquidator := f.createAccount(t, "nhb1alice")

	actions := []creditmanager.Action{
		creditmanager.LiquidateAction{
			TargetAccountID: "missing_acct",
			DebtCoin:        coin.New("uusdc", 100),
			CollateralDenom: "uatom",
		},
	}
	err := f.cm.ExecuteActions("nhb1alice", liquidator, actions, nil)
	if !errors.Is(err, creditmanager.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
