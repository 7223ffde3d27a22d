package incentives_test

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"

	"redbank/core/state"
	"redbank/native/incentives"
	"redbank/storage"
)

const (
	moduleAddr = "nhb1incentives"
	ownerAddr  = "nhb1owner"
)

type mockBank struct {
	balances map[string]map[string]sdkmath.Int
}

func newMockBank() *mockBank {
	return &mockBank{balances: make(map[string]map[string]sdkmath.Int)}
}

func (b *mockBank) fund(addr, denom string, amount int64) {
	if b.balances[addr] == nil {
		b.balances[addr] = make(map[string]sdkmath.Int)
	}
	b.balances[addr][denom] = sdkmath.NewInt(amount)
}

func (b *mockBank) balance(addr, denom string) sdkmath.Int {
	if amounts, ok := b.balances[addr]; ok {
		if amount, ok := amounts[denom]; ok {
			return amount
		}
	}
	return sdkmath.ZeroInt()
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

// mockCollaterals serves one scaled balance per user in a single denom.
type mockCollaterals struct {
	denom       string
	amounts     map[string]sdkmath.Int
	totalScaled sdkmath.Int
}

func (c *mockCollaterals) ScaledBalances(user, accountID string, fn func(denom string, amountScaled, totalScaled sdkmath.Int) bool) error {
	amount, ok := c.amounts[user]
	if !ok || !amount.IsPositive() {
		return nil
	}
	fn(c.denom, amount, c.totalScaled)
	return nil
}

func newEngine(t *testing.T) (*incentives.Engine, *mockBank, *mockCollaterals) {
	t.Helper()
	engine := incentives.NewEngine(moduleAddr, ownerAddr)
	engine.SetState(state.NewManager(storage.NewMemDB()))
	bank := newMockBank()
	bank.fund(moduleAddr, "umars", 1_000_000)
	engine.SetBank(bank)
	collaterals := &mockCollaterals{
		denom:       "uatom",
		amounts:     make(map[string]sdkmath.Int),
		totalScaled: sdkmath.NewInt(1_000),
	}
	engine.SetCollateralSource(collaterals)
	return engine, bank, collaterals
}

func testSchedule() incentives.Schedule {
	return incentives.Schedule{
		CollateralDenom:   "uatom",
		IncentiveDenom:    "umars",
		EmissionPerSecond: sdkmath.NewInt(10),
		StartTime:         1_000,
		Duration:          100,
	}
}

func TestSetAssetIncentiveAuthorization(t *testing.T) {
	engine, _, _ := newEngine(t)
	err := engine.SetAssetIncentive("nhb1rando", testSchedule(), sdkmath.ZeroInt(), 1_000)
	if !errors.Is(err, incentives.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSetAssetIncentiveValidation(t *testing.T) {
	engine, _, _ := newEngine(t)

	s := testSchedule()
	s.Duration = 0
	if err := engine.SetAssetIncentive(ownerAddr, s, sdkmath.ZeroInt(), 1_000); !errors.Is(err, incentives.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for zero duration, got %v", err)
	}

	s = testSchedule()
	s.IncentiveDenom = ""
	if err := engine.SetAssetIncentive(ownerAddr, s, sdkmath.ZeroInt(), 1_000); !errors.Is(err, incentives.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for missing denom, got %v", err)
	}
}

func TestAccrualAcrossScheduleWindow(t *testing.T) {
	engine, bank, collaterals := newEngine(t)
	collaterals.amounts["nhb1alice"] = sdkmath.NewInt(1_000)

	if err := engine.SetAssetIncentive(ownerAddr, testSchedule(), sdkmath.NewInt(1_000), 1_000); err != nil {
		t.Fatalf("set schedule: %v", err)
	}

	// Half the window elapses: 50s * 10/s over 1000 scaled units.
	if err := engine.BalanceChange("nhb1alice", "", "uatom", sdkmath.NewInt(1_000), sdkmath.NewInt(1_000), 1_050); err != nil {
		t.Fatalf("balance change: %v", err)
	}
	pending, err := engine.UnclaimedRewards("nhb1alice", "", 1_050)
	if err != nil {
		t.Fatalf("unclaimed: %v", err)
	}
	if len(pending) != 1 || pending[0].Denom != "umars" || !pending[0].Amount.Equal(sdkmath.NewInt(500)) {
		t.Fatalf("pending = %v, want 500umars", pending)
	}

	// Claiming past the end realizes the remaining half and pays everything.
	claimed, err := engine.ClaimRewards("nhb1alice", "", "", 1_200)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || !claimed[0].Amount.Equal(sdkmath.NewInt(1_000)) {
		t.Fatalf("claimed = %v, want 1000umars", claimed)
	}
	if got := bank.balance("nhb1alice", "umars"); !got.Equal(sdkmath.NewInt(1_000)) {
		t.Fatalf("payout balance = %s, want 1000", got)
	}

	// Nothing left after the schedule end.
	if _, err := engine.ClaimRewards("nhb1alice", "", "", 1_300); !errors.Is(err, incentives.ErrNoRewards) {
		t.Fatalf("expected ErrNoRewards, got %v", err)
	}
}

func TestAccrualBeforeScheduleStart(t *testing.T) {
	engine, _, collaterals := newEngine(t)
	collaterals.amounts["nhb1alice"] = sdkmath.NewInt(1_000)

	if err := engine.SetAssetIncentive(ownerAddr, testSchedule(), sdkmath.NewInt(1_000), 900); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	if err := engine.BalanceChange("nhb1alice", "", "uatom", sdkmath.NewInt(1_000), sdkmath.NewInt(1_000), 950); err != nil {
		t.Fatalf("balance change: %v", err)
	}
	pending, err := engine.UnclaimedRewards("nhb1alice", "", 950)
	if err != nil {
		t.Fatalf("unclaimed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("rewards accrued before the window opened: %v", pending)
	}
}

func TestRewardsSplitProRata(t *testing.T) {
	engine, bank, collaterals := newEngine(t)
	collaterals.amounts["nhb1alice"] = sdkmath.NewInt(600)
	collaterals.amounts["nhb1bob"] = sdkmath.NewInt(400)

	if err := engine.SetAssetIncentive(ownerAddr, testSchedule(), sdkmath.NewInt(1_000), 1_000); err != nil {
		t.Fatalf("set schedule: %v", err)
	}

	for user, want := range map[string]int64{"nhb1alice": 600, "nhb1bob": 400} {
		claimed, err := engine.ClaimRewards(user, "", "", 1_100)
		if err != nil {
			t.Fatalf("claim %s: %v", user, err)
		}
		if len(claimed) != 1 || !claimed[0].Amount.Equal(sdkmath.NewInt(want)) {
			t.Fatalf("%s claimed %v, want %d", user, claimed, want)
		}
	}
	total := bank.balance("nhb1alice", "umars").Add(bank.balance("nhb1bob", "umars"))
	if !total.Equal(sdkmath.NewInt(1_000)) {
		t.Fatalf("total paid %s, want the full emission 1000", total)
	}
}

func TestClaimPaysToRecipient(t *testing.T) {
	engine, bank, collaterals := newEngine(t)
	collaterals.amounts["nhb1alice"] = sdkmath.NewInt(1_000)

	if err := engine.SetAssetIncentive(ownerAddr, testSchedule(), sdkmath.NewInt(1_000), 1_000); err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	if _, err := engine.ClaimRewards("nhb1alice", "", "nhb1vault", 1_100); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := bank.balance("nhb1vault", "umars"); !got.Equal(sdkmath.NewInt(1_000)) {
		t.Fatalf("recipient balance = %s, want 1000", got)
	}
	if got := bank.balance("nhb1alice", "umars"); !got.IsZero() {
		t.Fatalf("claimant balance = %s, want 0", got)
	}
}
