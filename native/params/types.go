package params

import (
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

// LiquidationBonus shapes the dynamic discount a liquidator earns on seized
// collateral. All fields are decimal ratios.
type LiquidationBonus struct {
	// StartingLB is the bonus applied the moment a position crosses its
	// liquidation threshold.
	StartingLB sdkmath.LegacyDec
	// Slope scales the bonus with how far the health factor has fallen
	// below one.
	Slope sdkmath.LegacyDec
	// MinLB floors the bonus so shallow liquidations stay profitable.
	MinLB sdkmath.LegacyDec
	// MaxLB caps the bonus so deep liquidations cannot strip the borrower.
	MaxLB sdkmath.LegacyDec
}

// HLSParams overrides the standard risk parameters for accounts running a
// high-leverage strategy. CorrelatedDenoms restricts which denoms may be
// borrowed against collateral held under the strategy.
type HLSParams struct {
	MaxLoanToValue       sdkmath.LegacyDec
	LiquidationThreshold sdkmath.LegacyDec
	CorrelatedDenoms     []string
}

// AssetParams is the per-denom risk configuration consumed by the red bank,
// the health model and the credit manager.
type AssetParams struct {
	Denom                  string
	MaxLoanToValue         sdkmath.LegacyDec
	LiquidationThreshold   sdkmath.LegacyDec
	LiquidationBonus       LiquidationBonus
	ProtocolLiquidationFee sdkmath.LegacyDec
	DepositCap             sdkmath.Int
	DepositEnabled         bool
	BorrowEnabled          bool
	Whitelisted            bool
	HLS                    *HLSParams
}

// VaultConfig is the per-vault risk configuration used for vault positions
// held inside credit accounts.
type VaultConfig struct {
	Addr                 string
	DepositCap           sdkmath.Int
	MaxLoanToValue       sdkmath.LegacyDec
	LiquidationThreshold sdkmath.LegacyDec
	Whitelisted          bool
	HLS                  *HLSParams
}

var (
	decZero        = sdkmath.LegacyZeroDec()
	decOne         = sdkmath.LegacyOneDec()
	decTenth       = sdkmath.LegacyNewDecWithPrec(1, 1)  // 0.1
	decFiveHundr   = sdkmath.LegacyNewDecWithPrec(5, 2)  // 0.05
	decThreeTenths = sdkmath.LegacyNewDecWithPrec(3, 1)  // 0.3
	decFive        = sdkmath.LegacyNewDec(5)
)

func validDenom(denom string) bool {
	denom = strings.TrimSpace(denom)
	if len(denom) < 3 || len(denom) > 128 {
		return false
	}
	for _, r := range denom {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '/' || r == ':' || r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

func checkLtvPair(maxLtv, threshold sdkmath.LegacyDec) error {
	if maxLtv.IsNegative() || maxLtv.GTE(decOne) {
		return errorsmod.Wrapf(ErrValidation, "max_loan_to_value %s must be in [0, 1)", maxLtv)
	}
	if threshold.GT(decOne) {
		return errorsmod.Wrapf(ErrValidation, "liquidation_threshold %s must be <= 1", threshold)
	}
	if threshold.LTE(maxLtv) {
		return errorsmod.Wrapf(ErrValidation,
			"liquidation_threshold %s must exceed max_loan_to_value %s", threshold, maxLtv)
	}
	return nil
}

// Validate enforces the bonus parameter ranges.
func (b LiquidationBonus) Validate() error {
	if b.StartingLB.IsNegative() || b.StartingLB.GT(decTenth) {
		return errorsmod.Wrapf(ErrValidation, "starting_lb %s must be in [0, 0.1]", b.StartingLB)
	}
	if b.Slope.LT(decOne) || b.Slope.GT(decFive) {
		return errorsmod.Wrapf(ErrValidation, "slope %s must be in [1, 5]", b.Slope)
	}
	if b.MinLB.IsNegative() || b.MinLB.GT(decTenth) {
		return errorsmod.Wrapf(ErrValidation, "min_lb %s must be in [0, 0.1]", b.MinLB)
	}
	if b.MaxLB.LT(decFiveHundr) || b.MaxLB.GT(decThreeTenths) {
		return errorsmod.Wrapf(ErrValidation, "max_lb %s must be in [0.05, 0.3]", b.MaxLB)
	}
	if b.MinLB.GT(b.MaxLB) {
		return errorsmod.Wrapf(ErrValidation, "min_lb %s must not exceed max_lb %s", b.MinLB, b.MaxLB)
	}
	return nil
}

// Validate enforces the HLS override ranges.
func (h *HLSParams) Validate() error {
	if h == nil {
		return nil
	}
	if err := checkLtvPair(h.MaxLoanToValue, h.LiquidationThreshold); err != nil {
		return err
	}
	for _, denom := range h.CorrelatedDenoms {
		if !validDenom(denom) {
			return errorsmod.Wrapf(ErrInvalidDenom, "hls correlation %q", denom)
		}
	}
	return nil
}

// Validate enforces every asset param invariant.
func (p AssetParams) Validate() error {
	if !validDenom(p.Denom) {
		return errorsmod.Wrapf(ErrInvalidDenom, "%q", p.Denom)
	}
	if err := checkLtvPair(p.MaxLoanToValue, p.LiquidationThreshold); err != nil {
		return err
	}
	if err := p.LiquidationBonus.Validate(); err != nil {
		return err
	}
	if p.ProtocolLiquidationFee.IsNegative() || p.ProtocolLiquidationFee.GTE(decOne) {
		return errorsmod.Wrapf(ErrValidation,
			"protocol_liquidation_fee %s must be in [0, 1)", p.ProtocolLiquidationFee)
	}
	if p.DepositCap.IsNil() || p.DepositCap.IsNegative() {
		return errorsmod.Wrap(ErrValidation, "deposit_cap must be non-negative")
	}
	return p.HLS.Validate()
}

// Validate enforces every vault config invariant.
func (v VaultConfig) Validate() error {
	if strings.TrimSpace(v.Addr) == "" {
		return errorsmod.Wrap(ErrValidation, "vault address must not be empty")
	}
	if err := checkLtvPair(v.MaxLoanToValue, v.LiquidationThreshold); err != nil {
		return err
	}
	if v.DepositCap.IsNil() || v.DepositCap.IsNegative() {
		return errorsmod.Wrap(ErrValidation, "deposit_cap must be non-negative")
	}
	return v.HLS.Validate()
}

// Clone returns a deep copy so registry reads cannot alias stored state.
func (p AssetParams) Clone() AssetParams {
	clone := p
	if p.HLS != nil {
		hls := *p.HLS
		hls.CorrelatedDenoms = append([]string(nil), p.HLS.CorrelatedDenoms...)
		clone.HLS = &hls
	}
	return clone
}

// Clone returns a deep copy of the vault config.
func (v VaultConfig) Clone() VaultConfig {
	clone := v
	if v.HLS != nil {
		hls := *v.HLS
		hls.CorrelatedDenoms = append([]string(nil), v.HLS.CorrelatedDenoms...)
		clone.HLS = &hls
	}
	return clone
}
