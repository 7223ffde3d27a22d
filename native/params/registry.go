package params

import (
	"strings"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

type registryState interface {
	GetAssetParams(denom string) (*AssetParams, error)
	PutAssetParams(params *AssetParams) error
	GetVaultConfig(addr string) (*VaultConfig, error)
	PutVaultConfig(config *VaultConfig) error
	DeleteVaultConfig(addr string) error
	AssetParamsRange(start string, fn func(params *AssetParams) bool) error
	VaultConfigsRange(start string, fn func(config *VaultConfig) bool) error
}

// Registry is the single source of truth for per-asset and per-vault risk
// parameters. Updates are gated by an owner address; an emergency address may
// only disable flows, never widen them.
type Registry struct {
	state     registryState
	owner     string
	emergency string
}

// NewRegistry constructs a registry gated by the given owner and emergency
// caller addresses.
func NewRegistry(owner, emergency string) *Registry {
	return &Registry{owner: strings.TrimSpace(owner), emergency: strings.TrimSpace(emergency)}
}

// SetState wires the registry to the external persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

// AssetParams returns the stored params for a denom.
func (r *Registry) AssetParams(denom string) (AssetParams, error) {
	if r == nil || r.state == nil {
		return AssetParams{}, errorsmod.Wrap(ErrMissingParams, "registry state not configured")
	}
	stored, err := r.state.GetAssetParams(denom)
	if err != nil {
		return AssetParams{}, err
	}
	if stored == nil {
		return AssetParams{}, errorsmod.Wrapf(ErrMissingParams, "%s", denom)
	}
	return stored.Clone(), nil
}

// VaultConfig returns the stored config for a vault address.
func (r *Registry) VaultConfig(addr string) (VaultConfig, error) {
	if r == nil || r.state == nil {
		return VaultConfig{}, errorsmod.Wrap(ErrMissingVaultConfig, "registry state not configured")
	}
	stored, err := r.state.GetVaultConfig(addr)
	if err != nil {
		return VaultConfig{}, err
	}
	if stored == nil {
		return VaultConfig{}, errorsmod.Wrapf(ErrMissingVaultConfig, "%s", addr)
	}
	return stored.Clone(), nil
}

// SetAssetParams validates and creates or replaces the params for a denom.
func (r *Registry) SetAssetParams(caller string, p AssetParams) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	stored := p.Clone()
	return r.state.PutAssetParams(&stored)
}

// SetVaultConfig validates and creates or replaces a vault config.
func (r *Registry) SetVaultConfig(caller string, v VaultConfig) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	stored := v.Clone()
	return r.state.PutVaultConfig(&stored)
}

// RemoveVaultConfig drops a vault from the registry.
func (r *Registry) RemoveVaultConfig(caller, addr string) error {
	if err := r.requireOwner(caller); err != nil {
		return err
	}
	return r.state.DeleteVaultConfig(addr)
}

// DisableBorrowing flips borrow_enabled off for a denom. Allowed for the
// owner and the emergency caller.
func (r *Registry) DisableBorrowing(caller, denom string) error {
	if err := r.requireOwnerOrEmergency(caller); err != nil {
		return err
	}
	stored, err := r.state.GetAssetParams(denom)
	if err != nil {
		return err
	}
	if stored == nil {
		return errorsmod.Wrapf(ErrMissingParams, "%s", denom)
	}
	stored.BorrowEnabled = false
	return r.state.PutAssetParams(stored)
}

// ZeroVaultMaxLTV drops a vault's max loan-to-value to zero. Allowed for the
// owner and the emergency caller.
func (r *Registry) ZeroVaultMaxLTV(caller, addr string) error {
	if err := r.requireOwnerOrEmergency(caller); err != nil {
		return err
	}
	stored, err := r.state.GetVaultConfig(addr)
	if err != nil {
		return err
	}
	if stored == nil {
		return errorsmod.Wrapf(ErrMissingVaultConfig, "%s", addr)
	}
	stored.MaxLoanToValue = sdkmath.LegacyZeroDec()
	return r.state.PutVaultConfig(stored)
}

// ZeroVaultDepositCap drops a vault's deposit cap to zero. Allowed for the
// owner and the emergency caller.
func (r *Registry) ZeroVaultDepositCap(caller, addr string) error {
	if err := r.requireOwnerOrEmergency(caller); err != nil {
		return err
	}
	stored, err := r.state.GetVaultConfig(addr)
	if err != nil {
		return err
	}
	if stored == nil {
		return errorsmod.Wrapf(ErrMissingVaultConfig, "%s", addr)
	}
	stored.DepositCap = sdkmath.ZeroInt()
	return r.state.PutVaultConfig(stored)
}

// AllAssetParams walks every stored asset params entry in denom order
// starting strictly after start.
func (r *Registry) AllAssetParams(start string, fn func(AssetParams) bool) error {
	if r == nil || r.state == nil {
		return errorsmod.Wrap(ErrMissingParams, "registry state not configured")
	}
	return r.state.AssetParamsRange(start, func(stored *AssetParams) bool {
		return fn(stored.Clone())
	})
}

// AllVaultConfigs walks every stored vault config in address order starting
// strictly after start.
func (r *Registry) AllVaultConfigs(start string, fn func(VaultConfig) bool) error {
	if r == nil || r.state == nil {
		return errorsmod.Wrap(ErrMissingVaultConfig, "registry state not configured")
	}
	return r.state.VaultConfigsRange(start, func(stored *VaultConfig) bool {
		return fn(stored.Clone())
	})
}

func (r *Registry) requireOwner(caller string) error {
	if r == nil || r.state == nil {
		return errorsmod.Wrap(ErrUnauthorized, "registry state not configured")
	}
	if strings.TrimSpace(caller) == "" || caller != r.owner {
		return errorsmod.Wrapf(ErrUnauthorized, "caller %s is not the registry owner", caller)
	}
	return nil
}

func (r *Registry) requireOwnerOrEmergency(caller string) error {
	if r == nil || r.state == nil {
		return errorsmod.Wrap(ErrUnauthorized, "registry state not configured")
	}
	caller = strings.TrimSpace(caller)
	if caller == "" || (caller != r.owner && caller != r.emergency) {
		return errorsmod.Wrapf(ErrUnauthorized, "caller %s holds neither owner nor emergency powers", caller)
	}
	return nil
}
