package params

import errorsmod "cosmossdk.io/errors"

const moduleName = "params"

var (
	// ErrValidation flags an asset or vault parameter outside its legal range.
	ErrValidation = errorsmod.Register(moduleName, 2, "invalid param")
	// ErrUnauthorized rejects callers without owner or emergency powers.
	ErrUnauthorized = errorsmod.Register(moduleName, 3, "unauthorized")
	// ErrMissingParams signals that no asset params exist for a denom.
	ErrMissingParams = errorsmod.Register(moduleName, 4, "missing asset params")
	// ErrMissingVaultConfig signals that no vault config exists for an address.
	ErrMissingVaultConfig = errorsmod.Register(moduleName, 5, "missing vault config")
	// ErrInvalidDenom rejects malformed denominations.
	ErrInvalidDenom = errorsmod.Register(moduleName, 6, "invalid denom")
)
