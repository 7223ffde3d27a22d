package creditmanager

import errorsmod "cosmossdk.io/errors"

const moduleName = "creditmanager"

var (
	ErrNotTokenOwner        = errorsmod.Register(moduleName, 2, "caller does not own the credit account")
	ErrAccountNotFound      = errorsmod.Register(moduleName, 3, "credit account not found")
	ErrInvalidTokenId       = errorsmod.Register(moduleName, 4, "invalid account token id")
	ErrExternalInvocation   = errorsmod.Register(moduleName, 5, "callbacks may only be invoked internally")
	ErrNotWhitelisted       = errorsmod.Register(moduleName, 6, "denom or vault is not whitelisted")
	ErrNoAmount             = errorsmod.Register(moduleName, 7, "amount must be positive")
	ErrInsufficientFunds    = errorsmod.Register(moduleName, 8, "insufficient account balance")
	ErrNoDebt               = errorsmod.Register(moduleName, 9, "no outstanding debt")
	ErrFundsMismatch        = errorsmod.Register(moduleName, 10, "sent funds do not match actions")
	ErrExtraFundsReceived   = errorsmod.Register(moduleName, 11, "extra funds received")
	ErrBalanceChange        = errorsmod.Register(moduleName, 12, "coin balance changed against expectation")
	ErrAboveMaxLTV          = errorsmod.Register(moduleName, 13, "account is above max loan-to-value after actions")
	ErrNotLiquidatable      = errorsmod.Register(moduleName, 14, "account is not liquidatable")
	ErrVaultAccountNotFound = errorsmod.Register(moduleName, 15, "vault position not found")
	ErrUnlockNotReady       = errorsmod.Register(moduleName, 16, "unlocking position has not matured")
	ErrReentrancy           = errorsmod.Register(moduleName, 17, "action targets a configured collaborator")
	ErrSelfLiquidation      = errorsmod.Register(moduleName, 18, "cannot liquidate own account")
	ErrSlippageExceeded     = errorsmod.Register(moduleName, 19, "swap output below slippage minimum")
	ErrMissingVaultValue    = errorsmod.Register(moduleName, 20, "vault did not report a position value")
	ErrUnknownAction        = errorsmod.Register(moduleName, 21, "unknown action variant")
)
