package redbank

import errorsmod "cosmossdk.io/errors"

const moduleName = "redbank"

var (
	ErrMarketNotFound          = errorsmod.Register(moduleName, 2, "market not found")
	ErrAssetAlreadyInitialized = errorsmod.Register(moduleName, 3, "asset already initialized")
	ErrNoAmount                = errorsmod.Register(moduleName, 4, "amount must be positive")
	ErrDepositNotEnabled       = errorsmod.Register(moduleName, 5, "deposits are not enabled")
	ErrBorrowNotEnabled        = errorsmod.Register(moduleName, 6, "borrowing is not enabled")
	ErrDepositCapExceeded      = errorsmod.Register(moduleName, 7, "deposit cap exceeded")
	ErrInsufficientLiquidity   = errorsmod.Register(moduleName, 8, "insufficient market liquidity")
	ErrUserNoCollateralBalance = errorsmod.Register(moduleName, 9, "user has no collateral balance")
	ErrInvalidWithdrawAmount   = errorsmod.Register(moduleName, 10, "withdraw amount exceeds balance")
	ErrAboveMaxLTV             = errorsmod.Register(moduleName, 11, "operation would leave account above max loan-to-value")
	ErrNotLiquidatable         = errorsmod.Register(moduleName, 12, "account is not liquidatable")
	ErrNoDebt                  = errorsmod.Register(moduleName, 13, "no outstanding debt")
	ErrUserHasCollateralizedDebt = errorsmod.Register(moduleName, 14,
		"user has outstanding collateralized debt in denom")
	ErrBorrowExceedsUncollateralizedLimit = errorsmod.Register(moduleName, 15,
		"borrow amount exceeds uncollateralized loan limit")
	ErrBorrowExceedsCollateral = errorsmod.Register(moduleName, 16,
		"borrow amount exceeds maximum allowed given current collateral value")
	ErrHealthFactorAfterDisabling = errorsmod.Register(moduleName, 17,
		"invalid health factor after disabling collateral")
	ErrUnauthorized         = errorsmod.Register(moduleName, 18, "unauthorized")
	ErrCannotLiquidateOwn   = errorsmod.Register(moduleName, 19, "cannot liquidate own position")
	ErrUncollateralizedDebt = errorsmod.Register(moduleName, 20,
		"uncollateralized debt cannot be liquidated")
	errInvalidModel = errorsmod.Register(moduleName, 21, "invalid interest rate model")
)
