package liquidation

import errorsmod "cosmossdk.io/errors"

const moduleName = "liquidation"

var (
	// ErrNotLiquidatable rejects a liquidation against a healthy position.
	ErrNotLiquidatable = errorsmod.Register(moduleName, 2, "position is not liquidatable")
	// ErrInvalidLiquidation flags a degenerate outcome where exactly one of
	// debt repaid and collateral seized is zero.
	ErrInvalidLiquidation = errorsmod.Register(moduleName, 3, "invalid liquidation")
)
