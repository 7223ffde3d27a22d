package health

import errorsmod "cosmossdk.io/errors"

const moduleName = "health"

var (
	// ErrMissingPrice signals a position was supplied without a usable price.
	ErrMissingPrice = errorsmod.Register(moduleName, 2, "missing price")
	// ErrHlsCorrelationViolated signals a debt denom outside the correlation
	// set of a collateral held under a high-leverage strategy.
	ErrHlsCorrelationViolated = errorsmod.Register(moduleName, 3, "hls correlation violated")
)
