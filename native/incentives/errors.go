package incentives

import errorsmod "cosmossdk.io/errors"

const moduleName = "incentives"

var (
	ErrInvalidSchedule = errorsmod.Register(moduleName, 2, "invalid incentive schedule")
	ErrUnauthorized    = errorsmod.Register(moduleName, 3, "unauthorized")
	ErrNoRewards       = errorsmod.Register(moduleName, 4, "no rewards to claim")
)
