package incentives

import sdkmath "cosmossdk.io/math"

// Schedule is one emission programme: EmissionPerSecond units of the
// incentive denom stream to holders of the collateral denom between StartTime
// and StartTime+Duration.
type Schedule struct {
	CollateralDenom   string
	IncentiveDenom    string
	EmissionPerSecond sdkmath.Int
	StartTime         uint64
	Duration          uint64
}

// EndTime is the second after which the schedule stops emitting.
func (s Schedule) EndTime() uint64 {
	return s.StartTime + s.Duration
}

// State is the cumulative reward index for one (collateral, incentive) pair.
type State struct {
	CollateralDenom string
	IncentiveDenom  string
	Index           sdkmath.LegacyDec
	LastUpdated     uint64
}

// advanceIndex accrues the emission window overlapping [s.LastUpdated, now]
// into the index, weighted by the scaled collateral supply over the window.
func (s *State) advanceIndex(schedule *Schedule, totalScaled sdkmath.Int, now uint64) {
	defer func() { s.LastUpdated = now }()
	if schedule == nil || now <= s.LastUpdated || !totalScaled.IsPositive() {
		return
	}
	from := s.LastUpdated
	if schedule.StartTime > from {
		from = schedule.StartTime
	}
	to := now
	if end := schedule.EndTime(); end < to {
		to = end
	}
	if to <= from {
		return
	}
	emitted := schedule.EmissionPerSecond.MulRaw(int64(to - from))
	s.Index = s.Index.Add(sdkmath.LegacyNewDecFromInt(emitted).QuoInt(totalScaled))
}
