package state

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"

	"redbank/native/incentives"
)

type storedSchedule struct {
	CollateralDenom   string
	IncentiveDenom    string
	EmissionPerSecond string
	StartTime         uint64
	Duration          uint64
}

type storedIncentiveState struct {
	CollateralDenom string
	IncentiveDenom  string
	Index           string
	LastUpdated     uint64
}

func (m *Manager) GetSchedule(collateralDenom, incentiveDenom string) (*incentives.Schedule, error) {
	raw, err := m.get(storageKey(prefixSchedule, collateralDenom, incentiveDenom))
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeSchedule(raw)
}

func (m *Manager) PutSchedule(schedule *incentives.Schedule) error {
	stored := storedSchedule{
		CollateralDenom:   schedule.CollateralDenom,
		IncentiveDenom:    schedule.IncentiveDenom,
		EmissionPerSecond: encodeInt(schedule.EmissionPerSecond),
		StartTime:         schedule.StartTime,
		Duration:          schedule.Duration,
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixSchedule, schedule.CollateralDenom, schedule.IncentiveDenom), raw)
}

func (m *Manager) SchedulesForCollateral(collateralDenom string, fn func(schedule *incentives.Schedule) bool) error {
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefixSchedule, collateralDenom), nil, func(key, value []byte) bool {
		schedule, derr := decodeSchedule(value)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(schedule)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func decodeSchedule(raw []byte) (*incentives.Schedule, error) {
	var stored storedSchedule
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	emission, err := decodeInt(stored.EmissionPerSecond)
	if err != nil {
		return nil, err
	}
	return &incentives.Schedule{
		CollateralDenom:   stored.CollateralDenom,
		IncentiveDenom:    stored.IncentiveDenom,
		EmissionPerSecond: emission,
		StartTime:         stored.StartTime,
		Duration:          stored.Duration,
	}, nil
}

func (m *Manager) GetIncentiveState(collateralDenom, incentiveDenom string) (*incentives.State, error) {
	raw, err := m.get(storageKey(prefixIncState, collateralDenom, incentiveDenom))
	if err != nil || raw == nil {
		return nil, err
	}
	var stored storedIncentiveState
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	index, err := decodeDec(stored.Index)
	if err != nil {
		return nil, err
	}
	return &incentives.State{
		CollateralDenom: stored.CollateralDenom,
		IncentiveDenom:  stored.IncentiveDenom,
		Index:           index,
		LastUpdated:     stored.LastUpdated,
	}, nil
}

func (m *Manager) PutIncentiveState(state *incentives.State) error {
	stored := storedIncentiveState{
		CollateralDenom: state.CollateralDenom,
		IncentiveDenom:  state.IncentiveDenom,
		Index:           encodeDec(state.Index),
		LastUpdated:     state.LastUpdated,
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixIncState, state.CollateralDenom, state.IncentiveDenom), raw)
}

func (m *Manager) GetUserIndex(user, accountID, collateralDenom, incentiveDenom string) (sdkmath.LegacyDec, error) {
	raw, err := m.get(storageKey(prefixUserIndex, user, accountID, collateralDenom, incentiveDenom))
	if err != nil || raw == nil {
		return sdkmath.LegacyDec{}, err
	}
	var stored string
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return decodeDec(stored)
}

func (m *Manager) PutUserIndex(user, accountID, collateralDenom, incentiveDenom string, index sdkmath.LegacyDec) error {
	raw, err := rlp.EncodeToBytes(encodeDec(index))
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixUserIndex, user, accountID, collateralDenom, incentiveDenom), raw)
}

func (m *Manager) GetAccrued(user, accountID, incentiveDenom string) (sdkmath.Int, error) {
	raw, err := m.get(storageKey(prefixAccrued, user, accountID, incentiveDenom))
	if err != nil || raw == nil {
		return sdkmath.Int{}, err
	}
	var stored string
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return sdkmath.Int{}, err
	}
	return decodeInt(stored)
}

func (m *Manager) PutAccrued(user, accountID, incentiveDenom string, amount sdkmath.Int) error {
	if amount.IsZero() {
		return m.db.Delete(storageKey(prefixAccrued, user, accountID, incentiveDenom))
	}
	raw, err := rlp.EncodeToBytes(encodeInt(amount))
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixAccrued, user, accountID, incentiveDenom), raw)
}

func (m *Manager) AccruedRange(user, accountID string, fn func(incentiveDenom string, amount sdkmath.Int) bool) error {
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefixAccrued, user, accountID), nil, func(key, value []byte) bool {
		var stored string
		if derr := rlp.DecodeBytes(value, &stored); derr != nil {
			rangeErr = derr
			return false
		}
		amount, derr := decodeInt(stored)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(lastSegment(key), amount)
	})
	if err != nil {
		return err
	}
	return rangeErr
}
