package state

import (
	"github.com/ethereum/go-ethereum/rlp"

	"redbank/native/params"
)

type storedHLS struct {
	Present              bool
	MaxLoanToValue       string
	LiquidationThreshold string
	CorrelatedDenoms     []string
}

type storedAssetParams struct {
	Denom                  string
	MaxLoanToValue         string
	LiquidationThreshold   string
	StartingLB             string
	Slope                  string
	MinLB                  string
	MaxLB                  string
	ProtocolLiquidationFee string
	DepositCap             string
	DepositEnabled         bool
	BorrowEnabled          bool
	Whitelisted            bool
	HLS                    storedHLS
}

type storedVaultConfig struct {
	Addr                 string
	DepositCap           string
	MaxLoanToValue       string
	LiquidationThreshold string
	Whitelisted          bool
	HLS                  storedHLS
}

func encodeHLS(h *params.HLSParams) storedHLS {
	if h == nil {
		return storedHLS{}
	}
	return storedHLS{
		Present:              true,
		MaxLoanToValue:       encodeDec(h.MaxLoanToValue),
		LiquidationThreshold: encodeDec(h.LiquidationThreshold),
		CorrelatedDenoms:     h.CorrelatedDenoms,
	}
}

func decodeHLS(stored storedHLS) (*params.HLSParams, error) {
	if !stored.Present {
		return nil, nil
	}
	h := &params.HLSParams{CorrelatedDenoms: stored.CorrelatedDenoms}
	var err error
	if h.MaxLoanToValue, err = decodeDec(stored.MaxLoanToValue); err != nil {
		return nil, err
	}
	if h.LiquidationThreshold, err = decodeDec(stored.LiquidationThreshold); err != nil {
		return nil, err
	}
	return h, nil
}

func (m *Manager) GetAssetParams(denom string) (*params.AssetParams, error) {
	raw, err := m.get(storageKey(prefixAssetParams, denom))
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeAssetParams(raw)
}

func (m *Manager) PutAssetParams(p *params.AssetParams) error {
	stored := storedAssetParams{
		Denom:                  p.Denom,
		MaxLoanToValue:         encodeDec(p.MaxLoanToValue),
		LiquidationThreshold:   encodeDec(p.LiquidationThreshold),
		StartingLB:             encodeDec(p.LiquidationBonus.StartingLB),
		Slope:                  encodeDec(p.LiquidationBonus.Slope),
		MinLB:                  encodeDec(p.LiquidationBonus.MinLB),
		MaxLB:                  encodeDec(p.LiquidationBonus.MaxLB),
		ProtocolLiquidationFee: encodeDec(p.ProtocolLiquidationFee),
		DepositCap:             encodeInt(p.DepositCap),
		DepositEnabled:         p.DepositEnabled,
		BorrowEnabled:          p.BorrowEnabled,
		Whitelisted:            p.Whitelisted,
		HLS:                    encodeHLS(p.HLS),
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixAssetParams, p.Denom), raw)
}

func (m *Manager) AssetParamsRange(start string, fn func(p *params.AssetParams) bool) error {
	var startKey []byte
	if start != "" {
		startKey = storageKey(prefixAssetParams, start)
	}
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefixAssetParams), startKey, func(key, value []byte) bool {
		p, derr := decodeAssetParams(value)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(p)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func decodeAssetParams(raw []byte) (*params.AssetParams, error) {
	var stored storedAssetParams
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	p := &params.AssetParams{
		Denom:          stored.Denom,
		DepositEnabled: stored.DepositEnabled,
		BorrowEnabled:  stored.BorrowEnabled,
		Whitelisted:    stored.Whitelisted,
	}
	var err error
	if p.MaxLoanToValue, err = decodeDec(stored.MaxLoanToValue); err != nil {
		return nil, err
	}
	if p.LiquidationThreshold, err = decodeDec(stored.LiquidationThreshold); err != nil {
		return nil, err
	}
	if p.LiquidationBonus.StartingLB, err = decodeDec(stored.StartingLB); err != nil {
		return nil, err
	}
	if p.LiquidationBonus.Slope, err = decodeDec(stored.Slope); err != nil {
		return nil, err
	}
	if p.LiquidationBonus.MinLB, err = decodeDec(stored.MinLB); err != nil {
		return nil, err
	}
	if p.LiquidationBonus.MaxLB, err = decodeDec(stored.MaxLB); err != nil {
		return nil, err
	}
	if p.ProtocolLiquidationFee, err = decodeDec(stored.ProtocolLiquidationFee); err != nil {
		return nil, err
	}
	if p.DepositCap, err = decodeInt(stored.DepositCap); err != nil {
		return nil, err
	}
	if p.HLS, err = decodeHLS(stored.HLS); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) GetVaultConfig(addr string) (*params.VaultConfig, error) {
	raw, err := m.get(storageKey(prefixVaultConfig, addr))
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeVaultConfig(raw)
}

func (m *Manager) PutVaultConfig(v *params.VaultConfig) error {
	stored := storedVaultConfig{
		Addr:                 v.Addr,
		DepositCap:           encodeInt(v.DepositCap),
		MaxLoanToValue:       encodeDec(v.MaxLoanToValue),
		LiquidationThreshold: encodeDec(v.LiquidationThreshold),
		Whitelisted:          v.Whitelisted,
		HLS:                  encodeHLS(v.HLS),
	}
	raw, err := rlp.EncodeToBytes(&stored)
	if err != nil {
		return err
	}
	return m.db.Put(storageKey(prefixVaultConfig, v.Addr), raw)
}

func (m *Manager) DeleteVaultConfig(addr string) error {
	return m.db.Delete(storageKey(prefixVaultConfig, addr))
}

func (m *Manager) VaultConfigsRange(start string, fn func(v *params.VaultConfig) bool) error {
	var startKey []byte
	if start != "" {
		startKey = storageKey(prefixVaultConfig, start)
	}
	var rangeErr error
	err := m.db.Iterate(rangePrefix(prefixVaultConfig), startKey, func(key, value []byte) bool {
		v, derr := decodeVaultConfig(value)
		if derr != nil {
			rangeErr = derr
			return false
		}
		return fn(v)
	})
	if err != nil {
		return err
	}
	return rangeErr
}

func decodeVaultConfig(raw []byte) (*params.VaultConfig, error) {
	var stored storedVaultConfig
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, err
	}
	v := &params.VaultConfig{Addr: stored.Addr, Whitelisted: stored.Whitelisted}
	var err error
	if v.DepositCap, err = decodeInt(stored.DepositCap); err != nil {
		return nil, err
	}
	if v.MaxLoanToValue, err = decodeDec(stored.MaxLoanToValue); err != nil {
		return nil, err
	}
	if v.LiquidationThreshold, err = decodeDec(stored.LiquidationThreshold); err != nil {
		return nil, err
	}
	if v.HLS, err = decodeHLS(stored.HLS); err != nil {
		return nil, err
	}
	return v, nil
}
