package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"redbank/storage"
)

// Key prefixes. Segments are joined with a NUL byte, which sorts below every
// character allowed in denoms and addresses, so per-prefix iteration yields
// ascending segment order.
const (
	prefixMarket        = "rb/market"
	prefixCollateral    = "rb/collateral"
	prefixDebt          = "rb/debt"
	prefixCreditLine    = "rb/creditline"
	prefixAssetParams   = "params/asset"
	prefixVaultConfig   = "params/vault"
	prefixSchedule      = "inc/schedule"
	prefixIncState      = "inc/state"
	prefixUserIndex     = "inc/userindex"
	prefixAccrued       = "inc/accrued"
	prefixAccountKind   = "cm/kind"
	prefixCmDeposit     = "cm/deposit"
	prefixCmDebtShares  = "cm/debtshares"
	prefixCmLentShares  = "cm/lentshares"
	prefixCmVault       = "cm/vault"
	prefixCmStakedLP    = "cm/stakedlp"
	prefixDebtSharePool = "cm/debtpool"
	prefixLentSharePool = "cm/lentpool"
	keyAccountSequence  = "cm/sequence"
	keyUnlockSequence   = "cm/unlockseq"
)

const keySeparator = byte(0)

// Manager persists every module's records in one key-value store. It
// implements the narrow state interfaces the engines are wired against.
type Manager struct {
	db storage.Database
}

// NewManager wraps a database handle.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func storageKey(parts ...string) []byte {
	var buf bytes.Buffer
	for i, part := range parts {
		if i > 0 {
			buf.WriteByte(keySeparator)
		}
		buf.WriteString(part)
	}
	return buf.Bytes()
}

// rangePrefix carries a trailing separator so sibling segments sharing a
// textual prefix cannot bleed into each other's range.
func rangePrefix(parts ...string) []byte {
	return append(storageKey(parts...), keySeparator)
}

// lastSegment extracts the final NUL-delimited segment of a stored key.
func lastSegment(key []byte) string {
	if i := bytes.LastIndexByte(key, keySeparator); i >= 0 {
		return string(key[i+1:])
	}
	return string(key)
}

func (m *Manager) get(key []byte) ([]byte, error) {
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return value, err
}

// nextSequence increments and returns a persisted uint64 counter, starting
// at one.
func (m *Manager) nextSequence(key []byte) (uint64, error) {
	raw, err := m.get(key)
	if err != nil {
		return 0, err
	}
	var next uint64 = 1
	if len(raw) == 8 {
		next = binary.BigEndian.Uint64(raw) + 1
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := m.db.Put(key, buf); err != nil {
		return 0, err
	}
	return next, nil
}

func encodeDec(d sdkmath.LegacyDec) string {
	if d.IsNil() {
		return ""
	}
	return d.String()
}

func decodeDec(s string) (sdkmath.LegacyDec, error) {
	if s == "" {
		return sdkmath.LegacyDec{}, nil
	}
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("state: decode decimal %q: %w", s, err)
	}
	return d, nil
}

func encodeInt(i sdkmath.Int) string {
	if i.IsNil() {
		return ""
	}
	return i.String()
}

func decodeInt(s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.Int{}, nil
	}
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("state: decode integer %q", s)
	}
	return i, nil
}
