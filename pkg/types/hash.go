// Package types defines the primitive values exchanged by the multisig service.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// Hash represents a 256-bit hash value.
type Hash [HashSize]byte

// AssetID identifies a ledger asset.
type AssetID Hash

// TxID identifies a submitted transaction (or the contract id a receipt carries).
type TxID Hash

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the 0x-prefixed hex encoding.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Hex returns the hex encoding without prefix.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a 0x-prefixed hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string, with or without 0x, into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash parses a 64-char hex string with an optional 0x prefix.
func ParseHash(s string) (Hash, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// decodeHex strips an optional 0x prefix and decodes.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// IsZero returns true if the asset id is all zeros.
func (a AssetID) IsZero() bool { return Hash(a).IsZero() }

// String returns the 0x-prefixed hex asset id.
func (a AssetID) String() string { return Hash(a).String() }

// MarshalJSON encodes the asset id as a hex string.
func (a AssetID) MarshalJSON() ([]byte, error) { return Hash(a).MarshalJSON() }

// UnmarshalJSON decodes a hex string into an asset id.
func (a *AssetID) UnmarshalJSON(data []byte) error { return (*Hash)(a).UnmarshalJSON(data) }

// IsZero returns true if the tx id is all zeros.
func (t TxID) IsZero() bool { return Hash(t).IsZero() }

// String returns the 0x-prefixed hex tx id.
func (t TxID) String() string { return Hash(t).String() }

// MarshalJSON encodes the tx id as a hex string.
func (t TxID) MarshalJSON() ([]byte, error) { return Hash(t).MarshalJSON() }

// UnmarshalJSON decodes a hex string into a tx id.
func (t *TxID) UnmarshalJSON(data []byte) error { return (*Hash)(t).UnmarshalJSON(data) }
