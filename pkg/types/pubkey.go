package types

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PublicKeySize is the length of an uncompressed secp256k1 public key
// without the 0x04 prefix byte.
const PublicKeySize = 64

// KeySetSize is the number of keys bound into every wallet script.
const KeySetSize = 3

// PublicKey is an uncompressed secp256k1 point (X || Y).
type PublicKey [PublicKeySize]byte

// KeySet holds the wallet keys in positional order: slot i of the
// authorization script is bound to KeySet[i].
type KeySet [KeySetSize]PublicKey

// WalletID is the order-independent identifier of a key set.
type WalletID Hash

// IsZero returns true if the key is all zeros.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// Compare orders keys bytewise.
func (k PublicKey) Compare(other PublicKey) int {
	return bytes.Compare(k[:], other[:])
}

// Hex returns the canonical encoding: lowercase hex, no prefix.
func (k PublicKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// String returns the 0x-prefixed hex encoding.
func (k PublicKey) String() string {
	return "0x" + k.Hex()
}

// MarshalJSON encodes the key as a hex string.
func (k PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a hex string, with or without 0x, into a key.
func (k *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePublicKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePublicKey parses a 128-char hex key with an optional 0x prefix.
// A 65-byte key with the 0x04 uncompressed marker is also accepted.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := decodeHex(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid public key: %w", err)
	}
	if len(b) == PublicKeySize+1 && b[0] == 0x04 {
		b = b[1:]
	}
	if len(b) != PublicKeySize {
		return PublicKey{}, fmt.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	var k PublicKey
	copy(k[:], b)
	return k, nil
}

// Slice returns the keys as a slice in positional order.
func (ks KeySet) Slice() []PublicKey {
	out := make([]PublicKey, KeySetSize)
	copy(out, ks[:])
	return out
}

// String returns the hex wallet id (no prefix).
func (id WalletID) String() string {
	return Hash(id).Hex()
}

// MarshalJSON encodes the wallet id as a hex string.
func (id WalletID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a hex string into a wallet id.
func (id *WalletID) UnmarshalJSON(data []byte) error {
	return (*Hash)(id).UnmarshalJSON(data)
}
