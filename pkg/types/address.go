package types

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// AddressHRP is the human-readable part of bech32-encoded addresses.
const AddressHRP = "fuel"

// Address is a wallet or recipient address on the ledger. A wallet address
// is derived from the wallet's compiled authorization script.
type Address Hash

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool { return Hash(a).IsZero() }

// String returns the 0x-prefixed hex address.
func (a Address) String() string { return Hash(a).String() }

// Bech32 returns the address in its bech32 form (fuel1...).
func (a Address) Bech32() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return ""
	}
	s, err := bech32.Encode(AddressHRP, conv)
	if err != nil {
		return ""
	}
	return s
}

// MarshalJSON encodes the address as a hex string.
func (a Address) MarshalJSON() ([]byte, error) { return Hash(a).MarshalJSON() }

// UnmarshalJSON decodes a hex or bech32 string into an address.
func (a *Address) UnmarshalJSON(data []byte) error {
	if len(data) > 2 && strings.HasPrefix(string(data[1:]), AddressHRP+"1") {
		parsed, err := ParseAddress(string(data[1 : len(data)-1]))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	return (*Hash)(a).UnmarshalJSON(data)
}

// ParseAddress parses a hex address with an optional 0x prefix, or a
// bech32 address with the fuel prefix.
func ParseAddress(s string) (Address, error) {
	if strings.HasPrefix(strings.ToLower(s), AddressHRP+"1") {
		return parseBech32Address(s)
	}
	h, err := ParseHash(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	return Address(h), nil
}

func parseBech32Address(s string) (Address, error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	if hrp != AddressHRP {
		return Address{}, fmt.Errorf("invalid address: prefix %q, want %q", hrp, AddressHRP)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != HashSize {
		return Address{}, fmt.Errorf("invalid address: %d bytes, want %d", len(raw), HashSize)
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}
