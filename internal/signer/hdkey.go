package signer

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"

	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
)

// Derivation path m/44'/1179993420'/account'/0/index.
const (
	purpose  = bip32.FirstHardenedChild + 44
	coinType = bip32.FirstHardenedChild + 1179993420
)

// DeriveKey derives the signing key at (account, index) from a BIP-39 seed.
// Signer i of a wallet conventionally uses index i.
func DeriveKey(seed []byte, account, index uint32) (*crypto.PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	for _, idx := range []uint32{purpose, coinType, bip32.FirstHardenedChild + account, 0, index} {
		if key, err = key.NewChildKey(idx); err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
	}
	// bip32 keeps private keys as 33 bytes with a leading zero.
	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	return crypto.PrivateKeyFromBytes(raw)
}

// DeriveKeySet derives the three signer keys of account from seed.
func DeriveKeySet(seed []byte, account uint32) ([3]*crypto.PrivateKey, error) {
	var out [3]*crypto.PrivateKey
	for i := range out {
		k, err := DeriveKey(seed, account, uint32(i))
		if err != nil {
			return out, err
		}
		out[i] = k
	}
	return out, nil
}
