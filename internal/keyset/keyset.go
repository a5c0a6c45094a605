// Package keyset validates wallet key sets and derives their
// order-independent wallet identifier.
package keyset

import (
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// Validate checks that keys holds exactly three distinct valid curve points.
func Validate(keys []types.PublicKey) error {
	if len(keys) != types.KeySetSize {
		return errors.ErrInvalidKeySet.Newf("want %d public keys, got %d", types.KeySetSize, len(keys))
	}
	for i, k := range keys {
		if k.IsZero() {
			return errors.ErrInvalidKeySet.Newf("public key %d is zero", i+1)
		}
		if err := crypto.ValidatePublicKey(k); err != nil {
			return errors.WithRoot(errors.ErrInvalidKeySet, err, fmt.Sprintf("public key %d", i+1))
		}
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[i] == keys[j] {
				return errors.ErrInvalidKeySet.Newf("public keys %d and %d are equal", i+1, j+1)
			}
		}
	}
	return nil
}

// Sorted returns a bytewise-sorted copy of keys. keys is not modified.
func Sorted(keys []types.PublicKey) []types.PublicKey {
	out := slices.Clone(keys)
	slices.SortFunc(out, types.PublicKey.Compare)
	return out
}

// Normalize validates keys and returns their wallet id: the SHA-256 of the
// sorted keys' hex encodings, concatenated.
func Normalize(keys []types.PublicKey) (types.WalletID, error) {
	if err := Validate(keys); err != nil {
		return types.WalletID{}, err
	}
	var buf []byte
	for _, k := range Sorted(keys) {
		buf = hex.AppendEncode(buf, k[:])
	}
	return types.WalletID(crypto.SHA256(buf)), nil
}

// Parse validates keys and returns them as a positional KeySet.
func Parse(keys []types.PublicKey) (types.KeySet, error) {
	var ks types.KeySet
	if err := Validate(keys); err != nil {
		return ks, err
	}
	copy(ks[:], keys)
	return ks, nil
}
