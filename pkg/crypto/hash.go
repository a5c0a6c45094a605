// Package crypto provides the hashing and key primitives used by the service.
package crypto

import (
	"crypto/sha256"

	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
	"github.com/zeebo/blake3"
)

// SHA256 computes the SHA-256 digest the ledger uses for addresses and
// script content.
func SHA256(data ...[]byte) types.Hash {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Hash computes a BLAKE3-256 hash. Used for service-local digests that never
// reach the ledger (dedup keys, submitter envelopes).
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// KeyAddress returns the ledger address owned by a public key:
// SHA256(X || Y). The authorization script compares recovered signers
// against this value.
func KeyAddress(pub types.PublicKey) types.Address {
	return types.Address(SHA256(pub[:]))
}
