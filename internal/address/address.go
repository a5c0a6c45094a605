// Package address derives a wallet address from its compiled predicate.
package address

import (
	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

const (
	// LeafSize is the size of one Merkle leaf of predicate code.
	LeafSize = 16 * 1024

	// wordSize is the alignment code is zero-padded to before hashing.
	wordSize = 8
)

var (
	leafPrefix = []byte{0x00}
	nodePrefix = []byte{0x01}
	seed       = []byte("FUEL")
)

// Derive returns the address owned by a predicate: SHA256("FUEL" || root),
// where root is the binary Merkle root of the zero-padded code.
func Derive(code types.Bytecode) types.Address {
	root := Root(code)
	return types.Address(crypto.SHA256(seed, root[:]))
}

// Root returns the binary Merkle root of code split into LeafSize leaves.
func Root(code types.Bytecode) types.Hash {
	padded := pad(code)
	var leaves []types.Hash
	for off := 0; off < len(padded); off += LeafSize {
		end := min(off+LeafSize, len(padded))
		leaves = append(leaves, crypto.SHA256(leafPrefix, padded[off:end]))
	}
	return merkleRoot(leaves)
}

// merkleRoot splits at the largest power of two below len(leaves).
func merkleRoot(leaves []types.Hash) types.Hash {
	switch len(leaves) {
	case 0:
		return crypto.SHA256()
	case 1:
		return leaves[0]
	}
	k := splitPoint(len(leaves))
	l := merkleRoot(leaves[:k])
	r := merkleRoot(leaves[k:])
	return crypto.SHA256(nodePrefix, l[:], r[:])
}

func splitPoint(n int) int {
	k := 1
	for k<<1 < n {
		k <<= 1
	}
	return k
}

func pad(code []byte) []byte {
	rem := len(code) % wordSize
	if rem == 0 {
		return code
	}
	out := make([]byte, len(code)+wordSize-rem)
	copy(out, code)
	return out
}
