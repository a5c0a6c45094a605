package crypto

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// SignatureSize is the length of a recoverable compact signature: r || s with
// the recovery id folded into the top bit of s.
const SignatureSize = 64

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
// The all-zero secret is rejected.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(b); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("private key out of range")
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&scalar)}, nil
}

// PublicKey returns the 64-byte uncompressed public key (no 0x04 marker).
func (pk *PrivateKey) PublicKey() types.PublicKey {
	var out types.PublicKey
	copy(out[:], pk.key.PubKey().SerializeUncompressed()[1:])
	return out
}

// CompressedPublicKey returns the 33-byte compressed public key.
func (pk *PrivateKey) CompressedPublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// SignRecoverable signs a 32-byte message hash and returns the 64-byte
// compact form the authorization script recovers signers from.
func (pk *PrivateKey) SignRecoverable(hash []byte) ([SignatureSize]byte, error) {
	var out [SignatureSize]byte
	if len(hash) != 32 {
		return out, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	// [27+recid][r(32)][s(32)], s is already normalized to the lower half.
	compact := ecdsa.SignCompact(pk.key, hash, false)
	recID := compact[0] - 27
	copy(out[:], compact[1:])
	out[32] |= recID << 7
	return out, nil
}

// SignSchnorr produces a Schnorr signature over a 32-byte hash.
func (pk *PrivateKey) SignSchnorr(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// RecoverPublicKey recovers the signer of a 64-byte compact signature.
func RecoverPublicKey(sig []byte, hash []byte) (types.PublicKey, error) {
	if len(sig) != SignatureSize {
		return types.PublicKey{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureSize, len(sig))
	}
	compact := make([]byte, SignatureSize+1)
	compact[0] = 27 + (sig[32] >> 7)
	copy(compact[1:], sig)
	compact[33] &= 0x7f

	pub, _, err := ecdsa.RecoverCompact(compact, hash)
	if err != nil {
		return types.PublicKey{}, fmt.Errorf("recover: %w", err)
	}
	var out types.PublicKey
	copy(out[:], pub.SerializeUncompressed()[1:])
	return out, nil
}

// VerifySchnorr checks a Schnorr signature against a 32-byte hash and a
// compressed public key. Returns false on any error.
func VerifySchnorr(hash, signature, compressedPub []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(compressedPub)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}

// ValidatePublicKey checks that the key is a point on the curve.
func ValidatePublicKey(pub types.PublicKey) error {
	raw := make([]byte, 0, types.PublicKeySize+1)
	raw = append(raw, 0x04)
	raw = append(raw, pub[:]...)
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return fmt.Errorf("public key %s: %w", pub, err)
	}
	return nil
}
