package signer

import (
	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// Signer produces the per-slot signatures a wallet's script checks.
type Signer struct {
	key *crypto.PrivateKey
}

// New wraps key.
func New(key *crypto.PrivateKey) *Signer {
	return &Signer{key: key}
}

// PublicKey returns the key the script binds this signer's slot to.
func (s *Signer) PublicKey() types.PublicKey {
	return s.key.PublicKey()
}

// Sign returns the 64-byte recoverable signature of message. The wallet
// script recovers the signer's address from it.
func (s *Signer) Sign(message types.Hash) ([crypto.SignatureSize]byte, error) {
	return s.key.SignRecoverable(message[:])
}

// Submitter is the service's own identity on spends it submits.
type Submitter struct {
	key *crypto.PrivateKey
}

// NewSubmitter wraps key. Zero keys are rejected when the key is parsed, so
// any key reaching here is usable.
func NewSubmitter(key *crypto.PrivateKey) *Submitter {
	return &Submitter{key: key}
}

// LoadSubmitter reads and decrypts the submitter key file at path.
func LoadSubmitter(path string, passphrase []byte) (*Submitter, error) {
	key, err := LoadKey(path, passphrase)
	if err != nil {
		return nil, err
	}
	return NewSubmitter(key), nil
}

// PublicKey returns the compressed submitter public key.
func (s *Submitter) PublicKey() []byte {
	return s.key.CompressedPublicKey()
}

// SignEnvelope signs the BLAKE3 digest of data with Schnorr.
func (s *Submitter) SignEnvelope(data []byte) ([]byte, error) {
	digest := crypto.Hash(data)
	return s.key.SignSchnorr(digest[:])
}
