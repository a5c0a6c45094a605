package signer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

const keyFileVersion = 1

// keyFile is the on-disk JSON format for an encrypted key.
type keyFile struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Label     string          `json:"label,omitempty"`
	PublicKey types.PublicKey `json:"public_key"`
	Sealed    []byte          `json:"sealed_key"`
}

// SaveKey encrypts key under passphrase and writes it to path. An existing
// file is never overwritten.
func SaveKey(path, label string, key *crypto.PrivateKey, passphrase []byte, params KDFParams) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("key file %s already exists", path)
	}
	secret := key.Serialize()
	defer zero(secret)

	sealed, err := Seal(secret, passphrase, params)
	if err != nil {
		return fmt.Errorf("encrypt key: %w", err)
	}
	data, err := json.MarshalIndent(keyFile{
		Version:   keyFileVersion,
		CreatedAt: time.Now().UTC(),
		Label:     label,
		PublicKey: key.PublicKey(),
		Sealed:    sealed,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// LoadKey decrypts the key stored at path.
func LoadKey(path string, passphrase []byte) (*crypto.PrivateKey, error) {
	kf, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	secret, err := Open(kf.Sealed, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(secret)

	key, err := crypto.PrivateKeyFromBytes(secret)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	if key.PublicKey() != kf.PublicKey {
		key.Zero()
		return nil, fmt.Errorf("key file %s: public key does not match sealed key", path)
	}
	return key, nil
}

// ReadPublicKey returns the public key recorded in a key file without
// decrypting it.
func ReadPublicKey(path string) (types.PublicKey, error) {
	kf, err := readKeyFile(path)
	if err != nil {
		return types.PublicKey{}, err
	}
	return kf.PublicKey, nil
}

func readKeyFile(path string) (*keyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	if kf.Version != keyFileVersion {
		return nil, fmt.Errorf("unsupported key file version: %d", kf.Version)
	}
	return &kf, nil
}
