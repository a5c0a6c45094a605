package signer

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon abandon abandon art"

func TestSealOpen(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	sealed, err := Seal(secret, []byte("pw"), LightKDFParams())
	require.NoError(t, err)

	got, err := Open(sealed, []byte("pw"))
	require.NoError(t, err)
	require.Equal(t, secret, got)

	_, err = Open(sealed, []byte("wrong"))
	require.Error(t, err)

	// Lowering the recorded KDF cost must not decrypt.
	tampered := append([]byte(nil), sealed...)
	tampered[SaltSize+4]++
	_, err = Open(tampered, []byte("pw"))
	require.Error(t, err)

	_, err = Open(sealed[:10], []byte("pw"))
	require.Error(t, err)
}

func TestMnemonic(t *testing.T) {
	m, err := GenerateMnemonic()
	require.NoError(t, err)
	require.Len(t, strings.Fields(m), 24)

	_, err = SeedFromMnemonic("not a mnemonic", "")
	require.Error(t, err)
}

func TestDeriveKeySetDeterministic(t *testing.T) {
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	require.Len(t, seed, SeedSize)

	a, err := DeriveKeySet(seed, 0)
	require.NoError(t, err)
	b, err := DeriveKeySet(seed, 0)
	require.NoError(t, err)
	for i := range a {
		require.Equal(t, a[i].PublicKey(), b[i].PublicKey())
	}
	require.NotEqual(t, a[0].PublicKey(), a[1].PublicKey())
	require.NotEqual(t, a[1].PublicKey(), a[2].PublicKey())

	other, err := DeriveKeySet(seed, 1)
	require.NoError(t, err)
	require.NotEqual(t, a[0].PublicKey(), other[0].PublicKey())

	_, err = DeriveKey(seed[:32], 0, 0)
	require.Error(t, err)
}

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "submitter.json")
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	require.NoError(t, SaveKey(path, "submitter", key, []byte("pw"), LightKDFParams()))
	require.Error(t, SaveKey(path, "again", key, []byte("pw"), LightKDFParams()))

	pub, err := ReadPublicKey(path)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), pub)

	loaded, err := LoadKey(path, []byte("pw"))
	require.NoError(t, err)
	require.Equal(t, key.Serialize(), loaded.Serialize())

	_, err = LoadKey(path, []byte("nope"))
	require.Error(t, err)
}

func TestSignerSignatureRecovers(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := New(key)

	var msg types.Hash
	sig, err := s.Sign(msg)
	require.NoError(t, err)

	recovered, err := crypto.RecoverPublicKey(sig[:], msg[:])
	require.NoError(t, err)
	require.Equal(t, s.PublicKey(), recovered)
}

func TestSubmitterEnvelope(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "submitter.json")
	require.NoError(t, SaveKey(path, "", key, []byte("pw"), LightKDFParams()))

	sub, err := LoadSubmitter(path, []byte("pw"))
	require.NoError(t, err)

	data := []byte("spend bytes")
	sig, err := sub.SignEnvelope(data)
	require.NoError(t, err)
	digest := crypto.Hash(data)
	require.True(t, crypto.VerifySchnorr(digest[:], sig, sub.PublicKey()))
	require.False(t, crypto.VerifySchnorr(digest[:], sig, key.CompressedPublicKey()[:32]))
}
