package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-multisig/internal/signer"
	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

func TestParseMessage(t *testing.T) {
	h, err := parseMessage("")
	require.NoError(t, err)
	assert.True(t, h.IsZero())

	h, err = parseMessage("0x" + strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), h[31])

	_, err = parseMessage("0x1234")
	require.Error(t, err)
}

func TestCollectPublicKeysKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var want []types.PublicKey
	var hexKeys []string
	for i := 0; i < 2; i++ {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		want = append(want, k.PublicKey())
		hexKeys = append(hexKeys, k.PublicKey().Hex())
	}
	k, err := crypto.GenerateKey()
	require.NoError(t, err)
	path := filepath.Join(dir, "signer.json")
	require.NoError(t, signer.SaveKey(path, "s", k, []byte("pw"), signer.LightKDFParams()))
	want = append(want, k.PublicKey())

	got, err := collectPublicKeys(hexKeys, []string{path})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = collectPublicKeys(hexKeys, nil)
	require.ErrorContains(t, err, "want 3")
}

func TestBuildInputsZeroFillsUnsignedSlots(t *testing.T) {
	var sigs slotSignatures
	sigs[0] = bytesOf(0x11, 64)
	sigs[2] = bytesOf(0x33, 64)
	utxo := "0x" + strings.Repeat("01", 32) + ":2"

	inputs, err := buildInputs([]string{utxo, "0x" + strings.Repeat("02", 32) + "0000"}, sigs)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, uint16(2), inputs[0].UTXOID.OutputIndex)
	for _, in := range inputs {
		require.Len(t, in.Signatures, types.KeySetSize)
		assert.Equal(t, make(types.HexBytes, 64), in.Signatures[1])
		assert.Len(t, in.Payload(), 3*64)
	}

	_, err = buildInputs([]string{utxo}, slotSignatures{})
	require.Error(t, err)
	_, err = buildInputs([]string{"nope"}, sigs)
	require.Error(t, err)
}

func TestParseSignaturesBySlot(t *testing.T) {
	sigs, err := parseSignatures([]string{"3:0x0102", "1:0304"})
	require.NoError(t, err)
	assert.Equal(t, types.HexBytes{3, 4}, sigs[0])
	assert.Nil(t, sigs[1])
	assert.Equal(t, types.HexBytes{1, 2}, sigs[2])

	for _, bad := range []string{"0102", "4:0102", "0:0102", "x:0102", "1:zz"} {
		_, err = parseSignatures([]string{bad})
		require.Error(t, err, bad)
	}
	_, err = parseSignatures([]string{"2:01", "2:02"})
	require.ErrorContains(t, err, "given twice")
}

func TestSlotOf(t *testing.T) {
	var keys types.KeySet
	for i := range keys {
		k, err := crypto.GenerateKey()
		require.NoError(t, err)
		keys[i] = k.PublicKey()
	}
	slot, err := slotOf(keys, keys[2])
	require.NoError(t, err)
	assert.Equal(t, 2, slot)

	_, err = slotOf(keys, types.PublicKey{1})
	require.Error(t, err)
}

func bytesOf(b byte, n int) types.HexBytes {
	out := make(types.HexBytes, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestSignerFileName(t *testing.T) {
	assert.Equal(t, "signer-0-1.json", signerFileName(0, 0))
	assert.Equal(t, "signer-2-3.json", signerFileName(2, 2))
}
