package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-multisig/internal/signer"
	"github.com/Klingon-tech/klingnet-multisig/internal/spend"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

func signerFileName(account uint32, slot int) string {
	return fmt.Sprintf("signer-%d-%d.json", account, slot+1)
}

// parseMessage parses the signed message. Empty means the all-zero message
// the built-in wallet script checks against.
func parseMessage(s string) (types.Hash, error) {
	if s == "" {
		return types.Hash{}, nil
	}
	h, err := types.ParseHash(s)
	if err != nil {
		return types.Hash{}, fmt.Errorf("message: %w", err)
	}
	return h, nil
}

// collectPublicKeys gathers hex keys first, then keys read from files, in
// the order given. The order becomes the wallet's slot order.
func collectPublicKeys(hexKeys, files []string) ([]types.PublicKey, error) {
	keys := make([]types.PublicKey, 0, len(hexKeys)+len(files))
	for _, s := range hexKeys {
		k, err := types.ParsePublicKey(s)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	for _, f := range files {
		k, err := signer.ReadPublicKey(f)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if len(keys) != types.KeySetSize {
		return nil, fmt.Errorf("want %d public keys, got %d", types.KeySetSize, len(keys))
	}
	return keys, nil
}

// slotSignatures holds one signature per wallet key slot; nil marks an
// unsigned slot.
type slotSignatures [types.KeySetSize]types.HexBytes

// parseSignatures parses "<slot>:<hex>" entries, slots numbered from 1.
func parseSignatures(entries []string) (slotSignatures, error) {
	var out slotSignatures
	for i, e := range entries {
		n, hexSig, ok := strings.Cut(e, ":")
		if !ok {
			return out, fmt.Errorf("sig %d: want <slot>:<hex>", i+1)
		}
		slot, err := strconv.Atoi(n)
		if err != nil {
			return out, fmt.Errorf("sig %d: slot: %w", i+1, err)
		}
		sig, err := types.ParseHexBytes(hexSig)
		if err != nil {
			return out, fmt.Errorf("sig %d: %w", i+1, err)
		}
		if err := out.place(slot-1, sig); err != nil {
			return out, fmt.Errorf("sig %d: %w", i+1, err)
		}
	}
	return out, nil
}

func (s *slotSignatures) place(slot int, sig types.HexBytes) error {
	if slot < 0 || slot >= len(s) {
		return fmt.Errorf("slot %d out of range 1..%d", slot+1, len(s))
	}
	if s[slot] != nil {
		return fmt.Errorf("slot %d given twice", slot+1)
	}
	s[slot] = sig
	return nil
}

func (s *slotSignatures) empty() bool {
	for _, sig := range s {
		if sig != nil {
			return false
		}
	}
	return true
}

// slotOf returns the slot a public key occupies in a wallet.
func slotOf(keys types.KeySet, pub types.PublicKey) (int, error) {
	for i, k := range keys {
		if k == pub {
			return i, nil
		}
	}
	return 0, fmt.Errorf("key %s is not a signer of this wallet", pub)
}

// buildInputs attaches the same slot signatures to every input, zero-filling
// unsigned slots. The wallet script checks a fixed message, so one signature
// covers every coin.
func buildInputs(utxos []string, sigs slotSignatures) ([]spend.InputRequest, error) {
	if sigs.empty() {
		return nil, fmt.Errorf("at least one signature is required")
	}
	inputs := make([]spend.InputRequest, len(utxos))
	for i, s := range utxos {
		id, err := types.ParseUTXOID(s)
		if err != nil {
			return nil, fmt.Errorf("utxo %d: %w", i+1, err)
		}
		slots := make([]types.HexBytes, len(sigs))
		for j, sig := range sigs {
			if sig == nil {
				sig = make(types.HexBytes, spend.SignatureSize)
			}
			slots[j] = sig
		}
		inputs[i] = spend.InputRequest{UTXOID: id, Signatures: slots}
	}
	return inputs, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}
