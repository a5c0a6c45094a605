package spend

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// Signature layout per input.
const (
	SignatureSize    = crypto.SignatureSize
	Slots            = types.KeySetSize
	PayloadSize      = Slots * SignatureSize
	maxIdempotentKey = 128
)

// InputRequest is one coin to spend with one signature per key slot, in slot
// order. An empty or all-zero entry marks a slot whose signer did not sign.
type InputRequest struct {
	UTXOID     types.UTXOID     `json:"utxo_id"`
	Signatures []types.HexBytes `json:"signatures"`
}

// Request asks to move Amount of AssetID from Wallet to Recipient.
type Request struct {
	Wallet         types.Address  `json:"wallet"`
	AssetID        types.AssetID  `json:"asset_id"`
	Amount         uint64         `json:"amount"`
	Recipient      types.Address  `json:"recipient"`
	Inputs         []InputRequest `json:"inputs"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// InputResult identifies a spent coin.
type InputResult struct {
	UTXOID types.UTXOID `json:"utxo_id"`
}

// Result describes a confirmed spend.
type Result struct {
	Wallet    types.Address `json:"wallet"`
	AssetID   types.AssetID `json:"asset_id"`
	Amount    uint64        `json:"amount"`
	Recipient types.Address `json:"recipient"`
	Inputs    []InputResult `json:"inputs"`
	TxID      types.TxID    `json:"tx_id"`
}

// Validate checks the request shape. Signatures are not verified here; the
// wallet script does that on the node.
func (r *Request) Validate() error {
	if r.Amount == 0 {
		return errors.ErrInvalidRequest.New("amount must be positive")
	}
	if r.Wallet.IsZero() {
		return errors.ErrInvalidRequest.New("wallet is required")
	}
	if r.Recipient.IsZero() {
		return errors.ErrInvalidRequest.New("recipient is required")
	}
	if len(r.Inputs) == 0 {
		return errors.ErrInvalidRequest.New("at least one input is required")
	}
	if len(r.IdempotencyKey) > maxIdempotentKey {
		return errors.ErrInvalidRequest.Newf("idempotency_key longer than %d bytes", maxIdempotentKey)
	}
	seen := make(map[types.UTXOID]bool, len(r.Inputs))
	for i, in := range r.Inputs {
		if seen[in.UTXOID] {
			return errors.ErrInvalidRequest.Newf("input %d: duplicate utxo %s", i, in.UTXOID)
		}
		seen[in.UTXOID] = true
		if n := len(in.Signatures); n != Slots {
			return errors.ErrInvalidRequest.Newf("input %d: want %d signature slots, got %d", i, Slots, n)
		}
		signed := 0
		for j, sig := range in.Signatures {
			switch {
			case len(sig) == 0:
			case len(sig) != SignatureSize:
				return errors.ErrInvalidRequest.Newf("input %d slot %d: want %d bytes, got %d", i, j, SignatureSize, len(sig))
			case !isZero(sig):
				signed++
			}
		}
		if signed == 0 {
			return errors.ErrInvalidRequest.Newf("input %d: no slot is signed", i)
		}
	}
	return nil
}

// Payload lays out an input's signatures as the fixed slot array the
// wallet script reads. Unsigned slots are zero-filled; the script cannot
// recover a signer from them.
func (in InputRequest) Payload() types.HexBytes {
	out := make(types.HexBytes, PayloadSize)
	for i, sig := range in.Signatures {
		if i == Slots {
			break
		}
		copy(out[i*SignatureSize:(i+1)*SignatureSize], sig)
	}
	return out
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// canonical encodes every field that identifies the spend. The idempotency
// key itself is excluded.
func (r *Request) canonical() []byte {
	buf := make([]byte, 0, 3*types.HashSize+12+len(r.Inputs)*(34+PayloadSize))
	buf = append(buf, r.Wallet[:]...)
	buf = append(buf, r.AssetID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, r.Amount)
	buf = append(buf, r.Recipient[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Inputs)))
	for _, in := range r.Inputs {
		buf = append(buf, in.UTXOID.Bytes()...)
		buf = append(buf, in.Payload()...)
	}
	return buf
}

// Fingerprint is the BLAKE3 digest of the spend's identifying fields.
func (r *Request) Fingerprint() types.Hash {
	return crypto.Hash(r.canonical())
}

// DedupKey returns the caller's idempotency key scoped to the wallet, or the
// request fingerprint when no key was given.
func (r *Request) DedupKey() string {
	if r.IdempotencyKey != "" {
		return "key:" + types.Hash(r.Wallet).Hex() + ":" + r.IdempotencyKey
	}
	return "b3:" + r.Fingerprint().Hex()
}

func (r *Request) result(tx types.TxID) Result {
	inputs := make([]InputResult, len(r.Inputs))
	for i, in := range r.Inputs {
		inputs[i] = InputResult{UTXOID: in.UTXOID}
	}
	return Result{
		Wallet:    r.Wallet,
		AssetID:   r.AssetID,
		Amount:    r.Amount,
		Recipient: r.Recipient,
		Inputs:    inputs,
		TxID:      tx,
	}
}
