package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UTXOID references a spendable output: the producing transaction and the
// output index within it.
type UTXOID struct {
	TxID        TxID
	OutputIndex uint16
}

// String returns "0x" + txid hex + 2-byte big-endian index hex.
func (u UTXOID) String() string {
	var idx [2]byte
	binary.BigEndian.PutUint16(idx[:], u.OutputIndex)
	return fmt.Sprintf("%s%02x%02x", u.TxID.String(), idx[0], idx[1])
}

// Bytes returns txid(32) || index(2, big-endian).
func (u UTXOID) Bytes() []byte {
	out := make([]byte, 0, HashSize+2)
	out = append(out, u.TxID[:]...)
	return binary.BigEndian.AppendUint16(out, u.OutputIndex)
}

// MarshalJSON encodes the id as a hex string.
func (u UTXOID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON decodes either accepted text form.
func (u *UTXOID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseUTXOID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ParseUTXOID accepts "0x<txid><index:4 hex>" or "<txid>:<decimal index>".
func ParseUTXOID(s string) (UTXOID, error) {
	if txPart, idxPart, ok := strings.Cut(s, ":"); ok {
		h, err := ParseHash(txPart)
		if err != nil {
			return UTXOID{}, fmt.Errorf("invalid utxo id: %w", err)
		}
		idx, err := strconv.ParseUint(idxPart, 10, 16)
		if err != nil {
			return UTXOID{}, fmt.Errorf("invalid utxo output index %q: %w", idxPart, err)
		}
		return UTXOID{TxID: TxID(h), OutputIndex: uint16(idx)}, nil
	}

	b, err := decodeHex(s)
	if err != nil {
		return UTXOID{}, fmt.Errorf("invalid utxo id: %w", err)
	}
	if len(b) != HashSize+2 {
		return UTXOID{}, fmt.Errorf("utxo id must be %d bytes, got %d", HashSize+2, len(b))
	}
	var u UTXOID
	copy(u.TxID[:], b[:HashSize])
	u.OutputIndex = binary.BigEndian.Uint16(b[HashSize:])
	return u, nil
}
