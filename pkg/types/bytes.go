package types

import (
	"encoding/hex"
	"encoding/json"
)

// HexBytes is a byte slice that travels as a 0x-prefixed hex string.
type HexBytes []byte

// String returns the 0x-prefixed hex encoding.
func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// MarshalJSON encodes the bytes as hex.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON decodes hex with or without 0x.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := decodeHex(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// ParseHexBytes decodes hex with or without 0x.
func ParseHexBytes(s string) (HexBytes, error) {
	return decodeHex(s)
}

// Bytecode is a compiled authorization script as produced by the compiler.
type Bytecode []byte

// InstructionSize is the width of one VM instruction; valid bytecode is a
// whole number of instructions.
const InstructionSize = 4

// Size returns the bytecode length in bytes.
func (c Bytecode) Size() int { return len(c) }

// Clone returns an independent copy.
func (c Bytecode) Clone() Bytecode {
	out := make(Bytecode, len(c))
	copy(out, c)
	return out
}

// MarshalJSON encodes the bytecode as hex.
func (c Bytecode) MarshalJSON() ([]byte, error) {
	return HexBytes(c).MarshalJSON()
}

// UnmarshalJSON decodes hex bytecode.
func (c *Bytecode) UnmarshalJSON(data []byte) error {
	return (*HexBytes)(c).UnmarshalJSON(data)
}
