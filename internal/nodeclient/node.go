package nodeclient

import (
	"context"
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-multisig/internal/log"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// JSON-RPC methods served by the node.
const (
	MethodGetInfo     = "node_getInfo"
	MethodSubmitSpend = "tx_submitPredicateSpend"
)

// Info describes the node.
type Info struct {
	Version     string `json:"node_version"`
	ChainID     uint64 `json:"chain_id"`
	BlockHeight uint64 `json:"block_height"`
}

// Input spends one predicate-owned coin. Data holds the signatures for the
// coin, concatenated in slot order.
type Input struct {
	UTXOID types.UTXOID   `json:"utxo_id"`
	Data   types.HexBytes `json:"predicate_data"`
}

// Envelope is the submitter's signature over a spend. It identifies who
// submitted the spend; it does not authorize it.
type Envelope struct {
	PublicKey types.HexBytes `json:"public_key"`
	Signature types.HexBytes `json:"signature"`
}

// PredicateSpend asks the node to move funds owned by a predicate.
type PredicateSpend struct {
	Owner     types.Address  `json:"owner"`
	Code      types.Bytecode `json:"code"`
	AssetID   types.AssetID  `json:"asset_id"`
	Amount    uint64         `json:"amount"`
	Recipient types.Address  `json:"recipient"`
	Inputs    []Input        `json:"inputs"`
	DedupKey  string         `json:"dedup_key"`
	Submitter *Envelope      `json:"submitter,omitempty"`
}

// SigningBytes returns the canonical encoding the submitter signs. The
// envelope itself is not part of it.
func (s *PredicateSpend) SigningBytes() []byte {
	buf := make([]byte, 0, 256+len(s.Code))
	buf = append(buf, s.Owner[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.Code)))
	buf = append(buf, s.Code...)
	buf = append(buf, s.AssetID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, s.Amount)
	buf = append(buf, s.Recipient[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.Inputs)))
	for _, in := range s.Inputs {
		buf = append(buf, in.UTXOID.Bytes()...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(in.Data)))
		buf = append(buf, in.Data...)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s.DedupKey)))
	return append(buf, s.DedupKey...)
}

type submitResult struct {
	Receipts []types.Receipt `json:"receipts"`
}

// Connect checks that the node answers.
func (c *Client) Connect(ctx context.Context) (Info, error) {
	var info Info
	if err := c.Call(ctx, MethodGetInfo, nil, &info); err != nil {
		return Info{}, errors.WithRoot(errors.ErrConnect, err, c.endpoint)
	}
	return info, nil
}

// SubmitPredicateSpend submits s and returns the node's receipts.
//
// A JSON-RPC error means the node processed and rejected the spend
// (ErrSubmit). When no answer arrives the spend may or may not have been
// applied and ErrOutcomeUnknown is returned.
func (c *Client) SubmitPredicateSpend(ctx context.Context, s *PredicateSpend) ([]types.Receipt, error) {
	var res submitResult
	err := c.Call(ctx, MethodSubmitSpend, []interface{}{s}, &res)
	if err == nil {
		return res.Receipts, nil
	}

	var rpcErr *RPCError
	var transportErr *TransportError
	switch {
	case errors.As(err, &rpcErr):
		return nil, errors.WithRoot(errors.ErrSubmit, err, "node rejected spend")
	case errors.As(err, &transportErr):
		log.Node.Warn().Err(err).Str("dedup_key", s.DedupKey).Msg("Spend outcome unknown")
		return nil, errors.WithRoot(errors.ErrOutcomeUnknown, err, "submit spend")
	default:
		return nil, errors.WithRoot(errors.ErrSubmit, err, "submit spend")
	}
}
