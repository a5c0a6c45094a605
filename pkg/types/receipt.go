package types

// ReceiptKind names the ledger operation a receipt records.
type ReceiptKind string

const (
	ReceiptCall         ReceiptKind = "call"
	ReceiptReturn       ReceiptKind = "return"
	ReceiptLog          ReceiptKind = "log"
	ReceiptTransfer     ReceiptKind = "transfer"
	ReceiptTransferOut  ReceiptKind = "transfer_out"
	ReceiptPanic        ReceiptKind = "panic"
	ReceiptRevert       ReceiptKind = "revert"
	ReceiptScriptResult ReceiptKind = "script_result"
)

// Receipt is the node's record of one operation executed by a transaction.
// ID is the transaction/contract identifier the receipt was issued under.
type Receipt struct {
	Kind    ReceiptKind `json:"kind"`
	ID      TxID        `json:"id"`
	To      Address     `json:"to,omitempty"`
	Amount  uint64      `json:"amount,omitempty"`
	AssetID AssetID     `json:"asset_id,omitempty"`
}
