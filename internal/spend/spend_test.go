package spend

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-multisig/internal/bytecode"
	"github.com/Klingon-tech/klingnet-multisig/internal/nodeclient"
	"github.com/Klingon-tech/klingnet-multisig/internal/signer"
	"github.com/Klingon-tech/klingnet-multisig/internal/storage"
	"github.com/Klingon-tech/klingnet-multisig/pkg/crypto"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNode struct {
	mu         sync.Mutex
	connectErr error
	submitErr  error
	receipts   []types.Receipt
	delay      time.Duration
	connects   atomic.Int32
	submits    atomic.Int32
	last       *nodeclient.PredicateSpend
}

func (n *fakeNode) Connect(ctx context.Context) (nodeclient.Info, error) {
	n.connects.Add(1)
	return nodeclient.Info{Version: "0.1.0"}, n.connectErr
}

func (n *fakeNode) SubmitPredicateSpend(ctx context.Context, s *nodeclient.PredicateSpend) ([]types.Receipt, error) {
	n.submits.Add(1)
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-ctx.Done():
			return nil, errors.WithRoot(errors.ErrOutcomeUnknown, ctx.Err(), "submit")
		}
	}
	n.mu.Lock()
	n.last = s
	n.mu.Unlock()
	return n.receipts, n.submitErr
}

var (
	wallet    = types.Address{0xaa}
	recipient = types.Address{0xbb}
	code      = types.Bytecode{1, 2, 3, 4, 5, 6, 7, 8}
	txID      = types.TxID{0xcc}
)

func transfer() []types.Receipt {
	return []types.Receipt{{Kind: types.ReceiptTransfer, ID: txID, To: recipient, Amount: 10}}
}

func sig(b byte) types.HexBytes {
	s := make(types.HexBytes, SignatureSize)
	for i := range s {
		s[i] = b
	}
	return s
}

func validRequest() Request {
	return Request{
		Wallet:    wallet,
		AssetID:   types.AssetID{},
		Amount:    10,
		Recipient: recipient,
		Inputs: []InputRequest{
			{UTXOID: types.UTXOID{TxID: types.TxID{1}, OutputIndex: 0}, Signatures: []types.HexBytes{sig(1), nil, sig(3)}},
		},
	}
}

func newAuthorizer(t *testing.T, node *fakeNode, submitter EnvelopeSigner) *Authorizer {
	t.Helper()
	store := bytecode.NewKVStore(storage.NewMemory())
	require.NoError(t, store.Put(context.Background(), wallet, code))
	a := New(store, node, submitter, Config{SubmitTimeout: time.Second, DedupTTL: time.Minute})
	a.Start()
	t.Cleanup(a.Stop)
	return a
}

func TestValidate(t *testing.T) {
	cases := map[string]func(r *Request){
		"zero amount":      func(r *Request) { r.Amount = 0 },
		"no wallet":        func(r *Request) { r.Wallet = types.Address{} },
		"no recipient":     func(r *Request) { r.Recipient = types.Address{} },
		"no inputs":        func(r *Request) { r.Inputs = nil },
		"no signatures":    func(r *Request) { r.Inputs[0].Signatures = nil },
		"short signature":  func(r *Request) { r.Inputs[0].Signatures[0] = make(types.HexBytes, 63) },
		"four slots":       func(r *Request) { r.Inputs[0].Signatures = []types.HexBytes{sig(1), sig(2), sig(3), sig(4)} },
		"two slots":        func(r *Request) { r.Inputs[0].Signatures = []types.HexBytes{sig(1), sig(2)} },
		"nothing signed":   func(r *Request) { r.Inputs[0].Signatures = []types.HexBytes{nil, sig(0), {}} },
		"duplicate input":  func(r *Request) { r.Inputs = append(r.Inputs, r.Inputs[0]) },
		"long idempotency": func(r *Request) { r.IdempotencyKey = string(make([]byte, 129)) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRequest()
			mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
		})
	}

	r := validRequest()
	require.NoError(t, r.Validate())

	// A zero-filled slot counts as unsigned, like an empty one.
	r.Inputs[0].Signatures[1] = sig(0)
	require.NoError(t, r.Validate())
}

func TestPayloadConcatenatesInSlotOrder(t *testing.T) {
	in := InputRequest{Signatures: []types.HexBytes{sig(1), sig(2), sig(3)}}
	p := in.Payload()
	require.Len(t, p, 3*SignatureSize)
	assert.Equal(t, byte(1), p[0])
	assert.Equal(t, byte(2), p[SignatureSize])
	assert.Equal(t, byte(3), p[2*SignatureSize])
}

func TestPayloadZeroFillsUnsignedSlots(t *testing.T) {
	p := validRequest().Inputs[0].Payload()
	require.Len(t, p, PayloadSize)
	assert.Equal(t, []byte(sig(1)), []byte(p[:SignatureSize]))
	assert.Equal(t, []byte(sig(0)), []byte(p[SignatureSize:2*SignatureSize]))
	assert.Equal(t, []byte(sig(3)), []byte(p[2*SignatureSize:]))
}

func TestDedupKey(t *testing.T) {
	a, b := validRequest(), validRequest()
	assert.Equal(t, a.DedupKey(), b.DedupKey())

	b.Amount++
	assert.NotEqual(t, a.DedupKey(), b.DedupKey())

	// An empty slot and a zero-filled slot are the same spend.
	c := validRequest()
	c.Inputs[0].Signatures[1] = sig(0)
	assert.Equal(t, a.Fingerprint(), c.Fingerprint())

	b.IdempotencyKey = "order-7"
	assert.Equal(t, "key:"+types.Hash(wallet).Hex()+":order-7", b.DedupKey())
	b.Wallet = types.Address{0xab}
	assert.Equal(t, "key:"+types.Hash(b.Wallet).Hex()+":order-7", b.DedupKey())
}

func TestAuthorizeSuccess(t *testing.T) {
	node := &fakeNode{receipts: transfer()}
	a := newAuthorizer(t, node, nil)

	res, err := a.Authorize(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, txID, res.TxID)
	assert.Equal(t, wallet, res.Wallet)
	assert.Equal(t, uint64(10), res.Amount)
	require.Len(t, res.Inputs, 1)

	require.NotNil(t, node.last)
	assert.Equal(t, code, node.last.Code)
	assert.Equal(t, wallet, node.last.Owner)
	data := node.last.Inputs[0].Data
	require.Len(t, data, PayloadSize)
	assert.Equal(t, make([]byte, SignatureSize), []byte(data[SignatureSize:2*SignatureSize]))
	assert.Nil(t, node.last.Submitter)
}

func TestAuthorizeUnknownWalletSkipsNode(t *testing.T) {
	node := &fakeNode{receipts: transfer()}
	a := newAuthorizer(t, node, nil)

	r := validRequest()
	r.Wallet = types.Address{0x01}
	_, err := a.Authorize(context.Background(), r)
	require.True(t, errors.Is(err, errors.ErrCacheMiss))
	assert.Zero(t, node.connects.Load())
	assert.Zero(t, node.submits.Load())
}

func TestAuthorizeInvalidSkipsNode(t *testing.T) {
	node := &fakeNode{receipts: transfer()}
	a := newAuthorizer(t, node, nil)

	r := validRequest()
	r.Amount = 0
	_, err := a.Authorize(context.Background(), r)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
	assert.Zero(t, node.connects.Load())
}

func TestAuthorizeReceiptShapes(t *testing.T) {
	cases := map[string][]types.Receipt{
		"none":         nil,
		"two":          append(transfer(), transfer()...),
		"not transfer": {{Kind: types.ReceiptCall, ID: txID}},
	}
	for name, receipts := range cases {
		t.Run(name, func(t *testing.T) {
			a := newAuthorizer(t, &fakeNode{receipts: receipts}, nil)
			_, err := a.Authorize(context.Background(), validRequest())
			require.True(t, errors.Is(err, errors.ErrInvalidReceipt))
		})
	}
}

func TestAuthorizeConnectFailureReleasesKey(t *testing.T) {
	node := &fakeNode{connectErr: errors.ErrConnect.New("refused"), receipts: transfer()}
	a := newAuthorizer(t, node, nil)

	_, err := a.Authorize(context.Background(), validRequest())
	require.True(t, errors.Is(err, errors.ErrConnect))
	assert.Zero(t, node.submits.Load())

	node.connectErr = nil
	res, err := a.Authorize(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, txID, res.TxID)
}

func TestAuthorizeRejectedReleasesKey(t *testing.T) {
	node := &fakeNode{submitErr: errors.ErrSubmit.New("insufficient funds")}
	a := newAuthorizer(t, node, nil)

	_, err := a.Authorize(context.Background(), validRequest())
	require.True(t, errors.Is(err, errors.ErrSubmit))

	node.submitErr = nil
	node.receipts = transfer()
	_, err = a.Authorize(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), node.submits.Load())
}

func TestAuthorizeReplaysConfirmed(t *testing.T) {
	node := &fakeNode{receipts: transfer()}
	a := newAuthorizer(t, node, nil)

	first, err := a.Authorize(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := a.Authorize(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), node.submits.Load())
}

func TestAuthorizeKeyReusedForOtherSpend(t *testing.T) {
	node := &fakeNode{receipts: transfer()}
	a := newAuthorizer(t, node, nil)

	first := validRequest()
	first.IdempotencyKey = "1"
	_, err := a.Authorize(context.Background(), first)
	require.NoError(t, err)

	second := validRequest()
	second.IdempotencyKey = "1"
	second.Amount = 999
	second.Recipient = types.Address{0xdd}
	second.Inputs[0].UTXOID = types.UTXOID{TxID: types.TxID{2}, OutputIndex: 1}
	res, err := a.Authorize(context.Background(), second)
	require.True(t, errors.Is(err, errors.ErrIdempotencyMismatch))
	assert.Equal(t, Result{}, res)
	assert.Equal(t, int32(1), node.submits.Load())

	// The original request still replays.
	again, err := a.Authorize(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), again.Amount)
}

func TestAuthorizeKeyScopedToWallet(t *testing.T) {
	other := types.Address{0xab}
	node := &fakeNode{receipts: transfer()}
	store := bytecode.NewKVStore(storage.NewMemory())
	require.NoError(t, store.Put(context.Background(), wallet, code))
	require.NoError(t, store.Put(context.Background(), other, code))
	a := New(store, node, nil, Config{SubmitTimeout: time.Second, DedupTTL: time.Minute})

	r := validRequest()
	r.IdempotencyKey = "shared"
	_, err := a.Authorize(context.Background(), r)
	require.NoError(t, err)

	r.Wallet = other
	res, err := a.Authorize(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, other, res.Wallet)
	assert.Equal(t, int32(2), node.submits.Load())
	assert.Equal(t, other, node.last.Owner)
}

func TestAuthorizeUnknownOutcomeBlocksResubmit(t *testing.T) {
	node := &fakeNode{delay: 5 * time.Second, receipts: transfer()}
	store := bytecode.NewKVStore(storage.NewMemory())
	require.NoError(t, store.Put(context.Background(), wallet, code))
	a := New(store, node, nil, Config{SubmitTimeout: 50 * time.Millisecond, DedupTTL: time.Minute})

	_, err := a.Authorize(context.Background(), validRequest())
	require.True(t, errors.Is(err, errors.ErrOutcomeUnknown))

	node.delay = 0
	_, err = a.Authorize(context.Background(), validRequest())
	require.True(t, errors.Is(err, errors.ErrOutcomeUnknown))
	assert.Equal(t, int32(1), node.submits.Load())

	// A fresh idempotency key is a different spend.
	r := validRequest()
	r.IdempotencyKey = "retry-1"
	_, err = a.Authorize(context.Background(), r)
	require.NoError(t, err)
}

func TestAuthorizeInFlight(t *testing.T) {
	node := &fakeNode{delay: 300 * time.Millisecond, receipts: transfer()}
	a := newAuthorizer(t, node, nil)

	done := make(chan error, 1)
	go func() {
		_, err := a.Authorize(context.Background(), validRequest())
		done <- err
	}()
	require.Eventually(t, func() bool { return node.submits.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := a.Authorize(context.Background(), validRequest())
	require.True(t, errors.Is(err, errors.ErrInFlight))
	require.NoError(t, <-done)
}

func TestAuthorizeSignsEnvelope(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sub := signer.NewSubmitter(key)
	node := &fakeNode{receipts: transfer()}
	a := newAuthorizer(t, node, sub)

	_, err = a.Authorize(context.Background(), validRequest())
	require.NoError(t, err)

	env := node.last.Submitter
	require.NotNil(t, env)
	assert.Equal(t, sub.PublicKey(), []byte(env.PublicKey))
	digest := crypto.Hash(node.last.SigningBytes())
	assert.True(t, crypto.VerifySchnorr(digest[:], env.Signature, env.PublicKey))
}

func TestMachineTransitions(t *testing.T) {
	ctx := context.Background()
	sm := newMachine(zerolog.Nop())
	require.NoError(t, sm.Event(ctx, EventValidate))
	require.Error(t, sm.Event(ctx, EventConfirm))
	require.NoError(t, sm.Event(ctx, EventSubmit))
	require.NoError(t, sm.Event(ctx, EventLose))
	assert.Equal(t, StateUnknown, sm.Current())
	require.Error(t, sm.Event(ctx, EventConfirm))
}
