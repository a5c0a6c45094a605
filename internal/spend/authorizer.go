// Package spend authorizes spends from wallets and submits them to the node.
package spend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-multisig/internal/bytecode"
	"github.com/Klingon-tech/klingnet-multisig/internal/log"
	"github.com/Klingon-tech/klingnet-multisig/internal/metrics"
	"github.com/Klingon-tech/klingnet-multisig/internal/nodeclient"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultSubmitTimeout = 30 * time.Second
	DefaultDedupTTL      = 10 * time.Minute
)

// Node is the ledger node as the authorizer uses it.
type Node interface {
	Connect(ctx context.Context) (nodeclient.Info, error)
	SubmitPredicateSpend(ctx context.Context, s *nodeclient.PredicateSpend) ([]types.Receipt, error)
}

// EnvelopeSigner signs spends as the submitting party.
type EnvelopeSigner interface {
	PublicKey() []byte
	SignEnvelope(data []byte) ([]byte, error)
}

// Config tunes an Authorizer.
type Config struct {
	SubmitTimeout time.Duration
	DedupTTL      time.Duration
}

// outcome is what the dedup cache remembers about a spend.
type outcome struct {
	fingerprint types.Hash
	state       string
	result      Result
	err         error
}

// Authorizer runs spend requests against stored wallets.
type Authorizer struct {
	store     bytecode.Store
	node      Node
	submitter EnvelopeSigner
	cfg       Config
	logger    zerolog.Logger

	mu      sync.Mutex // serializes dedup check-and-reserve
	cache   *ttlcache.Cache[string, *outcome]
	running atomic.Bool
}

// New creates an Authorizer. submitter may be nil, in which case spends are
// submitted without an envelope.
func New(store bytecode.Store, node Node, submitter EnvelopeSigner, cfg Config) *Authorizer {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}
	metrics.Init()
	return &Authorizer{
		store:     store,
		node:      node,
		submitter: submitter,
		cfg:       cfg,
		logger:    log.Spend,
		cache: ttlcache.New[string, *outcome](
			ttlcache.WithTTL[string, *outcome](cfg.DedupTTL),
			ttlcache.WithDisableTouchOnHit[string, *outcome](),
		),
	}
}

// Start runs the dedup cache's expiry loop until Stop is called.
func (a *Authorizer) Start() {
	if a.running.CompareAndSwap(false, true) {
		go a.cache.Start()
	}
}

// Stop ends the expiry loop. It is a no-op if the loop is not running.
func (a *Authorizer) Stop() {
	if a.running.CompareAndSwap(true, false) {
		a.cache.Stop()
	}
}

// Authorize validates req, submits it and checks the node's receipt.
//
// A request whose dedup key was already confirmed returns the recorded
// result without resubmitting. A request whose earlier attempt has no known
// outcome returns ErrOutcomeUnknown until the record expires; callers must
// retry with the same idempotency key.
func (a *Authorizer) Authorize(ctx context.Context, req Request) (Result, error) {
	// Once accepted, a spend runs to a recorded state even if the caller
	// goes away.
	ctx = context.WithoutCancel(ctx)
	logger := log.WithWallet(a.logger, req.Wallet.String())
	sm := newMachine(logger)

	if err := req.Validate(); err != nil {
		_ = sm.Event(ctx, EventFail)
		return Result{}, err
	}
	_ = sm.Event(ctx, EventValidate)

	key, fp := req.DedupKey(), req.Fingerprint()
	if prev, ok := a.reserve(key, fp); !ok {
		return a.replay(prev, fp)
	}

	res, err := a.run(ctx, sm, &req, key)
	a.settle(key, fp, sm.Current(), res, err)
	metrics.SpendOutcomes.WithLabelValues(sm.Current()).Inc()
	if err != nil {
		logger.Warn().Err(err).Str("state", sm.Current()).Msg("Spend not confirmed")
		return Result{}, err
	}
	logger.Info().
		Str("tx_id", res.TxID.String()).
		Uint64("amount", res.Amount).
		Int("inputs", len(res.Inputs)).
		Msg("Spend confirmed")
	return res, nil
}

func (a *Authorizer) run(ctx context.Context, sm *fsm.FSM, req *Request, key string) (Result, error) {
	code, err := a.store.Get(ctx, req.Wallet)
	if err != nil {
		_ = sm.Event(ctx, EventFail)
		return Result{}, err
	}

	spend := &nodeclient.PredicateSpend{
		Owner:     req.Wallet,
		Code:      code,
		AssetID:   req.AssetID,
		Amount:    req.Amount,
		Recipient: req.Recipient,
		Inputs:    make([]nodeclient.Input, len(req.Inputs)),
		DedupKey:  key,
	}
	for i, in := range req.Inputs {
		spend.Inputs[i] = nodeclient.Input{UTXOID: in.UTXOID, Data: in.Payload()}
	}
	if a.submitter != nil {
		sig, err := a.submitter.SignEnvelope(spend.SigningBytes())
		if err != nil {
			_ = sm.Event(ctx, EventFail)
			return Result{}, errors.Wrap(err, "sign envelope")
		}
		spend.Submitter = &nodeclient.Envelope{PublicKey: a.submitter.PublicKey(), Signature: sig}
	}

	submitCtx, cancel := context.WithTimeout(ctx, a.cfg.SubmitTimeout)
	defer cancel()

	if _, err := a.node.Connect(submitCtx); err != nil {
		_ = sm.Event(ctx, EventFail)
		return Result{}, err
	}

	_ = sm.Event(ctx, EventSubmit)
	receipts, err := a.node.SubmitPredicateSpend(submitCtx, spend)
	if err != nil {
		if errors.Is(err, errors.ErrOutcomeUnknown) {
			_ = sm.Event(ctx, EventLose)
		} else {
			_ = sm.Event(ctx, EventFail)
		}
		return Result{}, err
	}

	tx, err := transferID(receipts)
	if err != nil {
		_ = sm.Event(ctx, EventFail)
		return Result{}, err
	}
	_ = sm.Event(ctx, EventConfirm)
	return req.result(tx), nil
}

// transferID requires exactly one transfer receipt and returns its id.
func transferID(receipts []types.Receipt) (types.TxID, error) {
	if len(receipts) != 1 {
		return types.TxID{}, errors.ErrInvalidReceipt.Newf("want 1 receipt, got %d", len(receipts))
	}
	if receipts[0].Kind != types.ReceiptTransfer {
		return types.TxID{}, errors.ErrInvalidReceipt.Newf("want %s receipt, got %s", types.ReceiptTransfer, receipts[0].Kind)
	}
	return receipts[0].ID, nil
}

// reserve claims key for a new attempt. It returns the existing record and
// false when the key is already taken.
func (a *Authorizer) reserve(key string, fp types.Hash) (*outcome, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if item := a.cache.Get(key); item != nil {
		return item.Value(), false
	}
	a.cache.Set(key, &outcome{fingerprint: fp, state: StateSubmitted}, ttlcache.DefaultTTL)
	return nil, true
}

// settle records how an attempt ended. Attempts that certainly did not
// change the ledger release the key so the caller can retry.
func (a *Authorizer) settle(key string, fp types.Hash, state string, res Result, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case state == StateConfirmed, state == StateUnknown, errors.Is(err, errors.ErrInvalidReceipt):
		a.cache.Set(key, &outcome{fingerprint: fp, state: state, result: res, err: err}, ttlcache.DefaultTTL)
	default:
		a.cache.Delete(key)
	}
}

// replay answers a request whose key is already recorded. The key only
// replays the spend it was first used for.
func (a *Authorizer) replay(prev *outcome, fp types.Hash) (Result, error) {
	if prev.fingerprint != fp {
		metrics.SpendOutcomes.WithLabelValues("mismatched").Inc()
		return Result{}, errors.ErrIdempotencyMismatch.New("request differs from the spend recorded for this key")
	}
	metrics.SpendOutcomes.WithLabelValues("replayed").Inc()
	switch prev.state {
	case StateConfirmed:
		return prev.result, nil
	case StateUnknown:
		return Result{}, errors.ErrOutcomeUnknown.New("earlier attempt with this key has no known outcome")
	case StateFailed:
		return Result{}, prev.err
	default:
		return Result{}, errors.ErrInFlight.New("spend with this key is being processed")
	}
}
