// Package bytecode persists compiled predicates by wallet address.
package bytecode

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/Klingon-tech/klingnet-multisig/internal/log"
	"github.com/Klingon-tech/klingnet-multisig/internal/metrics"
	"github.com/Klingon-tech/klingnet-multisig/internal/storage"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// Key prefixes in the underlying database.
var (
	bytecodePrefix = []byte("bytecode/")
	walletPrefix   = []byte("wallet/")
	indexPrefix    = []byte("walletid/")
)

// Store maps wallet addresses to their predicate bytecode. An address has at
// most one bytecode and it never changes once written.
type Store interface {
	Put(ctx context.Context, addr types.Address, code types.Bytecode) error
	Get(ctx context.Context, addr types.Address) (types.Bytecode, error)
	Has(ctx context.Context, addr types.Address) (bool, error)
}

// Wallet is the metadata kept next to a wallet's bytecode. PublicKeys are in
// slot order: key i is bound to signature slot i of the script.
type Wallet struct {
	Address      types.Address  `json:"wallet"`
	PublicKeys   types.KeySet   `json:"public_keys"`
	WalletID     types.WalletID `json:"wallet_id"`
	Template     types.Hash     `json:"template"`
	BytecodeSize int            `json:"bytecode_size"`
	CreatedAt    time.Time      `json:"created_at"`
}

// KVStore implements Store on a storage.DB.
type KVStore struct {
	code    *storage.PrefixDB
	wallets *storage.PrefixDB
	index   *storage.PrefixDB
}

var _ Store = (*KVStore)(nil)

// NewKVStore returns a store backed by db.
func NewKVStore(db storage.DB) *KVStore {
	metrics.Init()
	return &KVStore{
		code:    storage.NewPrefixDB(db, bytecodePrefix),
		wallets: storage.NewPrefixDB(db, walletPrefix),
		index:   storage.NewPrefixDB(db, indexPrefix),
	}
}

// Put stores code under addr. Writing the same code again is a no-op;
// writing different code for a stored address fails with ErrImmutable and
// leaves the stored code untouched.
func (s *KVStore) Put(ctx context.Context, addr types.Address, code types.Bytecode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(code) == 0 {
		return errors.ErrInvalidRequest.New("empty bytecode")
	}
	inserted, err := s.code.Insert(addr[:], code)
	if err != nil {
		return errors.Wrapf(err, "store bytecode for %s", addr)
	}
	if inserted {
		log.Store.Debug().Str("wallet", addr.String()).Int("size", len(code)).Msg("Stored bytecode")
		return nil
	}
	existing, err := s.code.Get(addr[:])
	if err != nil {
		return errors.Wrapf(err, "read bytecode for %s", addr)
	}
	if !bytes.Equal(existing, code) {
		return errors.ErrImmutable.Newf("wallet %s", addr)
	}
	return nil
}

// Get returns the code stored for addr, or ErrCacheMiss.
func (s *KVStore) Get(ctx context.Context, addr types.Address) (types.Bytecode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code, err := s.code.Get(addr[:])
	if errors.Is(err, storage.ErrNotFound) {
		metrics.StoreLookups.WithLabelValues("miss").Inc()
		return nil, errors.ErrCacheMiss.Newf("no bytecode for wallet %s", addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read bytecode for %s", addr)
	}
	metrics.StoreLookups.WithLabelValues("hit").Inc()
	return code, nil
}

// Has reports whether code is stored for addr.
func (s *KVStore) Has(ctx context.Context, addr types.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.code.Has(addr[:])
}

// PutWallet records w and indexes it by (WalletID, Template). The first
// record indexed for a key set wins: if another wallet was indexed first,
// that wallet is returned and w is left unindexed.
func (s *KVStore) PutWallet(ctx context.Context, w Wallet) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return Wallet{}, errors.Wrap(err, "encode wallet")
	}
	if _, err := s.wallets.Insert(w.Address[:], data); err != nil {
		return Wallet{}, errors.Wrapf(err, "store wallet %s", w.Address)
	}
	inserted, err := s.index.Insert(indexKey(w.WalletID, w.Template), w.Address[:])
	if err != nil {
		return Wallet{}, errors.Wrapf(err, "index wallet %s", w.Address)
	}
	if inserted {
		return w, nil
	}
	return s.LookupWallet(ctx, w.WalletID, w.Template)
}

// LookupWallet returns the wallet built for a key set from the given
// template, or ErrCacheMiss.
func (s *KVStore) LookupWallet(ctx context.Context, id types.WalletID, template types.Hash) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}
	raw, err := s.index.Get(indexKey(id, template))
	if errors.Is(err, storage.ErrNotFound) {
		return Wallet{}, errors.ErrCacheMiss.Newf("no wallet for key set %s", id)
	}
	if err != nil {
		return Wallet{}, errors.Wrapf(err, "read index for %s", id)
	}
	var a types.Address
	copy(a[:], raw)
	return s.GetWallet(ctx, a)
}

func indexKey(id types.WalletID, template types.Hash) []byte {
	k := make([]byte, 0, 2*types.HashSize)
	k = append(k, id[:]...)
	return append(k, template[:]...)
}

// GetWallet returns the record for addr, or ErrCacheMiss.
func (s *KVStore) GetWallet(ctx context.Context, addr types.Address) (Wallet, error) {
	if err := ctx.Err(); err != nil {
		return Wallet{}, err
	}
	data, err := s.wallets.Get(addr[:])
	if errors.Is(err, storage.ErrNotFound) {
		return Wallet{}, errors.ErrCacheMiss.Newf("unknown wallet %s", addr)
	}
	if err != nil {
		return Wallet{}, errors.Wrapf(err, "read wallet %s", addr)
	}
	var w Wallet
	if err := json.Unmarshal(data, &w); err != nil {
		return Wallet{}, errors.Wrapf(err, "decode wallet %s", addr)
	}
	return w, nil
}

// CountWallets returns the number of recorded wallets.
func (s *KVStore) CountWallets(ctx context.Context) (int, error) {
	n := 0
	err := s.wallets.ForEach(nil, func(_, _ []byte) error {
		n++
		return ctx.Err()
	})
	return n, err
}
