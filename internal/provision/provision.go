// Package provision turns a key set into a compiled, stored wallet.
package provision

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-multisig/internal/address"
	"github.com/Klingon-tech/klingnet-multisig/internal/bytecode"
	"github.com/Klingon-tech/klingnet-multisig/internal/keyset"
	"github.com/Klingon-tech/klingnet-multisig/internal/log"
	"github.com/Klingon-tech/klingnet-multisig/internal/metrics"
	"github.com/Klingon-tech/klingnet-multisig/internal/script"
	"github.com/Klingon-tech/klingnet-multisig/pkg/errors"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// Builder compiles a materialized project.
type Builder interface {
	Build(ctx context.Context, proj script.Project) (types.Bytecode, error)
}

// WalletStore is the bytecode store plus the wallet records kept beside it.
type WalletStore interface {
	bytecode.Store
	PutWallet(ctx context.Context, w bytecode.Wallet) (bytecode.Wallet, error)
	LookupWallet(ctx context.Context, id types.WalletID, template types.Hash) (bytecode.Wallet, error)
}

// Wallet is a provisioned wallet. PublicKeys are in slot order.
type Wallet struct {
	PublicKeys types.KeySet   `json:"public_keys"`
	Address    types.Address  `json:"wallet"`
	WalletID   types.WalletID `json:"wallet_id"`
}

// Generator provisions wallets.
type Generator struct {
	engine        *script.Engine
	workspace     *script.Workspace
	builder       Builder
	store         WalletStore
	flight        bytecode.Flight
	keepWorkspace bool
	logger        zerolog.Logger
}

// New creates a Generator. When keepWorkspace is false each project
// directory is removed once its build ends.
func New(engine *script.Engine, ws *script.Workspace, b Builder, store WalletStore, keepWorkspace bool) *Generator {
	metrics.Init()
	return &Generator{
		engine:        engine,
		workspace:     ws,
		builder:       b,
		store:         store,
		keepWorkspace: keepWorkspace,
		logger:        log.Provision,
	}
}

// Generate returns the wallet for keys, building and storing it on first
// use. The key set is validated before anything is rendered or compiled.
//
// The first generation for a key set fixes its slot order; a later call with
// the same keys in another order returns that same wallet.
func (g *Generator) Generate(ctx context.Context, keys []types.PublicKey) (Wallet, error) {
	id, err := keyset.Normalize(keys)
	if err != nil {
		return Wallet{}, err
	}
	slots, err := keyset.Parse(keys)
	if err != nil {
		return Wallet{}, err
	}

	entry, shared, err := g.flight.Do(ctx, id, func(ctx context.Context) (bytecode.Entry, error) {
		return g.build(ctx, id, slots)
	})
	if err != nil {
		return Wallet{}, err
	}
	if shared {
		g.logger.Debug().Str("wallet_id", id.String()).Msg("Shared in-flight generation")
	}
	return Wallet{
		PublicKeys: entry.Wallet.PublicKeys,
		Address:    entry.Wallet.Address,
		WalletID:   id,
	}, nil
}

func (g *Generator) build(ctx context.Context, id types.WalletID, slots types.KeySet) (bytecode.Entry, error) {
	tmpl := g.engine.Fingerprint()

	w, err := g.store.LookupWallet(ctx, id, tmpl)
	switch {
	case err == nil:
		code, err := g.store.Get(ctx, w.Address)
		if err != nil {
			return bytecode.Entry{}, err
		}
		return bytecode.Entry{Wallet: w, Code: code}, nil
	case !errors.Is(err, errors.ErrCacheMiss):
		return bytecode.Entry{}, err
	}

	source, err := g.engine.Render(slots)
	if err != nil {
		return bytecode.Entry{}, err
	}
	proj, err := g.workspace.Materialize(id, source)
	if err != nil {
		return bytecode.Entry{}, errors.Wrap(err, "materialize project")
	}
	if !g.keepWorkspace {
		defer func() {
			if err := g.workspace.Remove(id); err != nil {
				g.logger.Warn().Err(err).Str("wallet_id", id.String()).Msg("Workspace cleanup failed")
			}
		}()
	}

	start := time.Now()
	code, err := g.builder.Build(ctx, proj)
	if err != nil {
		return bytecode.Entry{}, err
	}
	addr := address.Derive(code)
	if err := g.store.Put(ctx, addr, code); err != nil {
		return bytecode.Entry{}, err
	}

	w, err = g.store.PutWallet(ctx, bytecode.Wallet{
		Address:      addr,
		PublicKeys:   slots,
		WalletID:     id,
		Template:     tmpl,
		BytecodeSize: code.Size(),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return bytecode.Entry{}, err
	}
	if w.Address != addr {
		// Another process indexed this key set first.
		if code, err = g.store.Get(ctx, w.Address); err != nil {
			return bytecode.Entry{}, err
		}
	}

	metrics.WalletsGenerated.Inc()
	logger := log.WithWallet(g.logger, w.Address.String())
	logger.Info().
		Str("wallet_id", id.String()).
		Int("bytecode_size", code.Size()).
		Dur("took", time.Since(start)).
		Msg("Wallet generated")
	return bytecode.Entry{Wallet: w, Code: code}, nil
}
