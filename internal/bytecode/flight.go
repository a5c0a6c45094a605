package bytecode

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/Klingon-tech/klingnet-multisig/internal/metrics"
	"github.com/Klingon-tech/klingnet-multisig/pkg/types"
)

// Entry is the result of building a wallet.
type Entry struct {
	Wallet Wallet
	Code   types.Bytecode
}

// Flight collapses concurrent builds of the same wallet into one. Builds of
// different wallets run independently.
type Flight struct {
	g singleflight.Group
}

// Do runs fn once for all concurrent callers with the same id and hands each
// of them the same result. shared reports whether the result was also given
// to another caller. fn runs with a context that is not cancelled when a
// single caller gives up; a caller whose ctx ends stops waiting and gets
// ctx.Err().
func (f *Flight) Do(ctx context.Context, id types.WalletID, fn func(context.Context) (Entry, error)) (Entry, bool, error) {
	metrics.Init()
	detached := context.WithoutCancel(ctx)
	ch := f.g.DoChan(id.String(), func() (interface{}, error) {
		return fn(detached)
	})
	select {
	case r := <-ch:
		if r.Shared {
			metrics.FlightShared.Inc()
		}
		if r.Err != nil {
			return Entry{}, r.Shared, r.Err
		}
		return r.Val.(Entry), r.Shared, nil
	case <-ctx.Done():
		return Entry{}, false, ctx.Err()
	}
}
