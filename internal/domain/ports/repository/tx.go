package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque, backend-defined transaction handle.
type Tx interface{}

// NoTX is passed by callers that run outside a transaction.
var NoTX interface{}

// TransactionManager runs fn inside a transaction and hands the backend's
// handle to it as tx. Repositories must accept a nil tx (non-transactional
// path). Backends without real transactions serialize fn instead.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type commitHooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// WithCommitHooks is called by a TransactionManager before it hands ctx to
// fn. The returned run executes the registered hooks and must be called
// only after a successful commit.
func WithCommitHooks(ctx context.Context) (context.Context, func()) {
	h := &commitHooks{}
	run := func() {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
	return context.WithValue(ctx, commitHooksKey{}, h), run
}

// AfterCommit runs fn once the transaction carried by ctx has committed.
// Outside a transaction fn runs immediately. A rolled back transaction
// never runs it.
func AfterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}
