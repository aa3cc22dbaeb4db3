package ledgercache

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/finkit/ledgercache/rowstore"
)

// Ledger bundles the document cache and the transaction cache over one
// sheet pair, sharing configuration.
type Ledger struct {
	Documents    *Cache
	Transactions *TransactionCache
}

// NewLedger creates both caches with the same options.
func NewLedger(docStore, txStore rowstore.Store, optFns ...Option) (*Ledger, error) {
	docs, err := New(docStore, optFns...)
	if err != nil {
		return nil, err
	}
	txs, err := NewTransactionCache(txStore, optFns...)
	if err != nil {
		return nil, err
	}
	return &Ledger{Documents: docs, Transactions: txs}, nil
}

// Warm loads both snapshots concurrently. Useful at startup so the first
// user-facing call does not pay for two sequential full scans.
func (l *Ledger) Warm(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.Documents.Refresh(ctx) })
	g.Go(func() error { return l.Transactions.Refresh(ctx) })
	return g.Wait()
}
