package ledgercache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finkit/ledgercache/guard"
	"github.com/finkit/ledgercache/internal/txindex"
	"github.com/finkit/ledgercache/model"
	"github.com/finkit/ledgercache/rowstore"
)

// TransactionCache is the sibling cache over the transaction log. Its main
// job is O(1) duplicate detection by transaction id, replacing an O(n) scan
// of the log; the secondary indices serve row-ordered listings by document,
// entity, and composite key.
//
// The same TTL gate and token discipline as Cache apply.
type TransactionCache struct {
	store rowstore.Store
	opts  options

	mu  sync.Mutex
	idx *txindex.Index
}

// NewTransactionCache creates a transaction cache over the given store.
// No load happens until the first access.
func NewTransactionCache(store rowstore.Store, optFns ...Option) (*TransactionCache, error) {
	if store == nil {
		return nil, fmt.Errorf("ledgercache: nil store")
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.txColumns.Validate(); err != nil {
		return nil, fmt.Errorf("ledgercache: transaction columns: %w", err)
	}
	return &TransactionCache{store: store, opts: opts}, nil
}

// ensure returns a snapshot no older than the TTL, loading one if needed.
// Callers must hold c.mu.
func (c *TransactionCache) ensure(ctx context.Context) (*txindex.Index, error) {
	now := c.opts.clock()
	if c.idx != nil && now.Sub(c.idx.LoadedAt()) <= c.opts.ttl {
		return c.idx, nil
	}
	if c.idx != nil {
		c.opts.logger.Debug("snapshot expired", "loaded_at", c.idx.LoadedAt(), "ttl", c.opts.ttl)
		c.idx = nil
	}

	start := time.Now()
	idx, err := txindex.Load(ctx, c.store, c.opts.txColumns, c.opts.logger.Logger, now)
	elapsed := time.Since(start)
	if err != nil {
		err = loadError(err)
		c.opts.metrics.RecordLoad(0, 0, elapsed, err)
		c.opts.logger.LogLoad("transactions", 0, 0, elapsed, err)
		return nil, err
	}

	c.opts.metrics.RecordLoad(idx.Len(), idx.SkippedRows(), elapsed, nil)
	c.opts.logger.LogLoad("transactions", idx.Len(), idx.SkippedRows(), elapsed, nil)
	c.idx = idx
	return idx, nil
}

// IsDuplicate reports whether a transaction id was already recorded. Blank
// ids short-circuit to false without triggering a load: they can never have
// been recorded, because load drops rows with blank ids as malformed.
func (c *TransactionCache) IsDuplicate(ctx context.Context, id string) (bool, error) {
	if model.NormalizeTransactionID(id) == "" {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensure(ctx)
	if err != nil {
		return false, err
	}

	start := time.Now()
	dup := idx.IsDuplicate(id)
	c.opts.metrics.RecordLookup(dup, time.Since(start))
	return dup, nil
}

// FindTransaction returns the transaction recorded under an id.
func (c *TransactionCache) FindTransaction(ctx context.Context, id string) (model.Transaction, bool, error) {
	if model.NormalizeTransactionID(id) == "" {
		return model.Transaction{}, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensure(ctx)
	if err != nil {
		return model.Transaction{}, false, err
	}

	start := time.Now()
	tx, ok := idx.Find(id)
	c.opts.metrics.RecordLookup(ok, time.Since(start))
	return tx, ok, nil
}

// AppendTransaction write-throughs a transaction that was just appended to
// the store, inside the same critical section. The append is unconditional:
// duplicate prevention is IsDuplicate consulted before the store write. If
// the snapshot was (re)loaded after the store write the id is already
// indexed and the existing position is returned.
func (c *TransactionCache) AppendTransaction(ctx context.Context, tok guard.Token, tx model.Transaction) (int, error) {
	if !tok.Valid() {
		return 0, ErrNoToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensure(ctx)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if pos, ok := idx.PositionOf(tx.TransactionID); ok {
		c.opts.logger.Debug("append already visible", "transaction_id", tx.TransactionID, "position", pos)
		c.opts.metrics.RecordAppend(time.Since(start), nil)
		return pos, nil
	}
	pos := idx.Append(tx)
	c.opts.metrics.RecordAppend(time.Since(start), nil)
	c.opts.logger.LogAppend("transaction", pos, nil)
	return pos, nil
}

// TransactionsForDocument returns the transactions recorded against a
// document number, in row order, across all entities.
func (c *TransactionCache) TransactionsForDocument(ctx context.Context, docNo string) ([]model.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := idx.ForDocument(docNo)
	c.opts.metrics.RecordAggregate(len(out), time.Since(start))
	return out, nil
}

// TransactionsForEntity returns the transactions recorded for an entity,
// in row order.
func (c *TransactionCache) TransactionsForEntity(ctx context.Context, entity string) ([]model.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := idx.ForEntity(entity)
	c.opts.metrics.RecordAggregate(len(out), time.Since(start))
	return out, nil
}

// TransactionsForKey returns the transactions recorded against one
// (entity, document) pair, in row order.
func (c *TransactionCache) TransactionsForKey(ctx context.Context, entity, docNo string) ([]model.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := idx.ForKey(model.NewKey(entity, docNo))
	c.opts.metrics.RecordAggregate(len(out), time.Since(start))
	return out, nil
}

// InvalidateAll drops the snapshot; the next access forces a full load.
// Idempotent.
func (c *TransactionCache) InvalidateAll(tok guard.Token) error {
	if !tok.Valid() {
		return ErrNoToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.idx = nil
	c.opts.metrics.RecordInvalidate("")
	c.opts.logger.LogInvalidate("transactions", "")
	return nil
}

// Refresh forces the snapshot fresh: an expired or missing snapshot is
// loaded, a fresh one left alone.
func (c *TransactionCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.ensure(ctx)
	return err
}
