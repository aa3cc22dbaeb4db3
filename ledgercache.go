package ledgercache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finkit/ledgercache/guard"
	"github.com/finkit/ledgercache/internal/table"
	"github.com/finkit/ledgercache/model"
	"github.com/finkit/ledgercache/rowstore"
)

// PartitionStats is the diagnostic view of the active/inactive split.
// Operational visibility only; nothing here is needed for correctness.
type PartitionStats struct {
	ActiveCount             int
	InactiveCount           int
	Transitions             int
	Tombstones              int
	SkippedRows             int
	MemoryReductionEstimate float64
}

// Cache is the read-optimized document cache over a row store.
//
// A Cache builds its snapshot lazily on first access, serves reads from it
// for one TTL window, and reloads transparently afterwards. Reads are plain
// index lookups; mutations (AppendDocument, UpdateBalance, the
// invalidators) additionally require a guard.Token proving the caller holds
// the external critical section around the store write. The internal mutex
// only keeps concurrent readers of one snapshot safe; it is no substitute
// for that external serialization, because the store write and the cache
// write-through must be atomic together, not individually.
type Cache struct {
	store rowstore.Store
	opts  options

	mu  sync.Mutex
	tab *table.Table
}

// New creates a document cache over the given store. No load happens until
// the first access.
func New(store rowstore.Store, optFns ...Option) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("ledgercache: nil store")
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.docColumns.Validate(); err != nil {
		return nil, fmt.Errorf("ledgercache: document columns: %w", err)
	}
	return &Cache{store: store, opts: opts}, nil
}

// ensure returns a snapshot no older than the TTL, loading one if needed.
// Callers must hold c.mu.
func (c *Cache) ensure(ctx context.Context) (*table.Table, error) {
	now := c.opts.clock()
	if c.tab != nil && now.Sub(c.tab.LoadedAt()) <= c.opts.ttl {
		return c.tab, nil
	}
	if c.tab != nil {
		c.opts.logger.Debug("snapshot expired", "loaded_at", c.tab.LoadedAt(), "ttl", c.opts.ttl)
		c.tab = nil
	}

	start := time.Now()
	tab, err := table.Load(ctx, c.store, c.opts.docColumns, c.opts.logger.Logger, c.opts.compactEvery, now)
	elapsed := time.Since(start)
	if err != nil {
		err = loadError(err)
		c.opts.metrics.RecordLoad(0, 0, elapsed, err)
		c.opts.logger.LogLoad("documents", 0, 0, elapsed, err)
		return nil, err
	}

	stats := tab.Stats()
	c.opts.metrics.RecordLoad(tab.Len(), stats.SkippedRows, elapsed, nil)
	c.opts.logger.LogLoad("documents", tab.Len(), stats.SkippedRows, elapsed, nil)
	c.tab = tab
	return tab, nil
}

// FindByKey returns the document stored under (entity, docNo), both
// normalized. Blank components short-circuit to a miss without touching the
// index or triggering a load.
func (c *Cache) FindByKey(ctx context.Context, entity, docNo string) (model.Document, bool, error) {
	key := model.NewKey(entity, docNo)
	if key.IsZero() {
		return model.Document{}, false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tab, err := c.ensure(ctx)
	if err != nil {
		return model.Document{}, false, err
	}

	start := time.Now()
	d, _, ok := tab.Find(key)
	c.opts.metrics.RecordLookup(ok, time.Since(start))
	return d, ok, nil
}

// ContainsKey reports whether a composite key is already cached. Callers
// run this inside their critical section before the store append; the
// append itself never checks.
func (c *Cache) ContainsKey(ctx context.Context, entity, docNo string) (bool, error) {
	key := model.NewKey(entity, docNo)
	if key.IsZero() {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tab, err := c.ensure(ctx)
	if err != nil {
		return false, err
	}
	return tab.Contains(key), nil
}

// ListActiveForEntity returns summaries of the entity's unsettled
// documents. Unknown entities yield an empty slice, never nil.
func (c *Cache) ListActiveForEntity(ctx context.Context, entity string) ([]model.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tab, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := tab.ListActive(entity)
	c.opts.metrics.RecordAggregate(len(out), time.Since(start))
	return out, nil
}

// ListAllForEntity returns summaries of every cached document of the
// entity, each tagged with its partition. Settled documents are omitted
// unless includeSettled is set.
func (c *Cache) ListAllForEntity(ctx context.Context, entity string, includeSettled bool) ([]model.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tab, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := tab.ListAll(entity, includeSettled)
	c.opts.metrics.RecordAggregate(len(out), time.Since(start))
	return out, nil
}

// SumActiveBalance returns the best-effort total outstanding balance of the
// entity. Per-row problems are skipped and logged, never surfaced: a
// balance query returns a number even over damaged rows. The only error is
// a failed reload.
func (c *Cache) SumActiveBalance(ctx context.Context, entity string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tab, err := c.ensure(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	start := time.Now()
	total := tab.SumActive(entity)
	c.opts.metrics.RecordAggregate(1, time.Since(start))
	return total, nil
}

// AppendDocument write-throughs a document that was just appended to the
// store, inside the same critical section, and returns its cache position.
// If the snapshot was (re)loaded after the store write it already holds the
// row; the append is then skipped and the existing position returned.
func (c *Cache) AppendDocument(ctx context.Context, tok guard.Token, d model.Document) (int, error) {
	if !tok.Valid() {
		return 0, ErrNoToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tab, err := c.ensure(ctx)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if existing, pos, ok := tab.Find(d.Key()); ok && existing.SystemID == d.SystemID {
		c.opts.logger.Debug("append already visible", "key", d.Key().String(), "position", pos)
		c.opts.metrics.RecordAppend(time.Since(start), nil)
		return pos, nil
	}
	pos := tab.Append(d)
	c.opts.metrics.RecordAppend(time.Since(start), nil)
	c.opts.logger.LogAppend("document", pos, nil)
	return pos, nil
}

// UpdateBalance applies a freshly observed balance to a cached document and
// runs the partition transition if the balance crossed the epsilon. The
// store, not the cache, owns derived amounts: callers write the cells
// first, then report the resulting balance here under the same token.
func (c *Cache) UpdateBalance(ctx context.Context, tok guard.Token, entity, docNo string, balance decimal.Decimal) error {
	if !tok.Valid() {
		return ErrNoToken
	}
	key := model.NewKey(entity, docNo)
	if key.IsZero() {
		return ErrNotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tab, err := c.ensure(ctx)
	if err != nil {
		return err
	}
	return translateError(tab.UpdateBalance(key, balance))
}

// InvalidateAll drops the snapshot; the next access forces a full load.
// Idempotent.
func (c *Cache) InvalidateAll(tok guard.Token) error {
	if !tok.Valid() {
		return ErrNoToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tab = nil
	c.opts.metrics.RecordInvalidate("")
	c.opts.logger.LogInvalidate("documents", "")
	return nil
}

// InvalidateEntity invalidates one entity's index slices without dropping
// the snapshot; they are re-derived from cached rows on next access. A
// batch touching many documents of one entity calls this once, not once per
// document: a full reload is the costliest operation the cache can make.
func (c *Cache) InvalidateEntity(tok guard.Token, entity string) error {
	if !tok.Valid() {
		return ErrNoToken
	}
	if model.Normalize(entity) == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tab != nil {
		c.tab.MarkDirty(entity)
	}
	c.opts.metrics.RecordInvalidate(model.Normalize(entity))
	c.opts.logger.LogInvalidate("documents", model.Normalize(entity))
	return nil
}

// Compact rebuilds the active arena without tombstones and returns the slot
// count reclaimed. Automatic compaction (WithCompactEvery) normally makes
// calling this unnecessary.
func (c *Cache) Compact(tok guard.Token) (int, error) {
	if !tok.Valid() {
		return 0, ErrNoToken
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tab == nil {
		return 0, nil
	}
	start := time.Now()
	reclaimed := c.tab.Compact()
	c.opts.metrics.RecordCompact(reclaimed, time.Since(start))
	return reclaimed, nil
}

// PartitionStats returns diagnostic counters for the current snapshot,
// loading one first if needed.
func (c *Cache) PartitionStats(ctx context.Context) (PartitionStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tab, err := c.ensure(ctx)
	if err != nil {
		return PartitionStats{}, err
	}
	s := tab.Stats()
	return PartitionStats{
		ActiveCount:             s.ActiveCount,
		InactiveCount:           s.InactiveCount,
		Transitions:             s.Transitions,
		Tombstones:              s.Tombstones,
		SkippedRows:             s.SkippedRows,
		MemoryReductionEstimate: s.MemoryReduction,
	}, nil
}

// Refresh forces the snapshot fresh: an expired or missing snapshot is
// loaded, a fresh one left alone.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.ensure(ctx)
	return err
}
