package ledgercache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finkit/ledgercache/guard"
	"github.com/finkit/ledgercache/model"
	"github.com/finkit/ledgercache/rowstore"
)

var docCols = model.DefaultDocumentColumns()

// countingStore counts full scans so tests can assert on reload behavior.
type countingStore struct {
	rowstore.Store
	reads atomic.Int64
}

func (s *countingStore) ReadAll(ctx context.Context) ([]rowstore.Row, error) {
	s.reads.Add(1)
	return s.Store.ReadAll(ctx)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testDoc(entity, docNo, balance string) model.Document {
	return model.Document{
		Entity:     entity,
		DocNo:      docNo,
		BalanceDue: decimal.RequireFromString(balance),
		Status:     model.StatusOpen,
		SystemID:   "DOC-" + entity + "-" + docNo,
	}
}

func seededStore(docs ...model.Document) *rowstore.MemoryStore {
	rows := make([]rowstore.Row, len(docs))
	for i, d := range docs {
		rows[i] = docCols.Render(d)
	}
	return rowstore.NewMemoryStore(rows...)
}

func newCache(t *testing.T, store rowstore.Store, optFns ...Option) *Cache {
	t.Helper()
	optFns = append([]Option{WithLogger(NoopLogger())}, optFns...)
	c, err := New(store, optFns...)
	require.NoError(t, err)
	return c
}

func token(t *testing.T) (guard.Token, func()) {
	t.Helper()
	m := guard.NewMutex()
	tok, err := m.Acquire(context.Background())
	require.NoError(t, err)
	return tok, func() { _ = m.Release(tok) }
}

func TestScenarioA_SumAndListActive(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, seededStore(
		testDoc("Acme", "INV-1", "100"),
		testDoc("Acme", "INV-2", "0"),
		testDoc("Acme", "INV-3", "50"),
	))

	total, err := c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("150")), "got %s", total)

	active, err := c.ListActiveForEntity(ctx, "Acme")
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestScenarioC_TransitionWithoutCompact(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	c := newCache(t, seededStore(testDoc("Acme", "INV-1", "100")), WithCompactEvery(0))

	require.NoError(t, c.UpdateBalance(ctx, tok, "Acme", "INV-1", decimal.Zero))

	active, err := c.ListActiveForEntity(ctx, "Acme")
	require.NoError(t, err)
	assert.Empty(t, active)

	stats, err := c.PartitionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tombstones)
	assert.Equal(t, 1, stats.Transitions)
}

func TestScenarioD_BlankKeysShortCircuit(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: seededStore(testDoc("Acme", "INV-1", "100"))}
	c := newCache(t, store)

	// Prime the snapshot.
	_, _, err := c.FindByKey(ctx, "Acme", "INV-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), store.reads.Load())

	_, ok, err := c.FindByKey(ctx, "", "INV-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.FindByKey(ctx, "Acme", "")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, int64(1), store.reads.Load(), "blank lookups must not trigger loads")
}

func TestFindByKeyNormalizes(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, seededStore(testDoc("Acme Corp", "INV-001", "10")))

	d, ok, err := c.FindByKey(ctx, "  ACME CORP ", "inv-001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "INV-001", d.DocNo)
}

func TestAppendThenFind(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	store := seededStore()
	c := newCache(t, store)

	// Prime the snapshot before the store write so the write-through has to
	// make the row visible itself.
	ok, err := c.ContainsKey(ctx, "Acme", "INV-9")
	require.NoError(t, err)
	require.False(t, ok)

	d := testDoc("Acme", "INV-9", "75")
	_, err = store.AppendRow(ctx, docCols.Render(d)) // durable write first
	require.NoError(t, err)

	pos, err := c.AppendDocument(ctx, tok, d)
	require.NoError(t, err)

	got, ok, err := c.FindByKey(ctx, "acme", "inv-9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.BalanceDue.Equal(d.BalanceDue))

	// Re-delivery of the same write-through is position-stable.
	again, err := c.AppendDocument(ctx, tok, d)
	require.NoError(t, err)
	assert.Equal(t, pos, again)
}

func TestAppendRequiresToken(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, seededStore())

	_, err := c.AppendDocument(ctx, guard.Token{}, testDoc("Acme", "INV-1", "10"))
	assert.ErrorIs(t, err, ErrNoToken)

	err = c.UpdateBalance(ctx, guard.Token{}, "Acme", "INV-1", decimal.Zero)
	assert.ErrorIs(t, err, ErrNoToken)

	assert.ErrorIs(t, c.InvalidateAll(guard.Token{}), ErrNoToken)
	assert.ErrorIs(t, c.InvalidateEntity(guard.Token{}, "Acme"), ErrNoToken)
	_, err = c.Compact(guard.Token{})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTTLBoundary(t *testing.T) {
	ctx := context.Background()
	ttl := time.Minute
	clock := &fakeClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
	store := &countingStore{Store: seededStore(testDoc("Acme", "INV-1", "100"))}
	c := newCache(t, store, WithTTL(ttl), WithClock(clock.Now))

	_, _, err := c.FindByKey(ctx, "Acme", "INV-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), store.reads.Load())

	// One millisecond before expiry: served from the snapshot.
	clock.Advance(ttl - time.Millisecond)
	_, _, err = c.FindByKey(ctx, "Acme", "INV-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.reads.Load())

	// One millisecond past expiry: exactly one reload.
	clock.Advance(2 * time.Millisecond)
	_, _, err = c.FindByKey(ctx, "Acme", "INV-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.reads.Load())

	_, _, err = c.FindByKey(ctx, "Acme", "INV-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.reads.Load(), "reload must happen exactly once")
}

func TestTTLReloadObservesForeignWrites(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := seededStore(testDoc("Acme", "INV-1", "100"))
	c := newCache(t, store, WithTTL(time.Minute), WithClock(clock.Now))

	total, err := c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.RequireFromString("100")))

	// Another writer appends behind the cache's back.
	_, err = store.AppendRow(ctx, docCols.Render(testDoc("Acme", "INV-2", "23")))
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	total, err = c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("123")))
}

func TestInvalidateAllIdempotent(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	store := &countingStore{Store: seededStore(testDoc("Acme", "INV-1", "100"))}
	c := newCache(t, store)

	_, err := c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)

	require.NoError(t, c.InvalidateAll(tok))
	require.NoError(t, c.InvalidateAll(tok))

	total, err := c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, int64(2), store.reads.Load(), "double invalidation still costs one reload")
}

func TestInvalidateEntityAvoidsReload(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	store := &countingStore{Store: seededStore(
		testDoc("Acme", "INV-1", "100"),
		testDoc("Globex", "INV-1", "10"),
	)}
	c := newCache(t, store)

	_, err := c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)

	require.NoError(t, c.InvalidateEntity(tok, "Acme"))

	total, err := c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, int64(1), store.reads.Load(), "surgical invalidation must not reload the store")
}

func TestLoadFailureSurfacesAndInstallsNothing(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, failingDocStore{})

	_, _, err := c.FindByKey(ctx, "Acme", "INV-1")
	assert.ErrorIs(t, err, ErrLoadFailure)

	_, err = c.SumActiveBalance(ctx, "Acme")
	assert.ErrorIs(t, err, ErrLoadFailure)
}

type failingDocStore struct{}

func (failingDocStore) ReadAll(context.Context) ([]rowstore.Row, error) {
	return nil, assert.AnError
}
func (failingDocStore) AppendRow(context.Context, rowstore.Row) (int, error) {
	return 0, assert.AnError
}
func (failingDocStore) WriteCell(context.Context, int, int, string) error {
	return assert.AnError
}

func TestUpdateBalanceUnknownKey(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	c := newCache(t, seededStore(testDoc("Acme", "INV-1", "100")))
	err := c.UpdateBalance(ctx, tok, "Acme", "INV-404", decimal.Zero)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompactReclaimsTombstones(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	c := newCache(t, seededStore(
		testDoc("Acme", "INV-1", "100"),
		testDoc("Acme", "INV-2", "50"),
	), WithCompactEvery(0))

	require.NoError(t, c.UpdateBalance(ctx, tok, "Acme", "INV-1", decimal.Zero))

	reclaimed, err := c.Compact(tok)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	total, err := c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("50")))
}

func TestContainsKeyPreCheck(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, seededStore(testDoc("Acme", "INV-1", "100")))

	ok, err := c.ContainsKey(ctx, "ACME", "inv-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ContainsKey(ctx, "Acme", "INV-2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ContainsKey(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMetricsCollected(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	c := newCache(t, seededStore(testDoc("Acme", "INV-1", "100")), WithMetrics(metrics))

	_, _, err := c.FindByKey(ctx, "Acme", "INV-1")
	require.NoError(t, err)
	_, _, err = c.FindByKey(ctx, "Acme", "INV-404")
	require.NoError(t, err)
	_, err = c.SumActiveBalance(ctx, "Acme")
	require.NoError(t, err)

	assert.Equal(t, int64(1), metrics.LoadCount.Load())
	assert.Equal(t, int64(2), metrics.LookupCount.Load())
	assert.Equal(t, int64(1), metrics.LookupHits.Load())
	assert.Equal(t, int64(1), metrics.AggregateCount.Load())
}

func TestSumIndependentOfInsertionOrder(t *testing.T) {
	ctx := context.Background()
	docs := []model.Document{
		testDoc("Acme", "INV-1", "12.34"),
		testDoc("Acme", "INV-2", "0"),
		testDoc("Acme", "INV-3", "87.66"),
		testDoc("Acme", "INV-4", "0.01"), // exactly epsilon: settled
	}
	want := decimal.RequireFromString("100.00")

	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}}
	for _, order := range orders {
		perm := make([]model.Document, len(docs))
		for i, j := range order {
			perm[i] = docs[j]
		}
		c := newCache(t, seededStore(perm...))
		total, err := c.SumActiveBalance(ctx, "Acme")
		require.NoError(t, err)
		assert.True(t, total.Equal(want), "order %v: got %s", order, total)
	}
}
