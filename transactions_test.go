package ledgercache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finkit/ledgercache/guard"
	"github.com/finkit/ledgercache/model"
	"github.com/finkit/ledgercache/rowstore"
)

var txCols = model.DefaultTransactionColumns()

func testTx(id, entity, docNo, amount string) model.Transaction {
	return model.Transaction{
		Entity:        entity,
		DocNo:         docNo,
		Type:          model.TxPayment,
		Amount:        decimal.RequireFromString(amount),
		TransactionID: id,
	}
}

func seededTxStore(txs ...model.Transaction) *rowstore.MemoryStore {
	rows := make([]rowstore.Row, len(txs))
	for i, x := range txs {
		rows[i] = txCols.Render(x)
	}
	return rowstore.NewMemoryStore(rows...)
}

func newTxCache(t *testing.T, store rowstore.Store, optFns ...Option) *TransactionCache {
	t.Helper()
	optFns = append([]Option{WithLogger(NoopLogger())}, optFns...)
	c, err := NewTransactionCache(store, optFns...)
	require.NoError(t, err)
	return c
}

func TestScenarioB_IsDuplicate(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	store := seededTxStore()
	c := newTxCache(t, store)

	tx := testTx("TX-1", "Acme", "INV-1", "100")
	_, err := store.AppendRow(ctx, txCols.Render(tx))
	require.NoError(t, err)
	_, err = c.AppendTransaction(ctx, tok, tx)
	require.NoError(t, err)

	dup, err := c.IsDuplicate(ctx, "TX-1")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = c.IsDuplicate(ctx, "TX-2")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestIsDuplicateBlankIDShortCircuits(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{Store: seededTxStore()}
	c := newTxCache(t, store)

	dup, err := c.IsDuplicate(ctx, "   ")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, int64(0), store.reads.Load())
}

func TestAppendTransactionRequiresToken(t *testing.T) {
	ctx := context.Background()
	c := newTxCache(t, seededTxStore())

	_, err := c.AppendTransaction(ctx, tokenZero(), testTx("TX-1", "Acme", "INV-1", "1"))
	assert.ErrorIs(t, err, ErrNoToken)
	assert.ErrorIs(t, c.InvalidateAll(tokenZero()), ErrNoToken)
}

func TestAppendTransactionPositionStable(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	c := newTxCache(t, seededTxStore(testTx("TX-1", "Acme", "INV-1", "10")))

	// Already visible from the load: append is skipped, position reused.
	pos, err := c.AppendTransaction(ctx, tok, testTx("TX-1", "Acme", "INV-1", "10"))
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	pos, err = c.AppendTransaction(ctx, tok, testTx("TX-2", "Acme", "INV-1", "20"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
}

func TestTransactionListings(t *testing.T) {
	ctx := context.Background()
	c := newTxCache(t, seededTxStore(
		testTx("TX-1", "Acme", "INV-1", "10"),
		testTx("TX-2", "Globex", "INV-1", "20"),
		testTx("TX-3", "Acme", "INV-2", "30"),
	))

	byDoc, err := c.TransactionsForDocument(ctx, "INV-1")
	require.NoError(t, err)
	assert.Len(t, byDoc, 2)

	byEntity, err := c.TransactionsForEntity(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, byEntity, 2)
	assert.Equal(t, "TX-1", byEntity[0].TransactionID)
	assert.Equal(t, "TX-3", byEntity[1].TransactionID)

	byKey, err := c.TransactionsForKey(ctx, "Acme", "INV-1")
	require.NoError(t, err)
	require.Len(t, byKey, 1)
	assert.Equal(t, "TX-1", byKey[0].TransactionID)

	empty, err := c.TransactionsForEntity(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTransactionCacheTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := &countingStore{Store: seededTxStore(testTx("TX-1", "Acme", "INV-1", "10"))}
	c := newTxCache(t, store, WithTTL(time.Minute), WithClock(clock.Now))

	_, err := c.IsDuplicate(ctx, "TX-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), store.reads.Load())

	clock.Advance(time.Minute - time.Millisecond)
	_, err = c.IsDuplicate(ctx, "TX-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), store.reads.Load())

	clock.Advance(2 * time.Millisecond)
	dup, err := c.IsDuplicate(ctx, "TX-1")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, int64(2), store.reads.Load())
}

func TestTransactionInvalidateAll(t *testing.T) {
	ctx := context.Background()
	tok, release := token(t)
	defer release()

	store := &countingStore{Store: seededTxStore(testTx("TX-1", "Acme", "INV-1", "10"))}
	c := newTxCache(t, store)

	_, err := c.IsDuplicate(ctx, "TX-1")
	require.NoError(t, err)

	require.NoError(t, c.InvalidateAll(tok))
	require.NoError(t, c.InvalidateAll(tok))

	dup, err := c.IsDuplicate(ctx, "TX-1")
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, int64(2), store.reads.Load())
}

func TestFindTransaction(t *testing.T) {
	ctx := context.Background()
	c := newTxCache(t, seededTxStore(testTx("TX-1", "Acme", "INV-1", "10")))

	tx, ok, err := c.FindTransaction(ctx, " TX-1 ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("10")))

	_, ok, err = c.FindTransaction(ctx, "TX-404")
	require.NoError(t, err)
	assert.False(t, ok)
}

func tokenZero() guard.Token { return guard.Token{} }
