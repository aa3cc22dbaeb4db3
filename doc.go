// Package ledgercache provides a read-optimized caching/indexing layer
// between invoice/payment business logic and a mutable, row-oriented ledger
// store (typically a spreadsheet acting as system of record).
//
// The store is cheap to append to and write cells into, but expensive to
// scan by value. ledgercache turns O(n) lookups by (entity, document
// number) into O(1) map hits and O(n) per-entity aggregation into O(m)
// walks, without ever serving stale settlement status to money paths:
//
//   - Cache: documents, with an active/inactive partition split on the
//     settlement epsilon and amortized-O(1) partition transitions
//   - TransactionCache: the transaction log, with O(1) duplicate detection
//     by transaction id and row-ordered listings
//   - Ledger: both over one sheet pair, with concurrent warm-up
//
// # Consistency Model
//
// Snapshots load lazily, serve for one TTL window, and reload transparently
// when expired; callers never observe a snapshot past its TTL. Mutating
// calls require a guard.Token, which proves the caller holds the external
// critical section around the whole read-balance / write-store /
// write-through sequence. The cache deliberately implements no locking of
// its own across that sequence; see the guard package.
//
// # Quick Start
//
//	store := rowstore.NewMemoryStore()
//	cache, err := ledgercache.New(store, ledgercache.WithTTL(time.Minute))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mu := guard.NewMutex()
//	tok, _ := mu.Acquire(ctx)
//	pos, _ := store.AppendRow(ctx, cols.Render(doc)) // durable write first
//	_, err = cache.AppendDocument(ctx, tok, doc)     // then write-through
//	mu.Release(tok)
//
//	total, _ := cache.SumActiveBalance(ctx, "Acme Corp")
//
// Errors follow a strict taxonomy: a failed store scan is fatal to that
// call (ErrLoadFailure, nothing partial installed); a malformed row is
// logged and skipped; a row that no longer matches its index entry is
// excluded from results and logged; aggregation always returns a number.
package ledgercache
