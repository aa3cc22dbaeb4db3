// Package txindex implements the transaction-side engine: a positional row
// table with four indices (transaction id, document number, entity, and
// composite key) for O(1) duplicate detection and row-ordered listings.
//
// Position sets are Roaring bitmaps: iteration is ascending, and positions
// only ever grow, so bitmap order equals row order. Like the document table,
// the index has no internal locking; the facade serializes access.
package txindex

import (
	"context"
	"log/slog"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/finkit/ledgercache/model"
	"github.com/finkit/ledgercache/rowstore"
)

// Index holds one snapshot of the transaction cache.
type Index struct {
	logger *slog.Logger

	rows        []model.Transaction
	byID        map[string]int // transaction id -> position, last write wins
	byDocNo     map[string]*roaring.Bitmap
	byEntity    map[string]*roaring.Bitmap
	byComposite map[model.Key]*roaring.Bitmap

	skipped  int
	loadedAt time.Time
}

// Load builds an Index from a full store scan. Malformed rows are logged
// and skipped; a store read failure is fatal and installs nothing.
func Load(ctx context.Context, store rowstore.Store, cols model.TransactionColumns, logger *slog.Logger, now time.Time) (*Index, error) {
	raw, err := store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		logger:      logger,
		rows:        make([]model.Transaction, 0, len(raw)),
		byID:        make(map[string]int, len(raw)),
		byDocNo:     make(map[string]*roaring.Bitmap),
		byEntity:    make(map[string]*roaring.Bitmap),
		byComposite: make(map[model.Key]*roaring.Bitmap),
		loadedAt:    now,
	}

	for i, cells := range raw {
		tx, err := cols.Parse(cells)
		if err != nil {
			idx.skipped++
			logger.Warn("skipping malformed transaction row", "row", i, "error", err)
			continue
		}
		idx.index(tx)
	}

	logger.Debug("transaction cache loaded", "rows", len(idx.rows), "skipped", idx.skipped)
	return idx, nil
}

func (idx *Index) index(tx model.Transaction) int {
	pos := len(idx.rows)
	idx.rows = append(idx.rows, tx)

	id := model.NormalizeTransactionID(tx.TransactionID)
	if old, dup := idx.byID[id]; dup {
		idx.logger.Warn("duplicate transaction id shadows earlier row",
			"transaction_id", id,
			"shadowed_position", old,
			"position", pos,
		)
	}
	idx.byID[id] = pos

	key := tx.Key()
	addTo(idx.byDocNo, key.DocNo, pos)
	addTo(idx.byEntity, key.Entity, pos)
	addToKey(idx.byComposite, key, pos)
	return pos
}

func addTo(m map[string]*roaring.Bitmap, k string, pos int) {
	bm, ok := m[k]
	if !ok {
		bm = roaring.New()
		m[k] = bm
	}
	bm.Add(uint32(pos))
}

func addToKey(m map[model.Key]*roaring.Bitmap, k model.Key, pos int) {
	bm, ok := m[k]
	if !ok {
		bm = roaring.New()
		m[k] = bm
	}
	bm.Add(uint32(pos))
}

// LoadedAt returns the snapshot's load timestamp for TTL gating.
func (idx *Index) LoadedAt() time.Time {
	return idx.loadedAt
}

// Len returns the number of rows held.
func (idx *Index) Len() int {
	return len(idx.rows)
}

// SkippedRows returns the number of malformed rows dropped at load.
func (idx *Index) SkippedRows() int {
	return idx.skipped
}

// IsDuplicate reports whether a transaction id has already been recorded.
// This is the primary guard against double-processing one logical edit
// event, e.g. a trigger firing twice.
func (idx *Index) IsDuplicate(id string) bool {
	_, ok := idx.byID[model.NormalizeTransactionID(id)]
	return ok
}

// PositionOf returns the cache position recorded under an id.
func (idx *Index) PositionOf(id string) (int, bool) {
	pos, ok := idx.byID[model.NormalizeTransactionID(id)]
	return pos, ok
}

// Find returns the transaction recorded under an id.
func (idx *Index) Find(id string) (model.Transaction, bool) {
	pos, ok := idx.byID[model.NormalizeTransactionID(id)]
	if !ok {
		return model.Transaction{}, false
	}
	return idx.rows[pos], true
}

// Append write-throughs one freshly stored transaction and returns its
// cache position. Append is unconditional: callers must have consulted
// IsDuplicate before the store write.
func (idx *Index) Append(tx model.Transaction) int {
	return idx.index(tx)
}

// ForDocument returns the transactions recorded against a document number,
// in row order, across all entities.
func (idx *Index) ForDocument(docNo string) []model.Transaction {
	return idx.collect(idx.byDocNo[model.Normalize(docNo)])
}

// ForEntity returns the transactions recorded for an entity, in row order.
func (idx *Index) ForEntity(entity string) []model.Transaction {
	return idx.collect(idx.byEntity[model.Normalize(entity)])
}

// ForKey returns the transactions recorded against one (entity, document)
// pair, in row order.
func (idx *Index) ForKey(key model.Key) []model.Transaction {
	return idx.collect(idx.byComposite[key])
}

func (idx *Index) collect(bm *roaring.Bitmap) []model.Transaction {
	out := make([]model.Transaction, 0)
	if bm == nil {
		return out
	}
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, idx.rows[it.Next()])
	}
	return out
}
