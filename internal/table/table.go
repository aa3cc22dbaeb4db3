// Package table implements the document-side engine: the positional row
// table, its indices, and the active/inactive partition.
//
// A Table is one cache snapshot. It has no internal locking and no TTL
// awareness; the facade owns both. Within a snapshot, readers may still
// mutate: entity-scoped invalidation marks index slices dirty and the next
// access re-derives them from rows, so the facade must serialize all calls.
package table

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finkit/ledgercache/internal/arena"
	"github.com/finkit/ledgercache/model"
	"github.com/finkit/ledgercache/rowstore"
)

// ErrNotFound is returned when a key addresses no row in the table.
var ErrNotFound = errors.New("table: document not found")

// Skip reason codes used in aggregation log lines.
const (
	reasonTombstone     = "tombstone"
	reasonIndexMismatch = "index_mismatch"
)

// Stats is the diagnostic view of the partition state.
type Stats struct {
	ActiveCount     int
	InactiveCount   int
	Transitions     int
	Tombstones      int
	SkippedRows     int
	MemoryReduction float64
}

// Table holds one snapshot of the document cache.
type Table struct {
	logger *slog.Logger

	rows        []model.Document
	primary     map[model.Key]int
	byEntity    map[string][]int
	active      *arena.Arena
	activeByEnt map[string][]int // entity -> arena slot ids; may hold tombstoned slots
	slotOf      map[int]int      // row position -> live arena slot
	dirty       map[string]struct{}

	skipped      int
	transitions  int
	sinceCompact int
	compactEvery int
	loadedAt     time.Time
}

// Load builds a Table from a full store scan. Malformed rows are logged and
// skipped; a store read failure is fatal and installs nothing.
func Load(ctx context.Context, store rowstore.Store, cols model.DocumentColumns, logger *slog.Logger, compactEvery int, now time.Time) (*Table, error) {
	raw, err := store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	t := &Table{
		logger:       logger,
		rows:         make([]model.Document, 0, len(raw)),
		primary:      make(map[model.Key]int, len(raw)),
		byEntity:     make(map[string][]int),
		active:       arena.New(len(raw)),
		activeByEnt:  make(map[string][]int),
		slotOf:       make(map[int]int),
		dirty:        make(map[string]struct{}),
		compactEvery: compactEvery,
		loadedAt:     now,
	}

	for i, cells := range raw {
		d, err := cols.Parse(cells)
		if err != nil {
			t.skipped++
			logger.Warn("skipping malformed row", "row", i, "error", err)
			continue
		}
		t.index(d)
	}

	logger.Debug("document cache loaded",
		"rows", len(t.rows),
		"skipped", t.skipped,
		"active", t.active.Live(),
	)
	return t, nil
}

// index appends a parsed document to rows and every index.
func (t *Table) index(d model.Document) int {
	key := d.Key()
	pos := len(t.rows)
	t.rows = append(t.rows, d)

	if old, dup := t.primary[key]; dup {
		// Last write wins on the index; the earlier row stays in the table
		// but becomes unreachable by key.
		t.logger.Warn("duplicate key shadows earlier row",
			"key", key.String(),
			"shadowed_position", old,
			"position", pos,
		)
	}
	t.primary[key] = pos

	t.byEntity[key.Entity] = append(t.byEntity[key.Entity], pos)
	if d.Active() {
		slot := t.active.Add(pos)
		t.slotOf[pos] = slot
		t.activeByEnt[key.Entity] = append(t.activeByEnt[key.Entity], slot)
	}
	return pos
}

// LoadedAt returns the snapshot's load timestamp for TTL gating.
func (t *Table) LoadedAt() time.Time {
	return t.loadedAt
}

// Len returns the number of rows held.
func (t *Table) Len() int {
	return len(t.rows)
}

// Find returns the document for a normalized key.
func (t *Table) Find(key model.Key) (model.Document, int, bool) {
	pos, ok := t.primary[key]
	if !ok {
		return model.Document{}, 0, false
	}
	d := t.rows[pos]
	if d.Key() != key {
		t.logger.Warn("index mismatch on lookup",
			"expected", key.String(),
			"actual", d.Key().String(),
			"position", pos,
		)
		return model.Document{}, 0, false
	}
	return d, pos, true
}

// Contains reports whether a key is present, for caller-side duplicate
// pre-checks before a store append.
func (t *Table) Contains(key model.Key) bool {
	_, ok := t.primary[key]
	return ok
}

// ensureEntity re-derives one entity's index slices from rows if they were
// invalidated. This is the surgical alternative to a full reload: O(n) over
// in-memory rows instead of a store round trip.
func (t *Table) ensureEntity(entity string) {
	if _, isDirty := t.dirty[entity]; !isDirty {
		return
	}
	delete(t.dirty, entity)

	for _, slot := range t.activeByEnt[entity] {
		if pos, ok := t.active.Get(slot); ok {
			t.active.Remove(slot)
			delete(t.slotOf, pos)
		}
	}

	positions := make([]int, 0)
	slots := make([]int, 0)
	for pos, d := range t.rows {
		if model.Normalize(d.Entity) != entity {
			continue
		}
		positions = append(positions, pos)
		if d.Active() {
			slot := t.active.Add(pos)
			t.slotOf[pos] = slot
			slots = append(slots, slot)
		}
	}
	t.byEntity[entity] = positions
	t.activeByEnt[entity] = slots
}

// ListActive returns summaries of the entity's active documents, skipping
// tombstoned slots. Unknown entities yield an empty, non-nil slice.
func (t *Table) ListActive(entity string) []model.Summary {
	e := model.Normalize(entity)
	t.ensureEntity(e)

	slots := t.activeByEnt[e]
	out := make([]model.Summary, 0, len(slots))
	for _, slot := range slots {
		pos, ok := t.active.Get(slot)
		if !ok {
			continue
		}
		d := t.rows[pos]
		if model.Normalize(d.Entity) != e {
			t.logger.Warn("index mismatch in active walk",
				"expected", e,
				"actual", model.Normalize(d.Entity),
				"position", pos,
			)
			continue
		}
		out = append(out, model.Summarize(d, pos))
	}
	return out
}

// ListAll returns summaries of every document of the entity, each tagged
// with its partition. Settled documents are filtered out unless requested.
func (t *Table) ListAll(entity string, includeSettled bool) []model.Summary {
	e := model.Normalize(entity)
	t.ensureEntity(e)

	positions := t.byEntity[e]
	out := make([]model.Summary, 0, len(positions))
	for _, pos := range positions {
		d := t.rows[pos]
		if model.Normalize(d.Entity) != e {
			t.logger.Warn("index mismatch in entity walk",
				"expected", e,
				"actual", model.Normalize(d.Entity),
				"position", pos,
			)
			continue
		}
		if !includeSettled && !d.Active() {
			continue
		}
		out = append(out, model.Summarize(d, pos))
	}
	return out
}

// SumActive returns the best-effort total of the entity's outstanding
// balances. Rows that cannot be safely included are skipped and reported in
// a single summary log line; the call always returns a number.
func (t *Table) SumActive(entity string) decimal.Decimal {
	e := model.Normalize(entity)
	t.ensureEntity(e)

	total := decimal.Zero
	skips := map[string]int{}
	for _, slot := range t.activeByEnt[e] {
		pos, ok := t.active.Get(slot)
		if !ok {
			skips[reasonTombstone]++
			continue
		}
		d := t.rows[pos]
		if model.Normalize(d.Entity) != e {
			skips[reasonIndexMismatch]++
			continue
		}
		total = total.Add(d.BalanceDue)
	}

	if len(skips) > 0 {
		// One line per call. Tombstone skips are normal partition churn;
		// mismatches mean an index points at the wrong row.
		log := t.logger.Debug
		if skips[reasonIndexMismatch] > 0 {
			log = t.logger.Warn
		}
		log("aggregation skipped rows",
			"entity", e,
			reasonTombstone, skips[reasonTombstone],
			reasonIndexMismatch, skips[reasonIndexMismatch],
		)
	}
	return total
}

// Append write-throughs one freshly stored document and returns its cache
// position. No duplicate pre-check happens here: callers check Contains
// before the store write, and a violated contract means last write wins.
func (t *Table) Append(d model.Document) int {
	e := d.Key().Entity
	if _, isDirty := t.dirty[e]; isDirty {
		// The entity's slices are pending re-derivation; appending to rows
		// is enough, the rebuild will pick the new row up.
		key := d.Key()
		pos := len(t.rows)
		t.rows = append(t.rows, d)
		if old, dup := t.primary[key]; dup {
			t.logger.Warn("duplicate key shadows earlier row",
				"key", key.String(),
				"shadowed_position", old,
				"position", pos,
			)
		}
		t.primary[key] = pos
		return pos
	}
	return t.index(d)
}

// UpdateBalance applies a freshly observed balance to a document and runs
// the partition transition if the balance crossed the epsilon. This is the
// only in-place mutation the cache supports; all other derived fields stay
// whatever the store says until the next reload.
func (t *Table) UpdateBalance(key model.Key, balance decimal.Decimal) error {
	pos, ok := t.primary[key]
	if !ok {
		return ErrNotFound
	}
	d := &t.rows[pos]
	if d.Key() != key {
		t.logger.Warn("index mismatch on balance update",
			"expected", key.String(),
			"actual", d.Key().String(),
			"position", pos,
		)
		return ErrNotFound
	}

	t.ensureEntity(key.Entity)
	d.BalanceDue = balance

	slot, wasActive := t.slotOf[pos]
	isActive := model.IsActive(balance)
	switch {
	case wasActive && !isActive:
		t.active.Remove(slot)
		delete(t.slotOf, pos)
		t.transitions++
		t.sinceCompact++
	case !wasActive && isActive:
		slot := t.active.Add(pos)
		t.slotOf[pos] = slot
		t.activeByEnt[key.Entity] = append(t.activeByEnt[key.Entity], slot)
		t.transitions++
		t.sinceCompact++
	}

	t.maybeCompact()
	return nil
}

// MarkDirty invalidates one entity's index slices; the next access to that
// entity re-derives them from rows.
func (t *Table) MarkDirty(entity string) {
	t.dirty[model.Normalize(entity)] = struct{}{}
}

func (t *Table) maybeCompact() {
	if t.compactEvery <= 0 || t.sinceCompact < t.compactEvery {
		return
	}
	t.Compact()
}

// Compact rebuilds the active arena without tombstones and rewrites every
// slot reference. Maintenance only: readers are correct without it, it just
// bounds the memory the tombstones pin.
func (t *Table) Compact() int {
	reclaimed := t.active.Tombstones()
	remap := t.active.Compact()

	for e, slots := range t.activeByEnt {
		kept := slots[:0]
		for _, s := range slots {
			if ns, ok := remap[s]; ok {
				kept = append(kept, ns)
			}
		}
		if len(kept) == 0 {
			delete(t.activeByEnt, e)
		} else {
			t.activeByEnt[e] = kept
		}
	}
	for pos, s := range t.slotOf {
		t.slotOf[pos] = remap[s]
	}

	t.sinceCompact = 0
	if reclaimed > 0 {
		t.logger.Debug("compacted active arena", "reclaimed", reclaimed, "live", t.active.Live())
	}
	return reclaimed
}

// Stats returns the diagnostic partition counters.
func (t *Table) Stats() Stats {
	active := t.active.Live()
	var reduction float64
	if len(t.rows) > 0 {
		reduction = 1 - float64(active)/float64(len(t.rows))
	}
	return Stats{
		ActiveCount:     active,
		InactiveCount:   len(t.rows) - active,
		Transitions:     t.transitions,
		Tombstones:      t.active.Tombstones(),
		SkippedRows:     t.skipped,
		MemoryReduction: reduction,
	}
}
