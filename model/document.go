package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon is the minimum balance magnitude treated as "outstanding" for
// settlement purposes. Balances at or below it count as settled, which
// absorbs rounding noise from upstream spreadsheet formulas.
var Epsilon = decimal.New(1, -2) // 0.01

// DocumentStatus mirrors the status column of the ledger sheet.
type DocumentStatus string

const (
	StatusOpen    DocumentStatus = "OPEN"
	StatusPartial DocumentStatus = "PARTIAL"
	StatusSettled DocumentStatus = "SETTLED"
)

// Partition identifies which side of the active/inactive split a document
// currently sits on.
type Partition uint8

const (
	PartitionActive Partition = iota
	PartitionInactive
)

// String returns a string representation of the Partition.
func (p Partition) String() string {
	if p == PartitionActive {
		return "active"
	}
	return "inactive"
}

// Position is the zero-based index of a record in the cache's row table.
// It is cache-local: skipped malformed rows make it diverge from the
// store's own row numbering.
type Position = int

// Key is the normalized composite identity of a document.
// Construct it with NewKey; a Key built from raw strings may not be
// normalized and will miss index lookups.
type Key struct {
	Entity string
	DocNo  string
}

// NewKey builds a normalized Key from raw entity and document number cells.
func NewKey(entity, docNo string) Key {
	return Key{Entity: Normalize(entity), DocNo: Normalize(docNo)}
}

// IsZero reports whether either component of the key is blank after
// normalization. Zero keys never match anything and short-circuit lookups.
func (k Key) IsZero() bool {
	return k.Entity == "" || k.DocNo == ""
}

// String returns a string representation of the Key.
func (k Key) String() string {
	return k.Entity + "/" + k.DocNo
}

// Normalize trims surrounding whitespace and case-folds a key component.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Document is one ledger document (invoice) as read from the store.
// Money fields are exact decimals; BalanceDue is derived in the store and
// treated as an observation here, never recomputed by the cache.
type Document struct {
	Date         time.Time
	Entity       string
	DocNo        string
	TotalAmount  decimal.Decimal
	TotalSettled decimal.Decimal
	BalanceDue   decimal.Decimal
	Status       DocumentStatus
	SettledDate  time.Time // zero while unsettled
	Origin       string
	Creator      string
	CreatedAt    time.Time
	SystemID     string
}

// Key returns the document's normalized composite identity.
func (d Document) Key() Key {
	return NewKey(d.Entity, d.DocNo)
}

// Active reports whether the document's balance puts it in the active
// partition.
func (d Document) Active() bool {
	return IsActive(d.BalanceDue)
}

// IsActive reports whether a balance exceeds the settlement epsilon.
func IsActive(balance decimal.Decimal) bool {
	return balance.GreaterThan(Epsilon)
}

// Summary is the per-document projection returned by listing and
// aggregation calls.
type Summary struct {
	Entity     string
	DocNo      string
	BalanceDue decimal.Decimal
	Status     DocumentStatus
	Partition  Partition
	Position   Position
}

// Summarize projects a document at the given position into a Summary.
func Summarize(d Document, pos Position) Summary {
	part := PartitionInactive
	if d.Active() {
		part = PartitionActive
	}
	return Summary{
		Entity:     d.Entity,
		DocNo:      d.DocNo,
		BalanceDue: d.BalanceDue,
		Status:     d.Status,
		Partition:  part,
		Position:   pos,
	}
}
