package rowstore

import (
	"context"
	"errors"
)

var (
	// ErrPositionOutOfRange is returned by WriteCell for a position the store
	// does not hold.
	ErrPositionOutOfRange = errors.New("rowstore: position out of range")
	// ErrColumnOutOfRange is returned by WriteCell for a column beyond the
	// addressed row's width.
	ErrColumnOutOfRange = errors.New("rowstore: column out of range")
)

// Row is one record of the backing ledger sheet as an ordered cell tuple.
type Row []string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Store is an abstraction over the row-oriented system of record.
// It is append/cell-write friendly but expensive to scan by value, which is
// the whole reason ledgercache exists.
//
// Implementations must be safe for concurrent use; the cache's consistency
// contract on top of the store is documented on the ledgercache package.
type Store interface {
	// ReadAll returns every row in sheet order.
	ReadAll(ctx context.Context) ([]Row, error)

	// AppendRow appends one row and returns its store position.
	AppendRow(ctx context.Context, row Row) (int, error)

	// WriteCell overwrites a single cell of an existing row.
	WriteCell(ctx context.Context, pos, col int, value string) error
}
