package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrShortRow is returned when a row has fewer cells than the column map addresses.
	ErrShortRow = errors.New("model: row shorter than column map")
	// ErrBlankKey is returned when the entity or document-number cell is blank.
	ErrBlankKey = errors.New("model: blank entity or document number")
)

// CellError reports a cell that could not be parsed into its record field.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type CellError struct {
	Column string
	cause  error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("model: bad cell in column %q: %v", e.Column, e.cause)
}

func (e *CellError) Unwrap() error { return e.cause }

// DocumentColumns maps sheet cell offsets to Document fields.
// Build one per sheet layout and Validate it before parsing any rows.
type DocumentColumns struct {
	Date         int
	Entity       int
	DocNo        int
	TotalAmount  int
	TotalSettled int
	BalanceDue   int
	Status       int
	SettledDate  int
	Origin       int
	Creator      int
	CreatedAt    int
	SystemID     int
}

// DefaultDocumentColumns returns the canonical sheet layout: record fields
// in declaration order starting at column 0.
func DefaultDocumentColumns() DocumentColumns {
	return DocumentColumns{
		Date:         0,
		Entity:       1,
		DocNo:        2,
		TotalAmount:  3,
		TotalSettled: 4,
		BalanceDue:   5,
		Status:       6,
		SettledDate:  7,
		Origin:       8,
		Creator:      9,
		CreatedAt:    10,
		SystemID:     11,
	}
}

func (c DocumentColumns) indices() []int {
	return []int{
		c.Date, c.Entity, c.DocNo, c.TotalAmount, c.TotalSettled, c.BalanceDue,
		c.Status, c.SettledDate, c.Origin, c.Creator, c.CreatedAt, c.SystemID,
	}
}

// Validate checks that every mapped column is non-negative and that no two
// fields share a column.
func (c DocumentColumns) Validate() error {
	return validateIndices(c.indices())
}

// Width returns the minimum cell count a row must have to be parseable.
func (c DocumentColumns) Width() int {
	return width(c.indices())
}

// Parse converts one row of cells into a Document.
// A blank or missing key cell makes the whole row malformed; money and date
// cells that cannot be parsed do too, since a typed record cannot carry an
// "unknown" amount.
func (c DocumentColumns) Parse(cells []string) (Document, error) {
	if len(cells) < c.Width() {
		return Document{}, fmt.Errorf("%w: got %d cells, need %d", ErrShortRow, len(cells), c.Width())
	}
	if Normalize(cells[c.Entity]) == "" || Normalize(cells[c.DocNo]) == "" {
		return Document{}, ErrBlankKey
	}

	var d Document
	var err error

	if d.Date, err = parseDate(cells[c.Date]); err != nil {
		return Document{}, &CellError{Column: "date", cause: err}
	}
	d.Entity = cells[c.Entity]
	d.DocNo = cells[c.DocNo]
	if d.TotalAmount, err = parseMoney(cells[c.TotalAmount]); err != nil {
		return Document{}, &CellError{Column: "total_amount", cause: err}
	}
	if d.TotalSettled, err = parseMoney(cells[c.TotalSettled]); err != nil {
		return Document{}, &CellError{Column: "total_settled", cause: err}
	}
	if d.BalanceDue, err = parseMoney(cells[c.BalanceDue]); err != nil {
		return Document{}, &CellError{Column: "balance_due", cause: err}
	}
	d.Status = DocumentStatus(cells[c.Status])
	if d.SettledDate, err = parseDate(cells[c.SettledDate]); err != nil {
		return Document{}, &CellError{Column: "settled_date", cause: err}
	}
	d.Origin = cells[c.Origin]
	d.Creator = cells[c.Creator]
	if d.CreatedAt, err = parseTimestamp(cells[c.CreatedAt]); err != nil {
		return Document{}, &CellError{Column: "created_at", cause: err}
	}
	d.SystemID = cells[c.SystemID]

	return d, nil
}

// Render converts a Document back into a row of cells laid out per the map.
func (c DocumentColumns) Render(d Document) []string {
	cells := make([]string, c.Width())
	cells[c.Date] = renderDate(d.Date)
	cells[c.Entity] = d.Entity
	cells[c.DocNo] = d.DocNo
	cells[c.TotalAmount] = d.TotalAmount.String()
	cells[c.TotalSettled] = d.TotalSettled.String()
	cells[c.BalanceDue] = d.BalanceDue.String()
	cells[c.Status] = string(d.Status)
	cells[c.SettledDate] = renderDate(d.SettledDate)
	cells[c.Origin] = d.Origin
	cells[c.Creator] = d.Creator
	cells[c.CreatedAt] = renderTimestamp(d.CreatedAt)
	cells[c.SystemID] = d.SystemID
	return cells
}

// TransactionColumns maps sheet cell offsets to Transaction fields.
type TransactionColumns struct {
	Date          int
	Entity        int
	DocNo         int
	Type          int
	Amount        int
	Method        int
	Reference     int
	Origin        int
	Creator       int
	CreatedAt     int
	TransactionID int
	LinkedDocID   int
}

// DefaultTransactionColumns returns the canonical transaction-sheet layout.
func DefaultTransactionColumns() TransactionColumns {
	return TransactionColumns{
		Date:          0,
		Entity:        1,
		DocNo:         2,
		Type:          3,
		Amount:        4,
		Method:        5,
		Reference:     6,
		Origin:        7,
		Creator:       8,
		CreatedAt:     9,
		TransactionID: 10,
		LinkedDocID:   11,
	}
}

func (c TransactionColumns) indices() []int {
	return []int{
		c.Date, c.Entity, c.DocNo, c.Type, c.Amount, c.Method,
		c.Reference, c.Origin, c.Creator, c.CreatedAt, c.TransactionID, c.LinkedDocID,
	}
}

// Validate checks that every mapped column is non-negative and that no two
// fields share a column.
func (c TransactionColumns) Validate() error {
	return validateIndices(c.indices())
}

// Width returns the minimum cell count a row must have to be parseable.
func (c TransactionColumns) Width() int {
	return width(c.indices())
}

// Parse converts one row of cells into a Transaction. A blank transaction id
// makes the row malformed: the duplicate index cannot key on it.
func (c TransactionColumns) Parse(cells []string) (Transaction, error) {
	if len(cells) < c.Width() {
		return Transaction{}, fmt.Errorf("%w: got %d cells, need %d", ErrShortRow, len(cells), c.Width())
	}
	if NormalizeTransactionID(cells[c.TransactionID]) == "" {
		return Transaction{}, &CellError{Column: "transaction_id", cause: errors.New("blank id")}
	}

	var t Transaction
	var err error

	if t.Date, err = parseDate(cells[c.Date]); err != nil {
		return Transaction{}, &CellError{Column: "date", cause: err}
	}
	t.Entity = cells[c.Entity]
	t.DocNo = cells[c.DocNo]
	t.Type = TransactionType(cells[c.Type])
	if t.Amount, err = parseMoney(cells[c.Amount]); err != nil {
		return Transaction{}, &CellError{Column: "amount", cause: err}
	}
	t.Method = cells[c.Method]
	t.Reference = cells[c.Reference]
	t.Origin = cells[c.Origin]
	t.Creator = cells[c.Creator]
	if t.CreatedAt, err = parseTimestamp(cells[c.CreatedAt]); err != nil {
		return Transaction{}, &CellError{Column: "created_at", cause: err}
	}
	t.TransactionID = NormalizeTransactionID(cells[c.TransactionID])
	t.LinkedDocID = cells[c.LinkedDocID]

	return t, nil
}

// Render converts a Transaction back into a row of cells laid out per the map.
func (c TransactionColumns) Render(t Transaction) []string {
	cells := make([]string, c.Width())
	cells[c.Date] = renderDate(t.Date)
	cells[c.Entity] = t.Entity
	cells[c.DocNo] = t.DocNo
	cells[c.Type] = string(t.Type)
	cells[c.Amount] = t.Amount.String()
	cells[c.Method] = t.Method
	cells[c.Reference] = t.Reference
	cells[c.Origin] = t.Origin
	cells[c.Creator] = t.Creator
	cells[c.CreatedAt] = renderTimestamp(t.CreatedAt)
	cells[c.TransactionID] = t.TransactionID
	cells[c.LinkedDocID] = t.LinkedDocID
	return cells
}

func validateIndices(indices []int) error {
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			return fmt.Errorf("model: negative column index %d", idx)
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("model: column index %d mapped twice", idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

func width(indices []int) int {
	max := 0
	for _, idx := range indices {
		if idx > max {
			max = idx
		}
	}
	return max + 1
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func renderDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func renderTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, nil
	}
	return decimal.NewFromString(s)
}
