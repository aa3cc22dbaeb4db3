package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType mirrors the type column of the transaction sheet.
type TransactionType string

const (
	TxPayment    TransactionType = "PAYMENT"
	TxAdjustment TransactionType = "ADJUSTMENT"
	TxRefund     TransactionType = "REFUND"
)

// Transaction is one settlement event recorded against a document.
type Transaction struct {
	Date          time.Time
	Entity        string
	DocNo         string
	Type          TransactionType
	Amount        decimal.Decimal
	Method        string
	Reference     string
	Origin        string
	Creator       string
	CreatedAt     time.Time
	TransactionID string
	LinkedDocID   string
}

// Key returns the transaction's normalized composite identity, shared with
// the document it settles.
func (t Transaction) Key() Key {
	return NewKey(t.Entity, t.DocNo)
}

// NewTransactionID mints a globally unique transaction id. One logical edit
// event must carry exactly one id; the duplicate index keys on it.
func NewTransactionID() string {
	return "TX-" + uuid.NewString()
}

// NormalizeTransactionID trims a transaction id as read from a sheet cell.
// Ids are case-sensitive; only surrounding whitespace is stripped.
func NormalizeTransactionID(id string) string {
	return strings.TrimSpace(id)
}
