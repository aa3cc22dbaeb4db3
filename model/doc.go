// Package model defines the core record types used throughout ledgercache.
//
// # Identity Types
//
//   - Key: Normalized composite identity (entity, document number)
//   - Position: Zero-based index of a record in the cache's row table
//
// # Record Types
//
//   - Document: One ledger document (invoice) with settlement state
//   - Transaction: One settlement event (payment, adjustment) against a document
//   - Summary: A per-document projection returned by listing and aggregation calls
//
// # Column Mapping
//
// The backing store hands rows over as untyped cell tuples. DocumentColumns and
// TransactionColumns map cell offsets to record fields; they are built once at
// startup and validated before any row is parsed:
//
//	cols := model.DefaultDocumentColumns()
//	if err := cols.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	doc, err := cols.Parse(cells)
package model
