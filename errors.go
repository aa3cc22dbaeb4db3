package ledgercache

import (
	"errors"
	"fmt"

	"github.com/finkit/ledgercache/internal/table"
)

var (
	// ErrLoadFailure wraps a store read error that aborted a snapshot load.
	// No partial snapshot is ever installed behind it.
	ErrLoadFailure = errors.New("load failed")

	// ErrNoToken is returned by mutating calls given a zero guard.Token.
	// Tokens prove the caller is inside the external critical section; see
	// the guard package.
	ErrNoToken = errors.New("mutation requires a critical-section token")

	// ErrNotFound is returned when a key addresses no cached document.
	ErrNotFound = errors.New("document not found")

	// ErrDuplicateKey is returned by caller-side pre-checks (ContainsKey)
	// when a composite key is already present. The cache's own append never
	// returns it: appends are unconditional and a violated pre-check means
	// last write wins on the index.
	ErrDuplicateKey = errors.New("duplicate composite key")
)

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, table.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func loadError(err error) error {
	return fmt.Errorf("%w: %w", ErrLoadFailure, err)
}
