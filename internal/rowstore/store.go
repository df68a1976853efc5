// Package rowstore is a row-oriented table abstraction with no multi-row
// transactions and no row locks. Rows are flat string cells keyed by column.
package rowstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// Row is a single table row keyed by column name.
type Row map[string]string

// Match selects rows whose columns equal every listed value.
type Match map[string]string

// Store is the contract consumed by the repositories. A nil error means the
// write is durably visible to subsequent reads.
type Store interface {
	List(ctx context.Context, table string) ([]Row, error)
	Append(ctx context.Context, table string, rows []Row) error
	Update(ctx context.Context, table string, match Match, fields Row) (int, error)
	Delete(ctx context.Context, table string, match Match) (int, error)
}

// ErrNotSent marks an unavailable-store failure that happened before the
// request reached the store, so repeating a mutation cannot double-apply it.
var ErrNotSent = errors.New("rowstore: request not sent")

// ErrEmptyMatch guards against unbounded update and delete calls.
var ErrEmptyMatch = fmt.Errorf("%w: rowstore match must not be empty", shared.ErrValidation)

// Matches reports whether row satisfies match.
func (m Match) Matches(row Row) bool {
	for k, v := range m {
		if row[k] != v {
			return false
		}
	}
	return true
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func checkMatch(table string, match Match) error {
	if table == "" {
		return fmt.Errorf("%w: rowstore table required", shared.ErrValidation)
	}
	if len(match) == 0 {
		return ErrEmptyMatch
	}
	return nil
}
