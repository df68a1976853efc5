package ledger

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/gudang/internal/rowstore"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// Repository persists ledger entries in the RowStore. Entries are only ever
// appended.
type Repository struct {
	store rowstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store rowstore.Store) *Repository {
	return &Repository{store: store}
}

// Append writes one ledger row.
func (r *Repository) Append(ctx context.Context, tx Transaction) error {
	if tx.ID == "" || tx.ProductCode == "" {
		return fmt.Errorf("%w: ledger row requires id and product code", shared.ErrValidation)
	}
	return r.store.Append(ctx, Table, []rowstore.Row{encode(tx)})
}

// List returns the whole ledger in append order with Seq populated.
func (r *Repository) List(ctx context.Context) ([]Transaction, error) {
	rows, err := r.store.List(ctx, Table)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(rows))
	for i, row := range rows {
		tx := decode(row)
		tx.Seq = i
		out = append(out, tx)
	}
	return out, nil
}

// HasHistory reports whether any ledger row references code.
func (r *Repository) HasHistory(ctx context.Context, code string) (bool, error) {
	rows, err := r.store.List(ctx, Table)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row["product_code"] == code {
			return true, nil
		}
	}
	return false, nil
}

func decode(row rowstore.Row) Transaction {
	return Transaction{
		ID:           row["id"],
		Timestamp:    row.Time("timestamp"),
		Type:         TransactionType(row["type"]),
		ProductCode:  row["product_code"],
		Quantity:     row.Int("quantity"),
		Actor:        row["actor"],
		DepartmentID: row["department_id"],
	}
}

func encode(tx Transaction) rowstore.Row {
	return rowstore.Row{
		"id":            tx.ID,
		"timestamp":     rowstore.FormatTime(tx.Timestamp),
		"type":          string(tx.Type),
		"product_code":  tx.ProductCode,
		"quantity":      rowstore.FormatInt(tx.Quantity),
		"actor":         tx.Actor,
		"department_id": tx.DepartmentID,
	}
}
