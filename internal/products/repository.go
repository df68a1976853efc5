package products

import (
	"context"
	"fmt"
	"time"

	"github.com/odyssey-erp/gudang/internal/rowstore"
)

// BalanceStore is the narrow balance-mutation primitive shared by ledger
// posting and opname approval. Swapping in optimistic versioning or a queue
// only requires a new implementation of this interface.
type BalanceStore interface {
	GetByCode(ctx context.Context, code string) (Product, error)
	SetStock(ctx context.Context, code string, stock int, at time.Time) error
}

// Repository persists products in the RowStore.
type Repository struct {
	store rowstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store rowstore.Store) *Repository {
	return &Repository{store: store}
}

// List returns all products in table order.
func (r *Repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.store.List(ctx, Table)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, decode(row))
	}
	return out, nil
}

// GetByCode finds a product by its scannable code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Product, error) {
	return r.find(ctx, func(p Product) bool { return p.Code == code })
}

// GetByID finds a product by its stable id.
func (r *Repository) GetByID(ctx context.Context, id string) (Product, error) {
	return r.find(ctx, func(p Product) bool { return p.ID == id })
}

// Insert appends a new product row.
func (r *Repository) Insert(ctx context.Context, p Product) error {
	return r.store.Append(ctx, Table, []rowstore.Row{encode(p)})
}

// SetStock overwrites the authoritative balance and refreshes updated_at.
func (r *Repository) SetStock(ctx context.Context, code string, stock int, at time.Time) error {
	n, err := r.store.Update(ctx, Table, rowstore.Match{"code": code}, rowstore.Row{
		"stock":      rowstore.FormatInt(stock),
		"updated_at": rowstore.FormatTime(at),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, code)
	}
	return nil
}

// UpdateDetails rewrites descriptive columns only.
func (r *Repository) UpdateDetails(ctx context.Context, id string, in DetailsInput, at time.Time) error {
	n, err := r.store.Update(ctx, Table, rowstore.Match{"id": id}, rowstore.Row{
		"name":          in.Name,
		"department_id": in.DepartmentID,
		"unit":          in.Unit,
		"updated_at":    rowstore.FormatTime(at),
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Delete removes the product row by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	n, err := r.store.Delete(ctx, Table, rowstore.Match{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) find(ctx context.Context, pred func(Product) bool) (Product, error) {
	all, err := r.List(ctx)
	if err != nil {
		return Product{}, err
	}
	for _, p := range all {
		if pred(p) {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func decode(row rowstore.Row) Product {
	return Product{
		ID:           row["id"],
		Code:         row["code"],
		Name:         row["name"],
		DepartmentID: row["department_id"],
		Unit:         row["unit"],
		Stock:        row.Int("stock"),
		UpdatedAt:    row.Time("updated_at"),
	}
}

func encode(p Product) rowstore.Row {
	return rowstore.Row{
		"id":            p.ID,
		"code":          p.Code,
		"name":          p.Name,
		"department_id": p.DepartmentID,
		"unit":          p.Unit,
		"stock":         rowstore.FormatInt(p.Stock),
		"updated_at":    rowstore.FormatTime(p.UpdatedAt),
	}
}
