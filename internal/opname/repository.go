package opname

import (
	"context"
	"time"

	"github.com/odyssey-erp/gudang/internal/rowstore"
)

// Repository persists opname lines in the RowStore.
type Repository struct {
	store rowstore.Store
}

// NewRepository constructs Repository.
func NewRepository(store rowstore.Store) *Repository {
	return &Repository{store: store}
}

// AppendBatch writes all lines of one submission in a single append.
func (r *Repository) AppendBatch(ctx context.Context, records []Record) error {
	rows := make([]rowstore.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, encode(rec))
	}
	return r.store.Append(ctx, Table, rows)
}

// List returns every line in append order.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.store.List(ctx, Table)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, decode(row))
	}
	return out, nil
}

// FindBatch returns the lines of one batch, optionally narrowed to a product.
func (r *Repository) FindBatch(ctx context.Context, opnameID, productCode string) ([]Record, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, rec := range all {
		if rec.OpnameID != opnameID {
			continue
		}
		if productCode != "" && rec.ProductCode != productCode {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkApproved flips pending lines of (opnameID, productCode) to APPROVED and
// reports how many changed.
func (r *Repository) MarkApproved(ctx context.Context, opnameID, productCode, actor string, at time.Time) (int, error) {
	return r.store.Update(ctx, Table, rowstore.Match{
		"opname_id":    opnameID,
		"product_code": productCode,
		"status":       string(StatusPending),
	}, rowstore.Row{
		"status":     string(StatusApproved),
		"decided_by": actor,
		"decided_at": rowstore.FormatTime(at),
	})
}

// DeletePending permanently removes pending lines of a batch. Approved lines
// never match.
func (r *Repository) DeletePending(ctx context.Context, opnameID, productCode string) (int, error) {
	match := rowstore.Match{
		"opname_id": opnameID,
		"status":    string(StatusPending),
	}
	if productCode != "" {
		match["product_code"] = productCode
	}
	return r.store.Delete(ctx, Table, match)
}

func decode(row rowstore.Row) Record {
	rec := Record{
		OpnameID:      row["opname_id"],
		Timestamp:     row.Time("timestamp"),
		Date:          row["date"],
		ProductCode:   row["product_code"],
		ProductName:   row["product_name"],
		SystemStock:   row.Int("system_stock"),
		PhysicalStock: row.Int("physical_stock"),
		Variance:      row.Int("variance"),
		Label:         Label(row["label"]),
		Status:        Status(row["status"]),
		Actor:         row["actor"],
		DecidedBy:     row["decided_by"],
		DecidedAt:     row.Time("decided_at"),
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.Date == "" && !rec.Timestamp.IsZero() {
		rec.Date = rec.Timestamp.Format(DateLayout)
	}
	return rec
}

func encode(rec Record) rowstore.Row {
	row := rowstore.Row{
		"opname_id":      rec.OpnameID,
		"timestamp":      rowstore.FormatTime(rec.Timestamp),
		"date":           rec.Date,
		"product_code":   rec.ProductCode,
		"product_name":   rec.ProductName,
		"system_stock":   rowstore.FormatInt(rec.SystemStock),
		"physical_stock": rowstore.FormatInt(rec.PhysicalStock),
		"variance":       rowstore.FormatInt(rec.Variance),
		"label":          string(rec.Label),
		"status":         string(rec.Status),
		"actor":          rec.Actor,
		"decided_by":     rec.DecidedBy,
		"decided_at":     "",
	}
	if !rec.DecidedAt.IsZero() {
		row["decided_at"] = rowstore.FormatTime(rec.DecidedAt)
	}
	return row
}
