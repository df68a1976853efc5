package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/gudang/internal/shared"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS rowstore_rows (
	position   BIGSERIAL PRIMARY KEY,
	table_name TEXT NOT NULL,
	data       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS rowstore_rows_table_idx ON rowstore_rows (table_name, position);
CREATE INDEX IF NOT EXISTS rowstore_rows_data_idx ON rowstore_rows USING GIN (data jsonb_path_ops);`

// Postgres stores every table as JSONB rows in a single relation. Row order is
// the insertion order given by the position column.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs the PostgreSQL backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the backing relation when missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return classify("ensure schema", err)
}

func (p *Postgres) List(ctx context.Context, table string) ([]Row, error) {
	rows, err := p.pool.Query(ctx, `SELECT data FROM rowstore_rows WHERE table_name = $1 ORDER BY position ASC`, table)
	if err != nil {
		return nil, classify("list", err)
	}
	defer rows.Close()
	var out []Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, classify("list scan", err)
		}
		row := Row{}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("rowstore: decode row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list", err)
	}
	return out, nil
}

func (p *Postgres) Append(ctx context.Context, table string, rows []Row) error {
	if table == "" {
		return fmt.Errorf("%w: rowstore table required", shared.ErrValidation)
	}
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("rowstore: encode row: %w", err)
		}
		batch.Queue(`INSERT INTO rowstore_rows (table_name, data) VALUES ($1, $2::jsonb)`, table, payload)
	}
	// Implicit transaction: a batch is either fully visible or not at all.
	results := p.pool.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return classify("append", err)
		}
	}
	return classify("append", results.Close())
}

func (p *Postgres) Update(ctx context.Context, table string, match Match, fields Row) (int, error) {
	if err := checkMatch(table, match); err != nil {
		return 0, err
	}
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return 0, fmt.Errorf("rowstore: encode match: %w", err)
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("rowstore: encode fields: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `UPDATE rowstore_rows SET data = data || $3::jsonb WHERE table_name = $1 AND data @> $2::jsonb`, table, matchJSON, fieldsJSON)
	if err != nil {
		return 0, classify("update", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) Delete(ctx context.Context, table string, match Match) (int, error) {
	if err := checkMatch(table, match); err != nil {
		return 0, err
	}
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return 0, fmt.Errorf("rowstore: encode match: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM rowstore_rows WHERE table_name = $1 AND data @> $2::jsonb`, table, matchJSON)
	if err != nil {
		return 0, classify("delete", err)
	}
	return int(tag.RowsAffected()), nil
}

// classify maps driver failures onto the shared taxonomy. Connection and
// capacity problems become ErrStoreUnavailable; failures pgconn knows happened
// before anything was sent are additionally marked ErrNotSent.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if transientCode(pgErr.Code) {
			return fmt.Errorf("rowstore: %s: %w: %w", op, shared.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("rowstore: %s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("rowstore: %s: %w", op, err)
	}
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("rowstore: %s: %w: %w: %w", op, shared.ErrStoreUnavailable, ErrNotSent, err)
	}
	return fmt.Errorf("rowstore: %s: %w: %w", op, shared.ErrStoreUnavailable, err)
}

func transientCode(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"): // connection exception
		return true
	case code == "53300", code == "57P01", code == "57P03", code == "40001":
		return true
	}
	return false
}
