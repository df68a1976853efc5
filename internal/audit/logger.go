package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/odyssey-erp/gudang/internal/rowstore"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// Table adalah tabel RowStore untuk jejak audit.
const Table = "audit_log"

// Logger menulis jejak audit ke RowStore. Baris hanya ditambahkan.
type Logger struct {
	store rowstore.Store
	clock func() time.Time
}

// NewLogger membuat Logger baru.
func NewLogger(store rowstore.Store) *Logger {
	return &Logger{store: store, clock: func() time.Time { return time.Now().UTC() }}
}

// Record persists the log entry.
func (l *Logger) Record(ctx context.Context, log shared.AuditLog) error {
	if l == nil || l.store == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	meta := "{}"
	if len(log.Meta) > 0 {
		raw, err := json.Marshal(log.Meta)
		if err != nil {
			return err
		}
		meta = string(raw)
	}
	at := log.At
	if at.IsZero() {
		at = l.clock()
	}
	return l.store.Append(ctx, Table, []rowstore.Row{{
		"at":        rowstore.FormatTime(at),
		"actor":     log.Actor,
		"action":    log.Action,
		"entity":    log.Entity,
		"entity_id": log.EntityID,
		"meta":      meta,
	}})
}

// Entries mengembalikan seluruh jejak audit, terbaru lebih dulu.
func (l *Logger) Entries(ctx context.Context) ([]TimelineRow, error) {
	rows, err := l.store.List(ctx, Table)
	if err != nil {
		return nil, err
	}
	out := make([]TimelineRow, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		entry := TimelineRow{
			At:       row.Time("at"),
			Actor:    row["actor"],
			Action:   row["action"],
			Entity:   row["entity"],
			EntityID: row["entity_id"],
		}
		if raw := row["meta"]; raw != "" && raw != "{}" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				entry.Meta = meta
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
