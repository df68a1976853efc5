package shared

import (
	"context"
	"time"
)

// AuditLog represents one entry in the audit trail.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditRecorder persists audit entries. Failures are reported but never undo
// the audited mutation.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// StockChangeNotifier is told after a product's authoritative balance or its
// ledger changed, e.g. to invalidate cached reports.
type StockChangeNotifier interface {
	StockChanged(ctx context.Context, productCode string)
}
