package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/gudang/internal/products"
	"github.com/odyssey-erp/gudang/internal/rowstore"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// LedgerPort abstracts ledger persistence for the service.
type LedgerPort interface {
	Append(ctx context.Context, tx Transaction) error
	List(ctx context.Context) ([]Transaction, error)
}

// MetricsPort receives posting outcomes.
type MetricsPort interface {
	ObservePosting(txType, outcome string)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Logger   *slog.Logger
	Metrics  MetricsPort
	Notifier shared.StockChangeNotifier
	Clock    func() time.Time
}

// Service posts stock movements. The balance write and the ledger append are
// two separate store calls; there is no atomicity across them.
type Service struct {
	balances    products.BalanceStore
	ledger      LedgerPort
	locker      shared.Locker
	idempotency *shared.IdempotencyStore
	audit       shared.AuditRecorder
	logger      *slog.Logger
	metrics     MetricsPort
	notifier    shared.StockChangeNotifier
	clock       func() time.Time
}

// NewService builds Service. locker may be nil only in single-goroutine tests.
func NewService(balances products.BalanceStore, ledger LedgerPort, locker shared.Locker, idem *shared.IdempotencyStore, audit shared.AuditRecorder, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		balances:    balances,
		ledger:      ledger,
		locker:      locker,
		idempotency: idem,
		audit:       audit,
		logger:      logger,
		metrics:     cfg.Metrics,
		notifier:    cfg.Notifier,
		clock:       clock,
	}
}

// Post validates and applies one IN or OUT movement.
//
// On success the new balance is written first and the ledger row second. When
// the append definitely did not land the previous balance is restored. When
// its outcome is unknown, or the restore fails, the orphan balance write is
// logged at ERROR and the error also wraps ErrAppendUnconfirmed; its
// idempotency key is kept so a replay cannot post twice. Either way the
// returned error wraps ErrLedgerAppend.
func (s *Service) Post(ctx context.Context, input PostInput) (PostResult, error) {
	result, err := s.post(ctx, input)
	s.observe(input.Type, err)
	return result, err
}

func (s *Service) post(ctx context.Context, input PostInput) (PostResult, error) {
	code := products.NormalizeCode(input.ProductCode)
	if code == "" {
		return PostResult{}, products.ErrCodeRequired
	}
	if !input.Type.Valid() {
		return PostResult{}, ErrInvalidType
	}
	if input.Quantity <= 0 {
		return PostResult{}, ErrInvalidQuantity
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		return PostResult{}, ErrActorRequired
	}
	department := strings.TrimSpace(input.DepartmentID)

	insertedKey := false
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, "ledger", input.IdempotencyKey); err != nil {
			return PostResult{}, err
		}
		insertedKey = true
	}
	result, err := s.postLocked(ctx, code, department, actor, input)
	// an unconfirmed append may already be in the ledger; the key stays taken
	if err != nil && insertedKey && !errors.Is(err, ErrAppendUnconfirmed) {
		if delErr := s.idempotency.Delete(context.WithoutCancel(ctx), "ledger", input.IdempotencyKey); delErr != nil {
			s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", delErr))
		}
	}
	return result, err
}

func (s *Service) postLocked(ctx context.Context, code, department, actor string, input PostInput) (PostResult, error) {
	if s.locker != nil {
		release, err := s.locker.Lock(ctx, shared.ProductLockKey(code))
		if err != nil {
			return PostResult{}, err
		}
		defer release()
	}

	product, err := s.balances.GetByCode(ctx, code)
	if err != nil {
		return PostResult{}, err
	}
	current := product.Stock
	var next int
	switch input.Type {
	case TypeIn:
		if department != "" && department != product.DepartmentID {
			return PostResult{}, fmt.Errorf("%w: %s belongs to %s, not %s", ErrWrongDepartment, code, product.DepartmentID, department)
		}
		next = current + input.Quantity
	case TypeOut:
		if current < input.Quantity {
			return PostResult{}, fmt.Errorf("%w: available %d, requested %d, short by %d", ErrInsufficientStock, current, input.Quantity, input.Quantity-current)
		}
		next = current - input.Quantity
	}

	now := s.clock()
	if err := s.balances.SetStock(ctx, code, next, now); err != nil {
		return PostResult{}, err
	}
	// the balance has moved; cancellation must not split the remaining steps
	ctx = context.WithoutCancel(ctx)
	tx := Transaction{
		ID:           uuid.NewString(),
		Timestamp:    now,
		Type:         input.Type,
		ProductCode:  code,
		Quantity:     input.Quantity,
		Actor:        actor,
		DepartmentID: department,
	}
	if input.Type == TypeIn && tx.DepartmentID == "" {
		tx.DepartmentID = product.DepartmentID
	}
	if err := s.ledger.Append(ctx, tx); err != nil {
		if !s.compensate(ctx, code, current, next, err) {
			return PostResult{}, fmt.Errorf("%w: %w: %w", ErrLedgerAppend, ErrAppendUnconfirmed, err)
		}
		return PostResult{}, fmt.Errorf("%w: %w", ErrLedgerAppend, err)
	}

	s.logger.Info("movement posted",
		slog.String("product_code", code),
		slog.String("type", string(input.Type)),
		slog.Int("quantity", input.Quantity),
		slog.Int("balance", next),
		slog.String("actor", actor),
	)
	if s.notifier != nil {
		s.notifier.StockChanged(ctx, code)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   fmt.Sprintf("ledger:%s", input.Type),
			Entity:   Table,
			EntityID: tx.ID,
			Meta: map[string]any{
				"product_code": code,
				"quantity":     input.Quantity,
				"before":       current,
				"after":        next,
			},
			At: now,
		}); err != nil {
			s.logger.Warn("audit ledger post", slog.String("tx_id", tx.ID), slog.Any("error", err))
		}
	}
	return PostResult{Transaction: tx, NewBalance: next}, nil
}

// compensate restores the previous balance when the failed append definitely
// did not land, and reports whether the balance is back at before.
func (s *Service) compensate(ctx context.Context, code string, before, after int, cause error) bool {
	if appendMayHaveLanded(cause) {
		// the row may have landed; restoring would diverge the other way
		s.logger.Error("orphan balance write: ledger append outcome unknown",
			slog.String("product_code", code),
			slog.Int("before", before),
			slog.Int("after", after),
			slog.Any("error", cause),
		)
		return false
	}
	if err := s.balances.SetStock(ctx, code, before, s.clock()); err != nil {
		s.logger.Error("orphan balance write: ledger append and restore failed",
			slog.String("product_code", code),
			slog.Int("before", before),
			slog.Int("after", after),
			slog.Any("append_error", cause),
			slog.Any("restore_error", err),
		)
		return false
	}
	s.logger.Warn("ledger append failed, balance restored",
		slog.String("product_code", code),
		slog.Int("balance", before),
		slog.Any("error", cause),
	)
	return true
}

func appendMayHaveLanded(cause error) bool {
	if errors.Is(cause, rowstore.ErrNotSent) {
		return false
	}
	return errors.Is(cause, shared.ErrStoreUnavailable) ||
		errors.Is(cause, context.Canceled) ||
		errors.Is(cause, context.DeadlineExceeded)
}

func (s *Service) observe(txType TransactionType, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObservePosting(string(txType), outcome(err))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	case errors.Is(err, shared.ErrBusinessRule):
		return "rejected"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrLedgerAppend):
		return "partial"
	default:
		return "error"
	}
}

// List returns ledger entries newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	all, err := s.ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	code := products.NormalizeCode(filter.ProductCode)
	out := make([]Transaction, 0, len(all))
	for _, tx := range all {
		if code != "" && tx.ProductCode != code {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq > out[j].Seq
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
