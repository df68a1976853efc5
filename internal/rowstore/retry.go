package rowstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// DefaultTimeout bounds a single store call when none is configured.
const DefaultTimeout = 10 * time.Second

// Retrying wraps a Store with a per-call timeout and at most one retry on
// transient failure. Reads retry on any ErrStoreUnavailable; mutations only
// retry when the failure is also ErrNotSent, since a write that reached the
// store cannot be retracted and replaying it could double-apply.
type Retrying struct {
	next    Store
	timeout time.Duration
	logger  *slog.Logger
}

// WithRetry decorates next.
func WithRetry(next Store, timeout time.Duration, logger *slog.Logger) *Retrying {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, timeout: timeout, logger: logger}
}

func (s *Retrying) List(ctx context.Context, table string) ([]Row, error) {
	var rows []Row
	err := s.do(ctx, "list", table, false, func(ctx context.Context) error {
		var err error
		rows, err = s.next.List(ctx, table)
		return err
	})
	return rows, err
}

func (s *Retrying) Append(ctx context.Context, table string, rows []Row) error {
	return s.do(ctx, "append", table, true, func(ctx context.Context) error {
		return s.next.Append(ctx, table, rows)
	})
}

func (s *Retrying) Update(ctx context.Context, table string, match Match, fields Row) (int, error) {
	var n int
	err := s.do(ctx, "update", table, true, func(ctx context.Context) error {
		var err error
		n, err = s.next.Update(ctx, table, match, fields)
		return err
	})
	return n, err
}

func (s *Retrying) Delete(ctx context.Context, table string, match Match) (int, error) {
	var n int
	err := s.do(ctx, "delete", table, true, func(ctx context.Context) error {
		var err error
		n, err = s.next.Delete(ctx, table, match)
		return err
	})
	return n, err
}

func (s *Retrying) do(ctx context.Context, op, table string, mutation bool, fn func(context.Context) error) error {
	err := s.attempt(ctx, fn)
	if err == nil || !errors.Is(err, shared.ErrStoreUnavailable) || ctx.Err() != nil {
		return err
	}
	if mutation && !errors.Is(err, ErrNotSent) {
		return err
	}
	s.logger.Warn("rowstore retry",
		slog.String("op", op),
		slog.String("table", table),
		slog.Any("error", err))
	return s.attempt(ctx, fn)
}

func (s *Retrying) attempt(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := fn(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, shared.ErrStoreUnavailable) {
		// the per-call deadline fired, not the caller's
		return errors.Join(shared.ErrStoreUnavailable, err)
	}
	return err
}
