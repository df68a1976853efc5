package opname

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
	"github.com/odyssey-erp/gudang/internal/shared"
)

// RepositoryPort abstracts opname persistence for the service.
type RepositoryPort interface {
	AppendBatch(ctx context.Context, records []Record) error
	List(ctx context.Context) ([]Record, error)
	FindBatch(ctx context.Context, opnameID, productCode string) ([]Record, error)
	MarkApproved(ctx context.Context, opnameID, productCode, actor string, at time.Time) (int, error)
	DeletePending(ctx context.Context, opnameID, productCode string) (int, error)
}

// MetricsPort receives approval decisions.
type MetricsPort interface {
	ObserveOpnameDecision(decision, outcome string)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Logger   *slog.Logger
	Metrics  MetricsPort
	Notifier shared.StockChangeNotifier
	Clock    func() time.Time
	Location *time.Location
}

// Service runs the Submit -> Pending -> Approve | Reject workflow.
type Service struct {
	repo     RepositoryPort
	balances products.BalanceStore
	locker   shared.Locker
	audit    shared.AuditRecorder
	logger   *slog.Logger
	metrics  MetricsPort
	notifier shared.StockChangeNotifier
	clock    func() time.Time
	loc      *time.Location
	newID    func(n int) string
}

const maxIDAttempts = 5

// NewService builds Service.
func NewService(repo RepositoryPort, balances products.BalanceStore, locker shared.Locker, audit shared.AuditRecorder, cfg ServiceConfig) *Service {
	s := &Service{
		repo:     repo,
		balances: balances,
		locker:   locker,
		audit:    audit,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		loc:      cfg.Location,
		newID:    shortID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// Submit appends one batch of counted items as PENDING lines. Balances are
// never touched.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	if len(input.Items) == 0 {
		return SubmitResult{}, ErrNoItems
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		return SubmitResult{}, fmt.Errorf("%w: authenticated actor required", shared.ErrUnauthorized)
	}
	now := s.clock()
	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = now.In(s.loc).Format(DateLayout)
	}
	day, err := time.ParseInLocation(DateLayout, date, s.loc)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: date must be YYYY-MM-DD", shared.ErrValidation)
	}
	seen := make(map[string]struct{}, len(input.Items))
	records := make([]Record, 0, len(input.Items))
	for i, item := range input.Items {
		code := products.NormalizeCode(item.ProductCode)
		if code == "" {
			return SubmitResult{}, fmt.Errorf("%w: item %d: product code required", shared.ErrValidation, i)
		}
		if item.SystemStock < 0 || item.PhysicalStock < 0 {
			return SubmitResult{}, fmt.Errorf("%w: item %d: stock must not be negative", shared.ErrValidation, i)
		}
		if _, dup := seen[code]; dup {
			return SubmitResult{}, fmt.Errorf("%w: item %d: %s counted twice in one batch", shared.ErrValidation, i, code)
		}
		seen[code] = struct{}{}
		records = append(records, newRecord("", now, date, code, strings.TrimSpace(item.ProductName), item.SystemStock, item.PhysicalStock, actor))
	}
	opnameID, err := s.freshBatchID(ctx, "OPN-"+day.Format("20060102")+"-", 4)
	if err != nil {
		return SubmitResult{}, err
	}
	for i := range records {
		records[i].OpnameID = opnameID
	}
	if err := s.repo.AppendBatch(ctx, records); err != nil {
		return SubmitResult{}, err
	}
	s.logger.Info("opname submitted", slog.String("opname_id", opnameID), slog.Int("items", len(records)), slog.String("actor", actor))
	return SubmitResult{OpnameID: opnameID, Records: records}, nil
}

// SubmitSingle records a field count of one product, snapshotting the current
// balance as the system stock.
func (s *Service) SubmitSingle(ctx context.Context, input SubmitSingleInput) (SubmitResult, error) {
	code := products.NormalizeCode(input.ProductCode)
	if code == "" {
		return SubmitResult{}, products.ErrCodeRequired
	}
	if input.PhysicalStock < 0 {
		return SubmitResult{}, fmt.Errorf("%w: physical stock must not be negative", shared.ErrValidation)
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		return SubmitResult{}, fmt.Errorf("%w: authenticated actor required", shared.ErrUnauthorized)
	}
	product, err := s.balances.GetByCode(ctx, code)
	if err != nil {
		return SubmitResult{}, err
	}
	opnameID, err := s.freshBatchID(ctx, "OPN-", 8)
	if err != nil {
		return SubmitResult{}, err
	}
	now := s.clock()
	rec := newRecord(opnameID, now, now.In(s.loc).Format(DateLayout), code, product.Name, product.Stock, input.PhysicalStock, actor)
	if err := s.repo.AppendBatch(ctx, []Record{rec}); err != nil {
		return SubmitResult{}, err
	}
	s.logger.Info("field opname submitted", slog.String("opname_id", opnameID), slog.String("product_code", code), slog.Int("variance", rec.Variance))
	return SubmitResult{OpnameID: opnameID, Records: []Record{rec}}, nil
}

// Approve overwrites the product balance with NewStock and then flips the
// line to APPROVED. A failure between the two writes leaves the line PENDING;
// approving again rewrites the same balance, so retrying is safe.
func (s *Service) Approve(ctx context.Context, input ApproveInput) error {
	err := s.approve(ctx, input)
	s.observe("approve", err)
	return err
}

func (s *Service) approve(ctx context.Context, input ApproveInput) error {
	opnameID := strings.TrimSpace(input.OpnameID)
	code := products.NormalizeCode(input.ProductCode)
	if opnameID == "" || code == "" {
		return fmt.Errorf("%w: opname id and product code required", shared.ErrValidation)
	}
	if input.NewStock < 0 {
		return fmt.Errorf("%w: new stock must not be negative", shared.ErrValidation)
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		return fmt.Errorf("%w: authenticated actor required", shared.ErrUnauthorized)
	}

	release, err := s.lock(ctx, code)
	if err != nil {
		return err
	}
	defer release()

	lines, err := s.repo.FindBatch(ctx, opnameID, code)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, opnameID, code)
	}
	for _, line := range lines {
		if line.Status == StatusApproved {
			return fmt.Errorf("%w: %s/%s by %s", ErrAlreadyApproved, opnameID, code, line.DecidedBy)
		}
		if !line.Status.CanTransitionTo(StatusApproved) {
			return fmt.Errorf("%w: %s/%s is %s", shared.ErrBusinessRule, opnameID, code, line.Status)
		}
	}

	product, err := s.balances.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	now := s.clock()
	if err := s.balances.SetStock(ctx, code, input.NewStock, now); err != nil {
		return err
	}
	// the balance has moved; cancellation must not split it from the status flip
	ctx = context.WithoutCancel(ctx)
	n, err := s.repo.MarkApproved(ctx, opnameID, code, actor, now)
	if err != nil {
		s.logger.Error("opname balance written but status still pending",
			slog.String("opname_id", opnameID),
			slog.String("product_code", code),
			slog.Int("stock", input.NewStock),
			slog.Any("error", err),
		)
		return err
	}
	if n == 0 {
		// the line disappeared between the check and the flip
		if restoreErr := s.balances.SetStock(ctx, code, product.Stock, s.clock()); restoreErr != nil {
			s.logger.Error("restore balance after vanished opname", slog.String("product_code", code), slog.Any("error", restoreErr))
		}
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, opnameID, code)
	}

	s.logger.Info("opname approved",
		slog.String("opname_id", opnameID),
		slog.String("product_code", code),
		slog.Int("before", product.Stock),
		slog.Int("after", input.NewStock),
		slog.String("actor", actor),
	)
	if s.notifier != nil {
		s.notifier.StockChanged(ctx, code)
	}
	s.record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   "opname:approve",
		Entity:   Table,
		EntityID: opnameID,
		Meta: map[string]any{
			"product_code": code,
			"before":       product.Stock,
			"after":        input.NewStock,
		},
		At: now,
	})
	return nil
}

// Reject permanently deletes the pending lines of a batch, or of one line
// when ProductCode is set. Rejection is destructive and irreversible: the
// rows are removed from the opname table and only the audit trail keeps a
// copy. Any approved line in scope refuses the whole call.
func (s *Service) Reject(ctx context.Context, input RejectInput) error {
	err := s.reject(ctx, input)
	s.observe("reject", err)
	return err
}

func (s *Service) reject(ctx context.Context, input RejectInput) error {
	opnameID := strings.TrimSpace(input.OpnameID)
	if opnameID == "" {
		return fmt.Errorf("%w: opname id required", shared.ErrValidation)
	}
	code := products.NormalizeCode(input.ProductCode)
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		return fmt.Errorf("%w: authenticated actor required", shared.ErrUnauthorized)
	}

	lines, err := s.repo.FindBatch(ctx, opnameID, code)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, opnameID)
	}
	codes := make([]string, 0, len(lines))
	for _, line := range lines {
		codes = append(codes, line.ProductCode)
	}
	release, err := s.lockAll(ctx, codes)
	if err != nil {
		return err
	}
	defer release()

	// re-read under the locks; an approval may have landed meanwhile
	lines, err = s.repo.FindBatch(ctx, opnameID, code)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, opnameID)
	}
	for _, line := range lines {
		if line.Status == StatusApproved {
			return fmt.Errorf("%w: %s/%s was approved by %s", ErrCannotRejectApproved, opnameID, line.ProductCode, line.DecidedBy)
		}
		if !line.Status.CanTransitionTo(StatusRejected) {
			return fmt.Errorf("%w: %s/%s is %s", shared.ErrBusinessRule, opnameID, line.ProductCode, line.Status)
		}
	}
	n, err := s.repo.DeletePending(ctx, opnameID, code)
	if err != nil {
		return err
	}
	s.logger.Warn("opname rejected and deleted",
		slog.String("opname_id", opnameID),
		slog.String("product_code", code),
		slog.Int("lines", n),
		slog.String("actor", actor),
	)
	deleted := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		deleted = append(deleted, map[string]any{
			"product_code":   line.ProductCode,
			"system_stock":   line.SystemStock,
			"physical_stock": line.PhysicalStock,
			"submitted_by":   line.Actor,
		})
	}
	s.record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   "opname:reject",
		Entity:   Table,
		EntityID: opnameID,
		Meta:     map[string]any{"deleted": deleted},
		At:       s.clock(),
	})
	return nil
}

// List returns raw lines newest first. Store failures degrade to an empty
// result.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	all, err := s.repo.List(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("opname list degraded to empty", slog.Any("error", err))
			return []Record{}, nil
		}
		return nil, err
	}
	code := products.NormalizeCode(filter.ProductCode)
	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if filter.From != "" && rec.Date < filter.From {
			continue
		}
		if filter.To != "" && rec.Date > filter.To {
			continue
		}
		if code != "" && rec.ProductCode != code {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Report returns merged (date, productCode) rows. Nothing is written back.
func (s *Service) Report(ctx context.Context, filter ListFilter) ([]MergedRow, error) {
	records, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := Merge(records)
	if rows == nil {
		rows = []MergedRow{}
	}
	return rows, nil
}

func validateFilter(filter ListFilter) error {
	for _, v := range []string{filter.From, filter.To} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, v); err != nil {
			return fmt.Errorf("%w: date %q must be YYYY-MM-DD", shared.ErrValidation, v)
		}
	}
	if filter.From != "" && filter.To != "" && filter.From > filter.To {
		return fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	return nil
}

func (s *Service) lock(ctx context.Context, code string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Lock(ctx, shared.ProductLockKey(code))
}

// lockAll acquires product locks in sorted order so concurrent multi-product
// callers cannot deadlock.
func (s *Service) lockAll(ctx context.Context, codes []string) (func(), error) {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	prev := ""
	for _, code := range sorted {
		if code == prev {
			continue
		}
		prev = code
		release, err := s.lock(ctx, code)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func (s *Service) record(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit opname decision", slog.String("opname_id", log.EntityID), slog.Any("error", err))
	}
}

func (s *Service) observe(decision string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyApproved):
		outcome = "already_approved"
	case errors.Is(err, ErrCannotRejectApproved):
		outcome = "approved"
	case errors.Is(err, shared.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, shared.ErrValidation):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.metrics.ObserveOpnameDecision(decision, outcome)
}

// freshBatchID draws ids until one names no stored line, so Approve and
// Reject never reach into another batch.
func (s *Service) freshBatchID(ctx context.Context, prefix string, n int) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := prefix + s.newID(n)
		lines, err := s.repo.FindBatch(ctx, id, "")
		if err != nil {
			return "", err
		}
		if len(lines) == 0 {
			return id, nil
		}
		s.logger.Warn("opname id collision, drawing again", slog.String("opname_id", id))
	}
	return "", fmt.Errorf("opname: no free batch id after %d attempts", maxIDAttempts)
}

func newRecord(opnameID string, at time.Time, date, code, name string, system, physical int, actor string) Record {
	variance := physical - system
	return Record{
		OpnameID:      opnameID,
		Timestamp:     at,
		Date:          date,
		ProductCode:   code,
		ProductName:   name,
		SystemStock:   system,
		PhysicalStock: physical,
		Variance:      variance,
		Label:         LabelFor(variance),
		Status:        StatusPending,
		Actor:         actor,
	}
}

func shortID(n int) string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:n]
}
