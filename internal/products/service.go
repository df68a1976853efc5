package products

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context) ([]Product, error)
	GetByCode(ctx context.Context, code string) (Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	Insert(ctx context.Context, p Product) error
	UpdateDetails(ctx context.Context, id string, in DetailsInput, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// HistoryChecker reports whether the ledger references a product code.
type HistoryChecker interface {
	HasHistory(ctx context.Context, code string) (bool, error)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Logger   *slog.Logger
	// Notifier hears about products appearing or disappearing, which changes
	// the set an all-products report covers.
	Notifier shared.StockChangeNotifier
}

// Service manages product master data around the authoritative balance.
type Service struct {
	repo     RepositoryPort
	history  HistoryChecker
	logger   *slog.Logger
	notifier shared.StockChangeNotifier
	clock    func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, history HistoryChecker, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		history:  history,
		logger:   logger,
		notifier: cfg.Notifier,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns every product.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// Get resolves a product by code.
func (s *Service) Get(ctx context.Context, code string) (Product, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Product{}, ErrCodeRequired
	}
	return s.repo.GetByCode(ctx, code)
}

// Create registers a product with zero stock and a generated code of the
// form DEPT-XXX-NNNN.
func (s *Service) Create(ctx context.Context, in DetailsInput) (Product, error) {
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	now := s.clock()
	p := Product{
		ID:           uuid.NewString(),
		Code:         generateCode(in.DepartmentID, now),
		Name:         strings.TrimSpace(in.Name),
		DepartmentID: strings.TrimSpace(in.DepartmentID),
		Unit:         strings.TrimSpace(in.Unit),
		Stock:        0,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return Product{}, err
	}
	s.logger.Info("product created", slog.String("code", p.Code), slog.String("department_id", p.DepartmentID))
	s.notify(ctx, p.Code)
	return p, nil
}

// UpdateDetails edits name, department and unit. Stock and code never change here.
func (s *Service) UpdateDetails(ctx context.Context, id string, in DetailsInput) (Product, error) {
	if strings.TrimSpace(id) == "" {
		return Product{}, ErrProductNotFound
	}
	if err := in.validate(); err != nil {
		return Product{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.DepartmentID = strings.TrimSpace(in.DepartmentID)
	in.Unit = strings.TrimSpace(in.Unit)
	if err := s.repo.UpdateDetails(ctx, id, in, s.clock()); err != nil {
		return Product{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes a product that has never appeared in the ledger.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if s.history != nil {
		has, err := s.history.HasHistory(ctx, p.Code)
		if err != nil {
			return err
		}
		if has {
			return fmt.Errorf("%w: %s", ErrHasHistory, p.Code)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", slog.String("code", p.Code))
	s.notify(ctx, p.Code)
	return nil
}

func (s *Service) notify(ctx context.Context, code string) {
	if s.notifier != nil {
		s.notifier.StockChanged(ctx, code)
	}
}

func generateCode(department string, now time.Time) string {
	dept := NormalizeCode(department)
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:3]
	seconds := fmt.Sprintf("%04d", now.Unix()%10000)
	return fmt.Sprintf("%s-%s-%s", dept, random, seconds)
}
