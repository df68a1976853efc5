package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/gudang/internal/ledger"
	"github.com/odyssey-erp/gudang/internal/products"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// ProductLister loads current balances.
type ProductLister interface {
	List(ctx context.Context) ([]products.Product, error)
}

// LedgerLister loads the full ledger in append order.
type LedgerLister interface {
	List(ctx context.Context) ([]ledger.Transaction, error)
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Logger   *slog.Logger
	Cache    *Cache
	Clock    func() time.Time
	Location *time.Location
}

// Service answers balance-history queries. It is read-only and never
// authoritative: store failures degrade to an empty result.
type Service struct {
	products ProductLister
	ledger   LedgerLister
	cache    *Cache
	logger   *slog.Logger
	clock    func() time.Time
	loc      *time.Location
	group    singleflight.Group
}

// NewService builds Service.
func NewService(productsRepo ProductLister, ledgerRepo LedgerLister, cfg ServiceConfig) *Service {
	s := &Service{
		products: productsRepo,
		ledger:   ledgerRepo,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		loc:      cfg.Location,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// Snapshot is the input of a reconstruction: current balances and the
// movements affecting them.
type Snapshot struct {
	Current   map[string]int
	Movements []Movement
}

// BalanceHistory reconstructs the balances of q.ProductCodes (all products
// when empty) on q's grid.
func (s *Service) BalanceHistory(ctx context.Context, q Query) ([]Point, error) {
	now := s.clock()
	codes := normalizeCodes(q.ProductCodes)
	q.ProductCodes = codes
	if _, err := Ticks(q, now, s.loc); err != nil {
		return nil, err
	}

	key, err := s.cache.BuildKey(ctx, queryKey(q, now.In(s.loc))...)
	if err != nil {
		s.logger.Warn("history cache key", slog.Any("error", err))
		key = strings.Join(queryKey(q, now.In(s.loc)), ":")
	}
	res, err, _ := s.group.Do(key, func() (any, error) {
		var points []Point
		err := s.cache.FetchJSON(ctx, key, &points, func(ctx context.Context) (any, error) {
			return s.compute(ctx, q, now)
		})
		return points, err
	})
	if err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("balance history degraded to empty", slog.Any("error", err))
			return []Point{}, nil
		}
		return nil, err
	}
	points := res.([]Point)
	if points == nil {
		points = []Point{}
	}
	return points, nil
}

func (s *Service) compute(ctx context.Context, q Query, now time.Time) ([]Point, error) {
	snap, err := s.Load(ctx, q.ProductCodes)
	if err != nil {
		return nil, err
	}
	return Reconstruct(snap.Current, snap.Movements, q, now, s.loc)
}

// Load reads products and ledger in parallel. Unknown codes are NotFound;
// empty codes select every product.
func (s *Service) Load(ctx context.Context, codes []string) (Snapshot, error) {
	var (
		items []products.Product
		txs   []ledger.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.products.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = s.ledger.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	stock := make(map[string]int, len(items))
	for _, p := range items {
		stock[p.Code] = p.Stock
	}
	current := make(map[string]int)
	if len(codes) == 0 {
		current = stock
	} else {
		for _, code := range codes {
			balance, ok := stock[code]
			if !ok {
				return Snapshot{}, fmt.Errorf("%w: %s", products.ErrProductNotFound, code)
			}
			current[code] = balance
		}
	}
	moves := make([]Movement, 0, len(txs))
	for _, tx := range txs {
		if _, ok := current[tx.ProductCode]; !ok {
			continue
		}
		delta := tx.Quantity
		if tx.Type == ledger.TypeOut {
			delta = -delta
		} else if tx.Type != ledger.TypeIn {
			continue
		}
		moves = append(moves, Movement{ProductCode: tx.ProductCode, At: tx.Timestamp, Delta: delta, Seq: tx.Seq})
	}
	return Snapshot{Current: current, Movements: moves}, nil
}

// Anomalies replays every product's ledger and reports negative balances.
func (s *Service) Anomalies(ctx context.Context) ([]Anomaly, error) {
	snap, err := s.Load(ctx, nil)
	if err != nil {
		return nil, err
	}
	return FindAnomalies(snap.Current, snap.Movements, s.clock()), nil
}

func normalizeCodes(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			code := products.NormalizeCode(part)
			if code == "" {
				continue
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

func queryKey(q Query, now time.Time) []string {
	return []string{
		string(q.Granularity),
		now.Format(DateLayout),
		strings.Join(q.ProductCodes, ","),
		q.Date,
		strconv.Itoa(q.StartHour),
		strconv.Itoa(q.EndHour),
		q.From,
		q.To,
	}
}
