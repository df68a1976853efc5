package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Repository menyediakan akses ke jejak audit yang tersimpan.
type Repository interface {
	Entries(ctx context.Context) ([]TimelineRow, error)
}

// Service mengoordinasikan pengambilan data audit.
type Service struct {
	repo Repository
}

// NewService membuat service audit timeline baru.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline mengambil data audit dengan paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.Export(ctx, filters)
	if err != nil {
		return Result{}, err
	}
	offset := (page - 1) * pageSize
	if offset > len(rows) {
		offset = len(rows)
	}
	window := rows[offset:]
	hasNext := len(window) > pageSize
	if hasNext {
		window = window[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: window, Paging: paging}, nil
}

// Export mengambil seluruh data timeline tanpa paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	all, err := s.repo.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TimelineRow, 0, len(all))
	for _, row := range all {
		if !filters.From.IsZero() && row.At.Before(filters.From) {
			continue
		}
		if !filters.To.IsZero() && !row.At.Before(filters.To) {
			continue
		}
		if !matchText(filters.Actor, row.Actor) || !matchText(filters.Entity, row.Entity) || !matchText(filters.Action, row.Action) {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

func matchText(filter, value string) bool {
	trimmed := strings.TrimSpace(filter)
	return trimmed == "" || strings.EqualFold(trimmed, value)
}
