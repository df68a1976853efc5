package audithttp

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/gudang/internal/audit"
	"github.com/odyssey-erp/gudang/internal/platform/httpx"
)

const (
	dateLayout       = "2006-01-02"
	defaultPageSize  = 20
	maxPageSize      = 50
	defaultRangeDays = 7
	maxRangeDays     = 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// Exporter writes audit timeline exports.
type Exporter interface {
	WriteCSV(rows []audit.TimelineRow) ([]byte, error)
}

// Handler menangani permintaan audit timeline.
type Handler struct {
	logger    *slog.Logger
	service   TimelineService
	exporter  Exporter
	validator *httpx.Validator
	loc       *time.Location
	now       func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TimelineService, exporter Exporter, loc *time.Location) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		logger:    logger,
		service:   service,
		exporter:  exporter,
		validator: httpx.NewValidator(),
		loc:       loc,
		now:       time.Now,
	}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if result.Rows == nil {
		result.Rows = []audit.TimelineRow{}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	csvBytes, err := h.exporter.WriteCSV(rows)
	if err != nil {
		h.logger.Error("encode csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// timelineQuery is the raw query string before defaults are applied.
type timelineQuery struct {
	From     string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Actor    string `json:"actor" validate:"max=100"`
	Entity   string `json:"entity" validate:"max=50"`
	Action   string `json:"action" validate:"max=50"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0"`
}

func readTimelineQuery(r *http.Request) (timelineQuery, error) {
	q := r.URL.Query()
	out := timelineQuery{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Actor:  strings.TrimSpace(q.Get("actor")),
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	for name, dst := range map[string]*int{"page": &out.Page, "page_size": &out.PageSize} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return timelineQuery{}, httpx.ValidationError(name + " must be an integer")
		}
		*dst = n
	}
	return out, nil
}

// parseFilters turns the query into filters over the half-open range
// [from 00:00, to+1 00:00) in the handler's location. Missing dates default
// to the last seven days ending today.
func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q, err := readTimelineQuery(r)
	if err != nil {
		return audit.TimelineFilters{}, err
	}
	if err := h.validator.Struct(q); err != nil {
		return audit.TimelineFilters{}, err
	}

	to := h.now().In(h.loc)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, h.loc)
	if q.To != "" {
		to, _ = time.ParseInLocation(dateLayout, q.To, h.loc)
	}
	from := to.AddDate(0, 0, -defaultRangeDays)
	if q.From != "" {
		from, _ = time.ParseInLocation(dateLayout, q.From, h.loc)
	}
	switch {
	case from.After(to):
		return audit.TimelineFilters{}, httpx.ValidationError("from must not be after to")
	case to.Sub(from) > maxRangeDays*24*time.Hour:
		return audit.TimelineFilters{}, httpx.ValidationError(fmt.Sprintf("range must not exceed %d days", maxRangeDays))
	}

	return audit.TimelineFilters{
		From:     from,
		To:       to.AddDate(0, 0, 1),
		Actor:    q.Actor,
		Entity:   q.Entity,
		Action:   q.Action,
		Page:     max(q.Page, 1),
		PageSize: min(cmp.Or(q.PageSize, defaultPageSize), maxPageSize),
	}, nil
}
