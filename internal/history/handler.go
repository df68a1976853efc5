package history

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gudang/internal/platform/httpx"
)

// Handler wires HTTP endpoints for balance history.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs history handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers history routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleHistory)
	r.Get("/anomalies", h.handleAnomalies)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	points, err := h.service.BalanceHistory(r.Context(), q)
	if err != nil {
		h.logger.Warn("balance history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Anomalies(r.Context())
	if err != nil {
		h.logger.Error("stock anomalies", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Anomaly{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func parseQuery(r *http.Request) (Query, error) {
	values := r.URL.Query()
	granularity, err := ParseGranularity(values.Get("granularity"))
	if err != nil {
		return Query{}, err
	}
	codes := append([]string{}, values["productCodes[]"]...)
	codes = append(codes, values["productCodes"]...)
	q := Query{
		ProductCodes: codes,
		Granularity:  granularity,
		Date:         strings.TrimSpace(values.Get("date")),
		StartHour:    0,
		EndHour:      23,
		From:         strings.TrimSpace(values.Get("from")),
		To:           strings.TrimSpace(values.Get("to")),
	}
	if raw := values.Get("startHour"); raw != "" {
		if q.StartHour, err = strconv.Atoi(raw); err != nil {
			return Query{}, httpx.ValidationError("startHour must be an integer")
		}
	}
	if raw := values.Get("endHour"); raw != "" {
		if q.EndHour, err = strconv.Atoi(raw); err != nil {
			return Query{}, httpx.ValidationError("endHour must be an integer")
		}
	}
	return q, nil
}
