package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gudang/internal/platform/httpx"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// Handler wires HTTP endpoints for the ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handlePost)
}

type postRequest struct {
	ProductCode  string `json:"productCode" validate:"required,max=64"`
	Type         string `json:"type" validate:"required,oneof=IN OUT in out"`
	Quantity     int    `json:"quantity" validate:"required,gt=0"`
	DepartmentID string `json:"departmentId" validate:"max=50"`
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var req postRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Post(r.Context(), PostInput{
		ProductCode:    req.ProductCode,
		Type:           TransactionType(strings.ToUpper(req.Type)),
		Quantity:       req.Quantity,
		DepartmentID:   req.DepartmentID,
		Actor:          actor.Name,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.logger.Warn("post movement", slog.String("product_code", req.ProductCode), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{ProductCode: r.URL.Query().Get("productCode")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.RespondError(w, httpx.ValidationError("limit must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}
