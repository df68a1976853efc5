package opname

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/gudang/internal/auth"
	"github.com/odyssey-erp/gudang/internal/platform/httpx"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// Handler wires HTTP endpoints for the opname workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs opname handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers opname routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/report", h.handleReport)
	r.Post("/submit", h.handleSubmit)
	r.Post("/field", h.handleField)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(shared.RoleApprover))
		r.Post("/approve", h.handleApprove)
		r.Post("/reject", h.handleReject)
	})
}

type submitItemRequest struct {
	ProductCode   string `json:"productCode" validate:"required,max=64"`
	ProductName   string `json:"productName" validate:"max=200"`
	SystemStock   *int   `json:"systemStock" validate:"required,gte=0"`
	PhysicalStock *int   `json:"physicalStock" validate:"required,gte=0"`
}

type submitRequest struct {
	Date  string              `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Items []submitItemRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

type fieldRequest struct {
	ProductCode   string `json:"productCode" validate:"required,max=64"`
	PhysicalStock *int   `json:"physicalStock" validate:"required,gte=0"`
}

type approveRequest struct {
	OpnameID    string `json:"opnameId" validate:"required"`
	ProductCode string `json:"productCode" validate:"required"`
	NewStock    *int   `json:"newStock" validate:"required,gte=0"`
}

type rejectRequest struct {
	OpnameID    string `json:"opnameId" validate:"required"`
	ProductCode string `json:"productCode"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, Item{
			ProductCode:   it.ProductCode,
			ProductName:   it.ProductName,
			SystemStock:   *it.SystemStock,
			PhysicalStock: *it.PhysicalStock,
		})
	}
	res, err := h.service.Submit(r.Context(), SubmitInput{Date: req.Date, Actor: actor.Name, Items: items})
	if err != nil {
		h.logger.Warn("submit opname", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"opnameId": res.OpnameID})
}

func (h *Handler) handleField(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req fieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.SubmitSingle(r.Context(), SubmitSingleInput{
		ProductCode:   req.ProductCode,
		PhysicalStock: *req.PhysicalStock,
		Actor:         actor.Name,
	})
	if err != nil {
		h.logger.Warn("submit field opname", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"opnameId": res.OpnameID, "record": res.Records[0]})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.Approve(r.Context(), ApproveInput{
		OpnameID:    req.OpnameID,
		ProductCode: req.ProductCode,
		NewStock:    *req.NewStock,
		Actor:       actor.Name,
	})
	if err != nil {
		h.logger.Warn("approve opname", slog.String("opname_id", req.OpnameID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.Reject(r.Context(), RejectInput{OpnameID: req.OpnameID, ProductCode: req.ProductCode, Actor: actor.Name})
	if err != nil {
		h.logger.Warn("reject opname", slog.String("opname_id", req.OpnameID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context(), parseFilter(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Report(r.Context(), parseFilter(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func parseFilter(r *http.Request) ListFilter {
	q := r.URL.Query()
	return ListFilter{
		From:        strings.TrimSpace(q.Get("from")),
		To:          strings.TrimSpace(q.Get("to")),
		ProductCode: q.Get("productCode"),
		Status:      Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
	}
	return actor, ok
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}
