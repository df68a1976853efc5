package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/gudang/internal/auth"
	"github.com/odyssey-erp/gudang/internal/platform/httpx"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// AuditEnqueuer submits on-demand stock audits.
type AuditEnqueuer interface {
	EnqueueStockAudit(ctx context.Context, payload StockAuditPayload) (*asynq.TaskInfo, error)
}

// Handler exposes HTTP endpoints for job observability and on-demand audits.
type Handler struct {
	inspector *asynq.Inspector
	enqueuer  AuditEnqueuer
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. Both inspector
// and enqueuer may be nil when Redis is not configured.
func NewHandler(inspector *asynq.Inspector, enqueuer AuditEnqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches public job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

// MountAPIRoutes attaches authenticated job routes.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.With(auth.RequireRole(shared.RoleApprover)).Post("/stock-audit", h.enqueueStockAudit)
}

type queueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	resp := queueHealth{Queue: QueueDefault}
	if info != nil {
		resp.Queue = info.Queue
		resp.Pending = info.Pending
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) enqueueStockAudit(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.RespondError(w, fmt.Errorf("%w: job queue not configured", shared.ErrStoreUnavailable))
		return
	}
	payload := StockAuditPayload{Reason: "manual"}
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		payload.Reason = "manual:" + actor.Name
	}
	info, err := h.enqueuer.EnqueueStockAudit(r.Context(), payload)
	if err != nil {
		h.logger.Error("enqueue stock audit", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err))
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"taskId": info.ID, "queue": info.Queue})
}
