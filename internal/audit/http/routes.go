package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/gudang/internal/auth"
	"github.com/odyssey-erp/gudang/internal/platform/httpx"
	"github.com/odyssey-erp/gudang/internal/shared"
)

// Ekspor CSV membaca seluruh log; dibatasi per aktor.
const (
	exportLimit  = 10
	exportWindow = time.Minute
)

// MountRoutes mendaftarkan endpoint audit timeline dan ekspor CSV.
// Ekspor hanya untuk approver.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.handleTimeline)
	r.With(
		auth.RequireRole(shared.RoleApprover),
		exportLimiter(),
	).Get("/export.csv", h.handleExport)
}

func exportLimiter() func(http.Handler) http.Handler {
	return httprate.Limit(exportLimit, exportWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if actor, ok := shared.ActorFromContext(r.Context()); ok {
				return "actor:" + actor.Name, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "export rate limit reached")
		}),
	)
}
