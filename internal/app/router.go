package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/gudang/internal/audit"
	audithttp "github.com/odyssey-erp/gudang/internal/audit/http"
	"github.com/odyssey-erp/gudang/internal/auth"
	"github.com/odyssey-erp/gudang/internal/history"
	"github.com/odyssey-erp/gudang/internal/ledger"
	"github.com/odyssey-erp/gudang/internal/observability"
	"github.com/odyssey-erp/gudang/internal/opname"
	"github.com/odyssey-erp/gudang/internal/products"
	"github.com/odyssey-erp/gudang/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Auth            *auth.Service
	ProductsHandler *products.Handler
	LedgerHandler   *ledger.Handler
	OpnameHandler   *opname.Handler
	HistoryHandler  *history.Handler
	AuditHandler    *audithttp.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
}

// RouterParams builds the HTTP handlers over the assembled services.
func (c *Components) RouterParams(jobHandler *jobs.Handler) RouterParams {
	return RouterParams{
		Logger:          c.Logger,
		Config:          c.Config,
		Auth:            c.Auth,
		ProductsHandler: products.NewHandler(c.Logger, c.Products),
		LedgerHandler:   ledger.NewHandler(c.Logger, c.Ledger),
		OpnameHandler:   opname.NewHandler(c.Logger, c.Opname),
		HistoryHandler:  history.NewHandler(c.Logger, c.History),
		AuditHandler:    audithttp.NewHandler(c.Logger, c.Audit, audit.NewExporter(), c.Config.Location()),
		JobHandler:      jobHandler,
		Metrics:         c.Metrics,
	}
}

// NewRouter constructs the chi.Router with gudang defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	mutationLimit := 30
	if params.Config != nil && params.Config.MutationRateLimit > 0 {
		mutationLimit = params.Config.MutationRateLimit
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.Middleware(params.Auth, params.Logger))
		api.Use(MutationLimiter(mutationLimit, time.Minute))

		if params.ProductsHandler != nil {
			api.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			api.Route("/transactions", params.LedgerHandler.MountRoutes)
		}
		if params.OpnameHandler != nil {
			api.Route("/opname", params.OpnameHandler.MountRoutes)
		}
		if params.HistoryHandler != nil {
			api.Route("/balance-history", params.HistoryHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			api.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			api.Route("/jobs", params.JobHandler.MountAPIRoutes)
		}
	})

	return r
}
