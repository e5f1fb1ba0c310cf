package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kasirpos/kasirpos/internal/audit"
	"github.com/kasirpos/kasirpos/internal/auth"
	"github.com/kasirpos/kasirpos/internal/catalog/categories"
	"github.com/kasirpos/kasirpos/internal/catalog/products"
	"github.com/kasirpos/kasirpos/internal/ledger"
	"github.com/kasirpos/kasirpos/internal/observability"
	"github.com/kasirpos/kasirpos/internal/reports"
	"github.com/kasirpos/kasirpos/internal/sales"
	"github.com/kasirpos/kasirpos/internal/shared"
	"github.com/kasirpos/kasirpos/internal/users"
	"github.com/kasirpos/kasirpos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	CategoriesHandler *categories.Handler
	ProductsHandler   *products.Handler
	LedgerHandler     *ledger.Handler
	SalesHandler      *sales.Handler
	ReportsHandler    *reports.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with the standard middleware and
// route layout. Catalog, inventory and user management are admin-only;
// checkout is open to any logged-in account.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(RequireRole(users.RoleAdmin))
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/inventory", params.LedgerHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireLogin)
		r.Route("/categories", params.CategoriesHandler.MountRoutes)
		r.Route("/products", params.ProductsHandler.MountRoutes)
		r.Route("/transactions", params.SalesHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
