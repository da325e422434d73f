package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	analytichttp "github.com/Gvain-jona/ivan-test-sub005/internal/analytics/http"
	"github.com/Gvain-jona/ivan-test-sub005/internal/expenses"
	"github.com/Gvain-jona/ivan-test-sub005/internal/observability"
	"github.com/Gvain-jona/ivan-test-sub005/internal/orders"
	"github.com/Gvain-jona/ivan-test-sub005/internal/platform/httpx"
	"github.com/Gvain-jona/ivan-test-sub005/internal/purchases"
	"github.com/Gvain-jona/ivan-test-sub005/internal/resolver"
	"github.com/Gvain-jona/ivan-test-sub005/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Metrics          *observability.Metrics
	ResolverHandler  *resolver.Handler
	OrdersHandler    *orders.Handler
	PurchasesHandler *purchases.Handler
	ExpensesHandler  *expenses.Handler
	AnalyticsHandler *analytichttp.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), r.Method+" not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.ResolverHandler != nil {
		params.ResolverHandler.MountRoutes(r)
	}
	if params.OrdersHandler != nil {
		r.Route("/orders", params.OrdersHandler.MountRoutes)
	}
	if params.PurchasesHandler != nil {
		r.Route("/material_purchases", params.PurchasesHandler.MountRoutes)
	}
	if params.ExpensesHandler != nil {
		r.Route("/expenses", params.ExpensesHandler.MountRoutes)
	}
	if params.AnalyticsHandler != nil {
		params.AnalyticsHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
