package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Gvain-jona/ivan-test-sub005/internal/aggregate"
	"github.com/Gvain-jona/ivan-test-sub005/internal/analytics"
	analytichttp "github.com/Gvain-jona/ivan-test-sub005/internal/analytics/http"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/composite"
	"github.com/Gvain-jona/ivan-test-sub005/internal/expenses"
	"github.com/Gvain-jona/ivan-test-sub005/internal/observability"
	"github.com/Gvain-jona/ivan-test-sub005/internal/optimistic"
	"github.com/Gvain-jona/ivan-test-sub005/internal/orders"
	"github.com/Gvain-jona/ivan-test-sub005/internal/purchases"
	"github.com/Gvain-jona/ivan-test-sub005/internal/resolver"
	"github.com/Gvain-jona/ivan-test-sub005/internal/shared"
	"github.com/Gvain-jona/ivan-test-sub005/jobs"
)

// Deps are the collaborators the services are built on. Redis, Notifier
// and Inspector are optional.
type Deps struct {
	Config    *Config
	Logger    *slog.Logger
	Metrics   *observability.Metrics
	Backend   backend.Client
	Redis     *redis.Client
	Notifier  composite.Notifier
	Inspector jobs.QueueInspector
}

// Services holds the wired domain services.
type Services struct {
	Resolver  *resolver.Resolver
	Creator   *composite.Creator
	Orders    *orders.Service
	Purchases *purchases.Service
	Expenses  *expenses.Service
	Analytics *analytics.Service

	deps Deps
}

// NewServices wires every service. Confirmed mutations in any collection
// invalidate the analytics cache.
func NewServices(deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config == nil {
		deps.Config = &Config{CollectionTTL: optimistic.DefaultTTL, RecentLimit: resolver.DefaultRecentLimit}
	}
	if deps.Notifier == nil {
		deps.Notifier = composite.BackendNotifier{Store: deps.Backend}
	}
	cfg := deps.Config
	logger := deps.Logger

	var recent resolver.RecentStore = resolver.NewMemoryRecentStore()
	if deps.Redis != nil {
		recent = resolver.NewRedisRecentStore(deps.Redis)
	}
	var resolverObserver resolver.Observer
	var storeObserver optimistic.Observer
	if deps.Metrics != nil {
		resolverObserver = deps.Metrics
		storeObserver = deps.Metrics
	}
	res := resolver.New(deps.Backend, resolver.Config{
		Recent:      recent,
		RecentLimit: cfg.RecentLimit,
		Logger:      logger.With(slog.String("component", "resolver")),
		Observer:    resolverObserver,
	})

	creator := composite.NewCreator(res, deps.Backend, composite.Options{
		Logger:   logger.With(slog.String("component", "composite")),
		Notifier: deps.Notifier,
		Retry:    backend.RetryPolicy{MaxRetries: cfg.RefreshMaxRetries, Delay: cfg.RefreshRetryDelay},
	})

	analyticsSvc := analytics.NewService(deps.Backend, analytics.NewCache(deps.Redis, cfg.AnalyticsTTL), logger.With(slog.String("component", "analytics")))
	onChange := func(ctx context.Context) {
		// The caller's context may be cancelled once the response is written.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		analyticsSvc.Invalidate(ctx)
	}
	opts := aggregate.Options{
		Store: optimistic.Options{
			TTL:      cfg.CollectionTTL,
			Observer: storeObserver,
			OnChange: onChange,
		},
		Resolver: res,
		Logger:   logger,
	}

	return &Services{
		Resolver:  res,
		Creator:   creator,
		Orders:    orders.NewService(deps.Backend, creator, opts),
		Purchases: purchases.NewService(deps.Backend, creator, opts),
		Expenses:  expenses.NewService(deps.Backend, creator, opts),
		Analytics: analyticsSvc,
		deps:      deps,
	}
}

// RouterParams returns the handlers for NewRouter.
func (s *Services) RouterParams() RouterParams {
	logger := s.deps.Logger
	idem := shared.NewIdempotencyStore(s.deps.Redis, shared.DefaultIdempotencyTTL)
	return RouterParams{
		Logger:           logger,
		Config:           s.deps.Config,
		Metrics:          s.deps.Metrics,
		ResolverHandler:  resolver.NewHandler(logger, s.Resolver),
		OrdersHandler:    aggregate.NewHandler(logger, s.Orders).WithIdempotency(idem),
		PurchasesHandler: aggregate.NewHandler(logger, s.Purchases).WithIdempotency(idem),
		ExpensesHandler:  aggregate.NewHandler(logger, s.Expenses).WithIdempotency(idem),
		AnalyticsHandler: analytichttp.NewHandler(logger, s.Analytics),
		JobHandler:       jobs.NewHandler(s.deps.Inspector, logger),
	}
}

// Wait blocks until background refreshes of every collection finish.
func (s *Services) Wait() {
	s.Orders.Wait()
	s.Purchases.Wait()
	s.Expenses.Wait()
}
