// Package analytics summarises what is owed and paid across orders, material
// purchases and expenses.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/ledger"
)

// Source lists the stored aggregates.
type Source interface {
	ListAggregates(ctx context.Context, typ backend.AggregateType, filter backend.ListFilter) ([]backend.AggregateRecord, error)
}

// Filter narrows a summary to aggregates dated within [From, To].
type Filter struct {
	From *time.Time
	To   *time.Time
}

// CollectionSummary aggregates one collection.
type CollectionSummary struct {
	Type           backend.AggregateType        `json:"type"`
	Count          int                          `json:"count"`
	TotalAmount    decimal.Decimal              `json:"total_amount"`
	AmountPaid     decimal.Decimal              `json:"amount_paid"`
	Outstanding    decimal.Decimal              `json:"outstanding"`
	OverpaidCount  int                          `json:"overpaid_count"`
	OverpaidAmount decimal.Decimal              `json:"overpaid_amount"`
	ByStatus       map[ledger.PaymentStatus]int `json:"by_status"`
}

// Summary is the analytics payload.
type Summary struct {
	From        *time.Time          `json:"from,omitempty"`
	To          *time.Time          `json:"to,omitempty"`
	Collections []CollectionSummary `json:"collections"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Service computes summaries and caches them.
type Service struct {
	source Source
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a Source with a Cache helper.
func NewService(source Source, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, cache: cache, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Summary returns the per collection summary for f.
func (s *Service) Summary(ctx context.Context, f Filter) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "analytics", "summary", dateToken(f.From), dateToken(f.To))
	if err != nil {
		return Summary{}, fmt.Errorf("analytics: build key: %w", err)
	}
	var out Summary
	if err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (interface{}, error) {
		return s.compute(ctx, f)
	}); err != nil {
		return Summary{}, err
	}
	return out, nil
}

// Invalidate drops cached summaries. Failures are logged; the next summary
// is at most one TTL stale.
func (s *Service) Invalidate(ctx context.Context) {
	if _, err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("analytics cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) compute(ctx context.Context, f Filter) (Summary, error) {
	collections := make([]CollectionSummary, len(backend.AggregateTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, typ := range backend.AggregateTypes {
		g.Go(func() error {
			records, err := s.source.ListAggregates(gctx, typ, backend.ListFilter{From: f.From, To: f.To})
			if err != nil {
				return fmt.Errorf("analytics: list %s: %w", typ, err)
			}
			collections[i] = summarize(typ, records)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return Summary{From: f.From, To: f.To, Collections: collections, GeneratedAt: s.now()}, nil
}

// summarize re-derives every ledger instead of trusting stored totals.
func summarize(typ backend.AggregateType, records []backend.AggregateRecord) CollectionSummary {
	cs := CollectionSummary{
		Type:           typ,
		TotalAmount:    decimal.Zero,
		AmountPaid:     decimal.Zero,
		Outstanding:    decimal.Zero,
		OverpaidAmount: decimal.Zero,
		ByStatus: map[ledger.PaymentStatus]int{
			ledger.StatusUnpaid:        0,
			ledger.StatusPartiallyPaid: 0,
			ledger.StatusPaid:          0,
		},
	}
	for _, rec := range records {
		sum := ledger.Compute(rec.LineItems(), rec.LedgerPayments())
		cs.Count++
		cs.TotalAmount = cs.TotalAmount.Add(sum.TotalAmount)
		cs.AmountPaid = cs.AmountPaid.Add(sum.AmountPaid)
		if sum.Overpaid() {
			cs.OverpaidCount++
			cs.OverpaidAmount = cs.OverpaidAmount.Add(sum.Overpayment())
		} else {
			cs.Outstanding = cs.Outstanding.Add(sum.Balance)
		}
		cs.ByStatus[sum.PaymentStatus]++
	}
	return cs
}

func dateToken(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}
