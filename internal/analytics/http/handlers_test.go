package analytichttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvain-jona/ivan-test-sub005/internal/analytics"
	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

type stubService struct {
	last analytics.Filter
	err  error
}

func (s *stubService) Summary(_ context.Context, f analytics.Filter) (analytics.Summary, error) {
	s.last = f
	if s.err != nil {
		return analytics.Summary{}, s.err
	}
	return analytics.Summary{Collections: []analytics.CollectionSummary{{Type: backend.AggregateOrder, Count: 2}}}, nil
}

func newRouter(svc SummaryService) http.Handler {
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)
	return r
}

func TestSummaryParsesDateRange(t *testing.T) {
	svc := &stubService{}
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/analytics/summary?from=2024-03-01&to=2024-03-31", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"count":2`)
	require.NotNil(t, svc.last.From)
	require.NotNil(t, svc.last.To)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *svc.last.From)
	assert.Equal(t, 31, svc.last.To.Day())
	assert.Equal(t, 23, svc.last.To.Hour())
}

func TestSummaryRejectsBadDates(t *testing.T) {
	for _, query := range []string{"from=yesterday", "from=2024-03-02&to=2024-03-01"} {
		rr := httptest.NewRecorder()
		newRouter(&stubService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/analytics/summary?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
	}
}

func TestSummaryBackendFailure(t *testing.T) {
	svc := &stubService{err: backend.Wrap(backend.CodeNetwork, "offline", nil)}
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/analytics/summary", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
