package analytichttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Gvain-jona/ivan-test-sub005/internal/analytics"
	"github.com/Gvain-jona/ivan-test-sub005/internal/platform/httpx"
)

const requestTimeout = 5 * time.Second

// SummaryService is the data contract used by the handler.
type SummaryService interface {
	Summary(ctx context.Context, f analytics.Filter) (analytics.Summary, error)
}

// Handler serves analytics endpoints.
type Handler struct {
	logger  *slog.Logger
	service SummaryService
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service SummaryService) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.service.Summary(ctx, filter)
	if err != nil {
		h.logger.Error("analytics summary failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func parseFilter(r *http.Request) (analytics.Filter, error) {
	var f analytics.Filter
	q := r.URL.Query()
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return analytics.Filter{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", httpx.ErrBadRequest, name)
		}
		if name == "to" {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*dst = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return analytics.Filter{}, fmt.Errorf("%w: to precedes from", httpx.ErrBadRequest)
	}
	return f, nil
}
