package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Gvain-jona/ivan-test-sub005/internal/analytics"
	jobmetrics "github.com/Gvain-jona/ivan-test-sub005/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Summarizer computes (and caches) an analytics summary.
type Summarizer interface {
	Summary(ctx context.Context, f analytics.Filter) (analytics.Summary, error)
}

// AnalyticsWarmupJob pre-populates the analytics cache so the first request
// after a bump does not pay for the full scan.
type AnalyticsWarmupJob struct {
	Analytics Summarizer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewAnalyticsWarmupJob wires dependencies for the warmup handler.
func NewAnalyticsWarmupJob(svc Summarizer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Analytics: svc,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskAnalyticsWarmup tasks.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	if payload.Months < 0 {
		payload.Months = 0
	}

	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	defer func() { err = tracker.End(err) }()

	logger := j.logger()
	started := time.Now()
	filters := j.filters(payload.Months)
	for _, f := range filters {
		// Each window gets its own deadline.
		wctx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Analytics.Summary(wctx, f)
		cancel()
		if err != nil {
			logger.Error("warm summary", slog.Any("error", err))
			return err
		}
	}
	logger.Info("completed analytics warmup", slog.Int("windows", len(filters)), slog.Duration("duration", time.Since(started)))
	return nil
}

// filters returns the all-time window followed by one window per trailing
// calendar month, current month first.
func (j *AnalyticsWarmupJob) filters(months int) []analytics.Filter {
	out := []analytics.Filter{{}}
	now := j.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < months; i++ {
		from := start.AddDate(0, -i, 0)
		to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
		out = append(out, analytics.Filter{From: &from, To: &to})
	}
	return out
}

func (j *AnalyticsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAnalyticsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAnalyticsWarmup))
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnalyticsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
