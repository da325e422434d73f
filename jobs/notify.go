package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	jobmetrics "github.com/Gvain-jona/ivan-test-sub005/internal/jobs"
)

// NotificationJob writes queued notifications through the backend.
type NotificationJob struct {
	Store   backend.Notifications
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotificationJob wires dependencies for the notification handler.
func NewNotificationJob(store backend.Notifications, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationJob {
	return &NotificationJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle processes TaskNotifyAggregateCreated tasks. Malformed payloads and
// validation failures are not retried.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("notify: handler not configured")
	}
	var payload NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("notify: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.AggregateID == "" {
		return fmt.Errorf("notify: aggregate id missing: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskNotifyAggregateCreated)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(
		slog.String("aggregate_type", string(payload.AggregateType)),
		slog.String("aggregate_id", payload.AggregateID),
	)
	if err := j.Store.CreateNotification(ctx, payload.Notification()); err != nil {
		logger.Error("store notification", slog.Any("error", err))
		if backend.CodeOf(err) == backend.CodeValidation {
			return fmt.Errorf("notify: %w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("notify: %w", err)
	}
	logger.Debug("notification stored")
	return nil
}

func (j *NotificationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskNotifyAggregateCreated))
	}
	return slog.Default().With(slog.String("job", TaskNotifyAggregateCreated))
}

func (j *NotificationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
