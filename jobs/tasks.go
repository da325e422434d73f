package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotifyAggregateCreated records the notification for a new order,
	// material purchase or expense.
	TaskNotifyAggregateCreated = "notify:aggregate_created"
	// TaskAnalyticsWarmup precomputes analytics summaries.
	TaskAnalyticsWarmup = "analytics:warmup"
)

// NotificationPayload is the JSON body of a TaskNotifyAggregateCreated task.
type NotificationPayload struct {
	Kind          string                `json:"kind"`
	AggregateType backend.AggregateType `json:"aggregate_type"`
	AggregateID   string                `json:"aggregate_id"`
	Message       string                `json:"message"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Notification converts the payload back into the stored form.
func (p NotificationPayload) Notification() backend.Notification {
	return backend.Notification{
		Kind:          p.Kind,
		AggregateType: p.AggregateType,
		AggregateID:   p.AggregateID,
		Message:       p.Message,
		CreatedAt:     p.CreatedAt,
	}
}

// NewNotificationTask constructs the task for n.
func NewNotificationTask(n backend.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(NotificationPayload{
		Kind:          n.Kind,
		AggregateType: n.AggregateType,
		AggregateID:   n.AggregateID,
		Message:       n.Message,
		CreatedAt:     n.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("jobs: encode notification: %w", err)
	}
	return asynq.NewTask(TaskNotifyAggregateCreated, data), nil
}

// AnalyticsWarmupPayload selects how many trailing months to warm in addition
// to the all-time summary.
type AnalyticsWarmupPayload struct {
	Months int `json:"months"`
}

// NewAnalyticsWarmupTask constructs the warmup task.
func NewAnalyticsWarmupTask(months int) (*asynq.Task, error) {
	data, err := json.Marshal(AnalyticsWarmupPayload{Months: months})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsWarmup, data), nil
}
