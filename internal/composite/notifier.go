package composite

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// NotificationKind tags notifications written after a creation.
const NotificationKind = "aggregate_created"

// Notifier delivers the side-effect notification of a creation.
type Notifier interface {
	Notify(ctx context.Context, n backend.Notification) error
}

// BackendNotifier writes notifications straight to the store.
type BackendNotifier struct {
	Store backend.Notifications
}

// Notify stores n.
func (b BackendNotifier) Notify(ctx context.Context, n backend.Notification) error {
	return b.Store.CreateNotification(ctx, n)
}

func notificationMessage(typ backend.AggregateType, h backend.Header) string {
	label := strings.ReplaceAll(string(typ), "_", " ")
	if h.CounterpartyName == "" {
		return fmt.Sprintf("New %s recorded", label)
	}
	return fmt.Sprintf("New %s recorded for %s", label, h.CounterpartyName)
}
