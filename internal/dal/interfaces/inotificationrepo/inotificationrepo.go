package inotificationrepo

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
)

// INotificationRepository dispatches order notifications. Delivery is
// best-effort: implementations must park undeliverable messages for retry
// instead of failing the caller.
type INotificationRepository interface {
	NotifyOrderConfirmed(ctx context.Context, o order.Order) error
}
