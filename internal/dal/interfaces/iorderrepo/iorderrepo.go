package iorderrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
)

// IOrderRepository is an interface for the order postgres repository.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (order.Order, error)
	GetByID(ctx context.Context, id int64) (*order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)

	// SetPaymentIntent records the gateway intent id so a later capture
	// can be correlated with the order. A newer intent replaces an
	// abandoned one.
	SetPaymentIntent(ctx context.Context, orderID int64, intentID string) error

	// SetPaymentResult applies the capture outcome in one statement.
	SetPaymentResult(
		ctx context.Context,
		orderID int64,
		status order.Status,
		paymentStatus order.PaymentStatus,
		externalTxnID string,
	) error

	// UpdateStatus moves the order along the fulfillment state machine,
	// stamping shipped/delivered timestamps when provided.
	UpdateStatus(
		ctx context.Context,
		orderID int64,
		status order.Status,
		shippedAt *time.Time,
		deliveredAt *time.Time,
	) error
}
